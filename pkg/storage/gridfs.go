package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrObjectNotFound = errors.New("object not found")

// GridFSStore keeps images in a MongoDB GridFS bucket.
type GridFSStore struct {
	bucket     *gridfs.Bucket
	publicBase string
}

func NewGridFSStore(db *mongo.Database, bucketName, publicBase string) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", bucketName, err)
	}
	return &GridFSStore{bucket: bucket, publicBase: publicBase}, nil
}

// Upload streams the image into the bucket. A context deadline applies to
// this upload stream only.
func (s *GridFSStore) Upload(ctx context.Context, img *Image) (string, error) {
	name := ObjectName(img.Filename)
	opts := options.GridFSUpload().SetMetadata(bson.D{
		{Key: "content_type", Value: img.ContentType},
		{Key: "original_name", Value: img.Filename},
	})

	stream, err := s.bucket.OpenUploadStream(name, opts)
	if err != nil {
		return "", fmt.Errorf("failed to open upload %s: %w", img.Filename, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := stream.SetWriteDeadline(deadline); err != nil {
			_ = stream.Abort()
			return "", err
		}
	}

	if _, err := io.Copy(stream, img.Data); err != nil {
		_ = stream.Abort()
		return "", fmt.Errorf("failed to upload %s: %w", img.Filename, err)
	}
	if err := stream.Close(); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", img.Filename, err)
	}

	return PublicURL(s.publicBase, name), nil
}

func (s *GridFSStore) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	stream, err := s.bucket.OpenDownloadStreamByName(name)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", fmt.Errorf("failed to open %s: %w", name, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := stream.SetReadDeadline(deadline); err != nil {
			stream.Close()
			return nil, "", err
		}
	}

	contentType := "application/octet-stream"
	if file := stream.GetFile(); file != nil && file.Metadata != nil {
		if v, err := file.Metadata.LookupErr("content_type"); err == nil {
			if ct, ok := v.StringValueOK(); ok && ct != "" {
				contentType = ct
			}
		}
	}
	return stream, contentType, nil
}
