// Package storage uploads product images and hands back a durable public
// reference.
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Image is an uploaded file as received from a client.
type Image struct {
	Filename    string
	ContentType string
	Data        io.Reader
}

type BlobStore interface {
	// Upload stores the image under a fresh random name and returns its
	// public URL.
	Upload(ctx context.Context, img *Image) (string, error)
	// Open returns the stored object and its content type.
	Open(ctx context.Context, name string) (io.ReadCloser, string, error)
}

// ObjectName returns a random object name that keeps the extension of the
// uploaded file.
func ObjectName(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return uuid.NewString() + ext
}

func PublicURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + name
}
