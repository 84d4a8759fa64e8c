package repository

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/example/tablepos/pkg/notify"
	"github.com/example/tablepos/pkg/storage"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type fakeStore struct {
	err     error
	uploads []string
}

func (s *fakeStore) Upload(_ context.Context, img *storage.Image) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if _, err := io.ReadAll(img.Data); err != nil {
		return "", err
	}
	name := storage.ObjectName(img.Filename)
	s.uploads = append(s.uploads, name)
	return storage.PublicURL("/images", name), nil
}

func (s *fakeStore) Open(context.Context, string) (io.ReadCloser, string, error) {
	return nil, "", storage.ErrObjectNotFound
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) tables() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Table + ":" + string(e.Type)
	}
	return out
}

var errCacheMiss = errors.New("cache miss")

type mapCache struct {
	mu      sync.Mutex
	guests  map[string]*CachedGuest
	hits    int
	deleted []string
}

func newMapCache() *mapCache {
	return &mapCache{guests: map[string]*CachedGuest{}}
}

func (c *mapCache) CacheGuest(_ context.Context, g *CachedGuest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guests[g.Phone] = g
	return nil
}

func (c *mapCache) GetGuestCache(_ context.Context, phone string) (*CachedGuest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.guests[phone]
	if !ok {
		return nil, errCacheMiss
	}
	c.hits++
	return g, nil
}

func (c *mapCache) InvalidateGuest(_ context.Context, phone string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.guests, phone)
	c.deleted = append(c.deleted, phone)
	return nil
}

func ptr[T any](v T) *T { return &v }
