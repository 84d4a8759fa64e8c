package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/example/tablepos/pkg/errs"
	"go.uber.org/zap/zaptest"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"08123456789", "08123456789", false},
		{"  +628123456789 ", "+628123456789", false},
		{"1234567", "", true},
		{"0812-3456-789", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizePhone(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizePhone(%q) err = %v", tt.in, err)
			continue
		}
		if err != nil && !errs.Is(err, errs.KindInvalid) {
			t.Errorf("NormalizePhone(%q) kind = %q", tt.in, errs.KindOf(err))
		}
		if got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLookupGuestUsesCache(t *testing.T) {
	db := newTestDB(t)
	cache := newMapCache()
	users := NewUserRepository(db, cache, zaptest.NewLogger(t))
	ctx := context.Background()

	if _, found, err := users.LookupGuest(ctx, "08123456789"); err != nil || found {
		t.Fatalf("unknown guest: found=%v err=%v", found, err)
	}

	created, err := users.UpsertGuest(ctx, "08123456789", "Sari")
	if err != nil {
		t.Fatal(err)
	}

	got, found, err := users.LookupGuest(ctx, "08123456789")
	if err != nil || !found || got.ID != created.ID || got.Name != "Sari" {
		t.Fatalf("first lookup = %+v, %v, %v", got, found, err)
	}
	if cache.hits != 0 {
		t.Fatal("first lookup should miss the cache")
	}

	got, found, _ = users.LookupGuest(ctx, "08123456789")
	if !found || got.Name != "Sari" || cache.hits != 1 {
		t.Fatalf("second lookup not served from cache: hits=%d", cache.hits)
	}
}

func TestUpsertGuestWithoutCache(t *testing.T) {
	users := NewUserRepository(newTestDB(t), nil, zaptest.NewLogger(t))
	ctx := context.Background()

	if _, err := users.UpsertGuest(ctx, "08123456789", ""); !errors.Is(err, errs.ErrGuestNameRequired) {
		t.Fatalf("err = %v", err)
	}
	a, err := users.UpsertGuest(ctx, "08123456789", "Sari")
	if err != nil {
		t.Fatal(err)
	}
	b, err := users.UpsertGuest(ctx, "08123456789", "")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID || b.Name != "Sari" {
		t.Fatalf("a=%+v b=%+v", a, b)
	}
}

func TestResolveStaffIsIdempotent(t *testing.T) {
	users := NewUserRepository(newTestDB(t), nil, zaptest.NewLogger(t))
	ctx := context.Background()

	a, err := users.ResolveStaff(ctx, "auth-9", "boss@resto.id")
	if err != nil {
		t.Fatal(err)
	}
	b, err := users.ResolveStaff(ctx, "auth-9", "boss@resto.id")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID {
		t.Fatalf("two profiles for one auth id: %s, %s", a.ID, b.ID)
	}
}
