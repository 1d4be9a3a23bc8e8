package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/flora/internal/db"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestHSetWithTTLAndGetAll(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.HSetWithTTL(ctx, "k", map[string]string{"a": "1"}, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.HSetWithTTL(ctx, "k", map[string]string{"b": "2"}, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, err := s.HGetAll(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["a"] != "1" || m["b"] != "2" {
		t.Errorf("unexpected map: %v", m)
	}

	// returned map is a copy
	m["a"] = "mutated"
	again, _ := s.HGetAll(ctx, "k")
	if again["a"] != "1" {
		t.Error("store was mutated through returned map")
	}
}

func TestHGetAll_Missing(t *testing.T) {
	s := NewStore()
	m, err := s.HGetAll(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m) != 0 {
		t.Errorf("expected empty map, got %v", m)
	}
}

func TestHSetWithTTL_Expires(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := NewStore().WithClock(clock.now)
	ctx := context.Background()

	if err := s.HSetWithTTL(ctx, "k", map[string]string{"a": "1"}, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.advance(59 * time.Second)
	if m, _ := s.HGetAll(ctx, "k"); m["a"] != "1" {
		t.Fatal("expected key before ttl")
	}

	clock.advance(time.Second)
	if m, _ := s.HGetAll(ctx, "k"); len(m) != 0 {
		t.Fatalf("expected key to expire at ttl, got %v", m)
	}
	if s.Len() != 0 {
		t.Errorf("expected 0 live keys, got %d", s.Len())
	}
}

func TestHSetWithTTL_ExpiredKeyStartsFresh(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := NewStore().WithClock(clock.now)
	ctx := context.Background()

	_ = s.HSetWithTTL(ctx, "k", map[string]string{"a": "1"}, time.Minute)
	clock.advance(2 * time.Minute)
	_ = s.HSetWithTTL(ctx, "k", map[string]string{"b": "2"}, time.Minute)

	m, _ := s.HGetAll(ctx, "k")
	if _, ok := m["a"]; ok || m["b"] != "2" {
		t.Errorf("expected only fresh fields, got %v", m)
	}
}

func TestDel(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.HSetWithTTL(ctx, "k", map[string]string{"a": "1"}, time.Hour)

	if err := s.Del(ctx, "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 0 {
		t.Error("expected key to be deleted")
	}
	if err := s.Del(ctx, "k"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
}

func TestClose_PingFails(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.WaitForReady(ctx, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.Close()
	if err := s.Ping(ctx); !errors.Is(err, db.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
