package kv

import (
	"context"
	"errors"
	"testing"
)

func TestKey(t *testing.T) {
	if got := Key("reminder", "dev-1", "42"); got != "reminder/dev-1/42" {
		t.Errorf("Key() = %q", got)
	}
	if got := Key("device"); got != "device" {
		t.Errorf("Key() = %q", got)
	}
}

// storeTest exercises the Store contract against any implementation.
func storeTest(t *testing.T, s Store) {
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing key: err = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, Key("device", "a"), []byte("1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, Key("device", "b"), []byte("2")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, Key("reminder", "a", "1"), []byte("3")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, err := s.Get(ctx, Key("device", "a"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(v) != "1" {
		t.Errorf("Get = %q, want %q", v, "1")
	}

	// Overwrite.
	if err := s.Set(ctx, Key("device", "a"), []byte("1b")); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, _ = s.Get(ctx, Key("device", "a"))
	if string(v) != "1b" {
		t.Errorf("Get after overwrite = %q, want %q", v, "1b")
	}

	// Prefix scan returns only matching keys, in order.
	var keys []string
	for e, err := range s.List(ctx, "device/") {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		keys = append(keys, e.Key)
	}
	want := []string{"device/a", "device/b"}
	if len(keys) != len(want) {
		t.Fatalf("List keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("List key[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	// Delete is idempotent.
	if err := s.Delete(ctx, Key("device", "a")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, Key("device", "a")); err != nil {
		t.Fatalf("Delete again: %v", err)
	}
	if _, err := s.Get(ctx, Key("device", "a")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get deleted key: err = %v, want ErrNotFound", err)
	}
}

func TestMemory(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	storeTest(t, s)
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	s.Set(ctx, "k", []byte("abc"))
	v, _ := s.Get(ctx, "k")
	v[0] = 'x'
	v2, _ := s.Get(ctx, "k")
	if string(v2) != "abc" {
		t.Errorf("stored value mutated through Get result: %q", v2)
	}
}
