package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
)

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	data := []byte("pcm recording bytes")
	if err := s.Put(ctx, "meetings/dev-1/m1.pcm", bytes.NewReader(data)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rc, err := s.Open(ctx, "meetings/dev-1/m1.pcm")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read %q, want %q", got, data)
	}
}

func TestLocalOpenMissing(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	_, err = s.Open(ctx, "nope.pcm")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open missing: err = %v, want os.ErrNotExist", err)
	}
}

func TestLocalDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if err := s.Put(ctx, "a.pcm", bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, "a.pcm"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "a.pcm"); err != nil {
		t.Fatalf("Delete again: %v", err)
	}
	if _, err := s.Open(ctx, "a.pcm"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open after delete: err = %v, want os.ErrNotExist", err)
	}
}

func TestLocalPutOverwrites(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	s.Put(ctx, "a.pcm", bytes.NewReader([]byte("first")))
	s.Put(ctx, "a.pcm", bytes.NewReader([]byte("second")))
	rc, err := s.Open(ctx, "a.pcm")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "second" {
		t.Errorf("read %q, want %q", got, "second")
	}
}
