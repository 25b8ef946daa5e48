package kv

import "testing"

func TestBadgerInMemory(t *testing.T) {
	s, err := NewBadger(BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	defer s.Close()
	storeTest(t, s)
}

func TestBadgerOnDisk(t *testing.T) {
	s, err := NewBadger(BadgerOptions{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	defer s.Close()
	storeTest(t, s)
}

func TestBadgerMissingDir(t *testing.T) {
	if _, err := NewBadger(BadgerOptions{}); err == nil {
		t.Fatal("expected error for missing Dir")
	}
}
