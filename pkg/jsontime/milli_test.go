package jsontime

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMilli_RoundTrip(t *testing.T) {
	orig := Milli(time.UnixMilli(1712345678901))

	b, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(b) != "1712345678901" {
		t.Errorf("Marshal = %s; want 1712345678901", b)
	}

	var got Milli
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if !got.Time().Equal(orig.Time()) {
		t.Errorf("round trip = %v; want %v", got.Time(), orig.Time())
	}
}

func TestMilli_Before(t *testing.T) {
	a := Milli(time.UnixMilli(1000))
	b := Milli(time.UnixMilli(2000))
	if !a.Before(b) {
		t.Error("a.Before(b) = false; want true")
	}
	if b.Before(a) {
		t.Error("b.Before(a) = true; want false")
	}
}

func TestMilli_IsZero(t *testing.T) {
	var m Milli
	if !m.IsZero() {
		t.Error("zero Milli IsZero() = false")
	}
	if Now().IsZero() {
		t.Error("Now().IsZero() = true")
	}
}
