package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxpod/voxpod/pkg/audio"
)

// fakeClock makes pacing deterministic: sleeps advance virtual time.
type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
}

func newTestScheduler(p Profile) (*Scheduler, *fakeClock) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	s := NewScheduler(p)
	s.now = clock.now
	s.sleep = clock.sleep
	return s, clock
}

// frames returns n copies of a 60ms frame.
func frames(n int) []audio.Frame {
	out := make([]audio.Frame, n)
	for i := range out {
		out[i] = audio.Silence()
	}
	return out
}

type recordingSink struct {
	batches [][]audio.Frame
}

func (r *recordingSink) SendBatch(ctx context.Context, batch []audio.Frame) error {
	r.batches = append(r.batches, batch)
	return nil
}

func TestStreamBatching(t *testing.T) {
	s, _ := newTestScheduler(Speech)
	sink := &recordingSink{}

	sent, err := s.StreamFrames(context.Background(), frames(25), sink, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if sent != 25 {
		t.Errorf("sent = %d, want 25", sent)
	}
	if len(sink.batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(sink.batches))
	}
	if len(sink.batches[0]) != 10 || len(sink.batches[2]) != 5 {
		t.Errorf("batch sizes: %d/%d/%d",
			len(sink.batches[0]), len(sink.batches[1]), len(sink.batches[2]))
	}
}

func TestStreamPacing(t *testing.T) {
	s, clock := newTestScheduler(Speech)
	sink := &recordingSink{}

	// 5 full batches: 2 pre-buffer, 3 paced.
	sent, err := s.StreamFrames(context.Background(), frames(50), sink, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if sent != 50 {
		t.Errorf("sent = %d", sent)
	}

	// Only the pre-buffer goes out immediately; every paced batch,
	// the first included, waits one period.
	period := time.Duration(float64(10*audio.FrameDuration) * Speech.PacingFactor)
	if len(clock.sleeps) != 3 {
		t.Fatalf("got %d sleeps, want 3 (sleeps: %v)", len(clock.sleeps), clock.sleeps)
	}
	for _, d := range clock.sleeps {
		if d != period {
			t.Errorf("sleep = %v, want %v", d, period)
		}
	}
}

func TestStreamPacedDurationLowerBound(t *testing.T) {
	s, clock := newTestScheduler(Speech)
	sink := &recordingSink{}
	start := clock.t

	// 4 batches: 2 pre-buffer, 2 paced. The whole delivery must take
	// at least 2 full periods or the device buffer loses its lead.
	if _, err := s.StreamFrames(context.Background(), frames(40), sink, nil); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	period := time.Duration(float64(10*audio.FrameDuration) * Speech.PacingFactor)
	if got := clock.t.Sub(start); got < 2*period {
		t.Errorf("delivery took %v, want >= %v", got, 2*period)
	}
}

func TestStreamNoPacingWithinPreBuffer(t *testing.T) {
	s, clock := newTestScheduler(Music)
	sink := &recordingSink{}

	// Exactly the pre-buffer: no sleeps at all.
	if _, err := s.StreamFrames(context.Background(), frames(30), sink, nil); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("pre-buffer slept: %v", clock.sleeps)
	}
}

func TestStreamAbortBetweenBatches(t *testing.T) {
	s, _ := newTestScheduler(Speech)
	sink := &recordingSink{}

	calls := 0
	abort := func() bool {
		calls++
		return calls > 2
	}
	sent, err := s.StreamFrames(context.Background(), frames(50), sink, abort)
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
	if sent != 20 || len(sink.batches) != 2 {
		t.Errorf("sent %d frames in %d batches before abort", sent, len(sink.batches))
	}
}

func TestStreamContextCancelled(t *testing.T) {
	s, _ := newTestScheduler(Speech)
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sent, err := s.StreamFrames(ctx, frames(20), sink, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if sent != 0 {
		t.Errorf("sent = %d after cancel", sent)
	}
}

func TestStreamSendError(t *testing.T) {
	s, _ := newTestScheduler(Speech)
	sendErr := errors.New("socket closed")
	sink := BatchSenderFunc(func(ctx context.Context, batch []audio.Frame) error {
		return sendErr
	})
	_, err := s.StreamFrames(context.Background(), frames(10), sink, nil)
	if !errors.Is(err, sendErr) {
		t.Fatalf("err = %v", err)
	}
}
