// Package delivery paces batched audio frames to the device. The
// device buffers only a few hundred milliseconds of audio, so frames
// are sent in fixed-size batches: a small pre-buffer burst up front,
// then one batch per pacing period against absolute deadlines so
// timing errors never accumulate.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/voxpod/voxpod/pkg/audio"
)

// ErrAborted is returned when the abort check stops a stream early.
var ErrAborted = errors.New("delivery: aborted")

// Profile tunes batching and pacing for one kind of stream.
type Profile struct {
	// BatchFrames is the number of frames per batch.
	BatchFrames int

	// PreBuffer is how many batches are sent immediately before
	// pacing starts, filling the device's jitter buffer.
	PreBuffer int

	// PacingFactor scales the batch period relative to the batch's
	// audio duration. Below 1.0 the sender runs slightly hot so the
	// device buffer never drains.
	PacingFactor float64
}

// Speech is tuned for short TTS rounds: quick start, a modest lead so
// an abort stops audio fast.
var Speech = Profile{BatchFrames: 10, PreBuffer: 2, PacingFactor: 0.83}

// Music is tuned for long streams: deeper pre-buffer and a gentler
// lead to ride out network jitter.
var Music = Profile{BatchFrames: 10, PreBuffer: 3, PacingFactor: 0.9}

// BatchSender writes one batch of frames to the device.
type BatchSender interface {
	SendBatch(ctx context.Context, frames []audio.Frame) error
}

// BatchSenderFunc adapts a function to BatchSender.
type BatchSenderFunc func(ctx context.Context, frames []audio.Frame) error

// SendBatch calls fn.
func (fn BatchSenderFunc) SendBatch(ctx context.Context, frames []audio.Frame) error {
	return fn(ctx, frames)
}

// Scheduler streams frames to a sender under a pacing profile.
type Scheduler struct {
	profile Profile

	now   func() time.Time
	sleep func(time.Duration)
}

// NewScheduler creates a Scheduler for the given profile.
func NewScheduler(profile Profile) *Scheduler {
	return &Scheduler{
		profile: profile,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// Stream reads frames from src until io.EOF and delivers them in paced
// batches. It checks ctx and the abort callback at every batch
// boundary; a nil abort disables that check. The source is not closed.
//
// Returns the number of frames actually sent, with ErrAborted when the
// abort check tripped.
func (s *Scheduler) Stream(ctx context.Context, src audio.FrameSource, sink BatchSender, abort func() bool) (int, error) {
	var (
		sent     int
		batchNum int
		nextSend time.Time
	)

	for {
		batch, batchDur, err := s.nextBatch(src)
		if err != nil {
			return sent, err
		}
		if len(batch) == 0 {
			return sent, nil
		}

		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if abort != nil && abort() {
			return sent, ErrAborted
		}

		// Pre-buffer batches go out back to back. Every paced batch,
		// including the first, waits for an absolute deadline one
		// period after the previous send; anything faster would spend
		// the device-buffer lead the pre-buffer just built.
		if batchNum >= s.profile.PreBuffer {
			period := time.Duration(float64(batchDur) * s.profile.PacingFactor)
			if nextSend.IsZero() {
				nextSend = s.now().Add(period)
			}
			if d := nextSend.Sub(s.now()); d > 0 {
				s.sleep(d)
			}
			nextSend = nextSend.Add(period)
		}

		if err := sink.SendBatch(ctx, batch); err != nil {
			return sent, fmt.Errorf("delivery: send batch: %w", err)
		}
		sent += len(batch)
		batchNum++
	}
}

// StreamFrames is Stream over an in-memory frame slice.
func (s *Scheduler) StreamFrames(ctx context.Context, frames []audio.Frame, sink BatchSender, abort func() bool) (int, error) {
	return s.Stream(ctx, audio.SourceFromFrames(frames), sink, abort)
}

// nextBatch pulls up to BatchFrames frames and their summed duration.
// A short (or empty) final batch is returned with a nil error.
func (s *Scheduler) nextBatch(src audio.FrameSource) ([]audio.Frame, time.Duration, error) {
	var (
		batch []audio.Frame
		total time.Duration
	)
	for len(batch) < s.profile.BatchFrames {
		f, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return batch, total, nil
			}
			return batch, total, err
		}
		d := f.Duration()
		if d == 0 {
			slog.Warn("frame with unreadable duration, assuming nominal")
			d = audio.FrameDuration
		}
		batch = append(batch, f)
		total += d
	}
	return batch, total, nil
}
