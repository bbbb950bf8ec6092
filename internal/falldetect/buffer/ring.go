// Package buffer implements the rolling frame buffer: a fixed-duration FIFO
// of recent timestamped frames that supports slice extraction by timestamp
// interval.
package buffer

import (
	"sync"

	"github.com/banshee-data/fallwatch/internal/falldetect"
)

// Ring is a fixed-capacity FIFO of frames ordered by strictly increasing
// timestamp. It is safe for one producer and many concurrent readers.
//
// The ring holds frame records (which may in turn hold image handles, not
// decoded pixel arrays) rather than a time-indexed tree: query sizes are
// bounded by a few hundred entries, and a linear scan under the lock is
// simpler to reason about than a balanced-tree alternative.
type Ring struct {
	mu       sync.Mutex
	frames   []falldetect.Frame
	capacity int
}

// NewRing creates a Ring sized to hold windowSeconds at fpsNominal frames
// per second, per spec §4.1 sizing (⌈W · fps_nominal⌉ entries).
func NewRing(windowSeconds float64, fpsNominal float64) *Ring {
	cap := int(windowSeconds*fpsNominal + 0.999999)
	if cap < 1 {
		cap = 1
	}
	return &Ring{
		frames:   make([]falldetect.Frame, 0, cap),
		capacity: cap,
	}
}

// Push appends a frame, dropping the oldest entry if capacity is exceeded.
func (r *Ring) Push(f falldetect.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames = append(r.frames, f)
	if over := len(r.frames) - r.capacity; over > 0 {
		r.frames = r.frames[over:]
	}
}

// GetClip returns a freshly allocated snapshot of all held frames with
// eventTime-beforeSec <= t <= eventTime+afterSec, in timestamp order.
// Best-effort on the forward side if eventTime+afterSec is beyond the
// newest held frame; callers needing the complete backward side must
// ensure beforeSec does not exceed the buffer's configured window.
func (r *Ring) GetClip(eventTime, beforeSec, afterSec float64) []falldetect.Frame {
	lo := eventTime - beforeSec
	hi := eventTime + afterSec

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]falldetect.Frame, 0, len(r.frames))
	for _, f := range r.frames {
		if f.Timestamp >= lo && f.Timestamp <= hi {
			out = append(out, f)
		}
	}
	return out
}

// Clear drops all held frames.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = r.frames[:0]
}

// Len reports the number of frames currently held. Intended for metrics and
// tests, not for correctness-sensitive callers.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}
