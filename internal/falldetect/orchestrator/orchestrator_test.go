package orchestrator

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/fallwatch/internal/falldetect"
	"github.com/banshee-data/fallwatch/internal/falldetect/statemachine"
	"github.com/banshee-data/fallwatch/internal/timeutil"
)

type stubDetector struct{ subject falldetect.Subject }

func (s stubDetector) Detect(falldetect.Frame) falldetect.Subject { return s.subject }

type stubRule struct{ fallen bool }

func (r stubRule) Evaluate(falldetect.Subject, float64) bool { return r.fallen }

type fakeBuf struct {
	mu     sync.Mutex
	pushed []falldetect.Frame
}

func (b *fakeBuf) Push(f falldetect.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushed = append(b.pushed, f)
}

func (b *fakeBuf) GetClip(eventTime, before, after float64) []falldetect.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []falldetect.Frame
	for _, f := range b.pushed {
		if f.Timestamp >= eventTime-before && f.Timestamp <= eventTime+after {
			out = append(out, f)
		}
	}
	return out
}

type recordingWriter struct {
	mu     sync.Mutex
	events []falldetect.FallEvent
	done   chan struct{}
}

func (w *recordingWriter) WriteClip(ev falldetect.FallEvent, frames []falldetect.Frame) (string, error) {
	w.mu.Lock()
	w.events = append(w.events, ev)
	w.mu.Unlock()
	if w.done != nil {
		w.done <- struct{}{}
	}
	return "clip.mp4", nil
}

func TestOrchestrator_StepDrivesPipeline(t *testing.T) {
	buf := &fakeBuf{}
	m := statemachine.New(statemachine.DefaultParams())
	o := New(stubDetector{subject: falldetect.NoSubject}, stubRule{fallen: false}, buf, m, &recordingWriter{}, timeutil.RealClock{}, Config{ClipBeforeSec: 5, ClipAfterSec: 5})

	o.Step(falldetect.Frame{Pixels: image.NewRGBA(image.Rect(0, 0, 10, 10))}, 1.0)
	if buf.pushed[0].Timestamp != 1.0 {
		t.Fatalf("expected frame pushed at t=1.0, got %+v", buf.pushed)
	}
}

func TestOrchestrator_DeferredClipWrite(t *testing.T) {
	buf := &fakeBuf{}
	m := statemachine.New(statemachine.DefaultParams())
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	writer := &recordingWriter{done: make(chan struct{}, 1)}
	o := New(stubDetector{}, stubRule{}, buf, m, writer, clock, Config{ClipBeforeSec: 5, ClipAfterSec: 5})
	m.RegisterFallObserver(o)

	buf.Push(falldetect.Frame{Timestamp: 0})
	o.OnFallConfirmed(falldetect.FallEvent{EventID: "evt_0", ConfirmedAt: 0})

	clock.Advance(5 * time.Second)

	select {
	case <-writer.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for deferred clip write")
	}

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if len(writer.events) != 1 || writer.events[0].EventID != "evt_0" {
		t.Fatalf("expected one clip write for evt_0, got %+v", writer.events)
	}
}

func TestOrchestrator_ShutdownCancelsTimers(t *testing.T) {
	buf := &fakeBuf{}
	m := statemachine.New(statemachine.DefaultParams())
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	writer := &recordingWriter{done: make(chan struct{}, 1)}
	o := New(stubDetector{}, stubRule{}, buf, m, writer, clock, Config{ClipBeforeSec: 5, ClipAfterSec: 5})

	o.OnFallConfirmed(falldetect.FallEvent{EventID: "evt_0", ConfirmedAt: 0})
	o.Shutdown()
	clock.Advance(10 * time.Second)

	select {
	case <-writer.done:
		t.Fatal("clip write should not happen after shutdown cancels the timer")
	case <-time.After(100 * time.Millisecond):
	}
}
