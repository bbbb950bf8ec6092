// Package orchestrator implements the per-frame pump that binds the
// detector, rolling buffer, rule engine, and debounce state machine
// together, and schedules deferred clip writes on confirmed falls.
package orchestrator

import (
	"sync"
	"time"

	"github.com/banshee-data/fallwatch/internal/falldetect"
	"github.com/banshee-data/fallwatch/internal/falldetect/statemachine"
	"github.com/banshee-data/fallwatch/internal/monitoring"
	"github.com/banshee-data/fallwatch/internal/timeutil"
)

// Detector yields zero or one subject for a frame. External per spec §6.
type Detector interface {
	Detect(frame falldetect.Frame) falldetect.Subject
}

// RuleEngine maps a subject to a fallen boolean.
type RuleEngine interface {
	Evaluate(subject falldetect.Subject, timestamp float64) bool
}

// Buffer is the subset of the rolling buffer the orchestrator drives
// directly: push on the hot path, and a clip query for the deferred clip
// writer.
type Buffer interface {
	Push(f falldetect.Frame)
	GetClip(eventTime, beforeSec, afterSec float64) []falldetect.Frame
}

// ClipWriter persists an extracted clip. External per spec §6; failures
// are logged and leave clip_path null (disposition owned by the caller of
// ClipWriter, typically the event store).
type ClipWriter interface {
	WriteClip(event falldetect.FallEvent, frames []falldetect.Frame) (path string, err error)
}

// Config holds the orchestrator's clip-extraction window.
type Config struct {
	ClipBeforeSec float64
	ClipAfterSec  float64
}

// Orchestrator runs the per-frame loop and, as a fall-observer, schedules
// deferred post-event clip writes.
type Orchestrator struct {
	detector Detector
	rules    RuleEngine
	buf      Buffer
	machine  *statemachine.Machine
	writer   ClipWriter
	clock    timeutil.Clock
	cfg      Config

	mu       sync.Mutex
	timers   []timeutil.Timer
	shutdown bool
}

// New wires an Orchestrator. The caller is responsible for registering the
// Orchestrator itself as a fall-observer on machine (via RegisterFallObserver)
// before starting the pump, so on_fall_confirmed reaches OnFallConfirmed.
func New(detector Detector, rules RuleEngine, buf Buffer, machine *statemachine.Machine, writer ClipWriter, clock timeutil.Clock, cfg Config) *Orchestrator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Orchestrator{
		detector: detector,
		rules:    rules,
		buf:      buf,
		machine:  machine,
		writer:   writer,
		clock:    clock,
		cfg:      cfg,
	}
}

// Step processes one frame: detect, evaluate, push, update. t is the
// monotonic timestamp sampled by the caller.
func (o *Orchestrator) Step(frame falldetect.Frame, t float64) {
	subject := o.detector.Detect(frame)
	fallen := o.rules.Evaluate(subject, t)
	o.buf.Push(falldetect.Frame{Timestamp: t, Pixels: frame.Pixels})
	o.machine.Update(fallen, t)
}

// OnFallConfirmed implements statemachine.FallObserver. It schedules a
// one-shot deferred timer at confirmed_at + clip_after_sec, at which point
// the buffer holds the complete forward window and the clip can be
// extracted and handed to the writer.
func (o *Orchestrator) OnFallConfirmed(event falldetect.FallEvent) {
	delay := time.Duration(o.cfg.ClipAfterSec * float64(time.Second))

	o.mu.Lock()
	if o.shutdown {
		o.mu.Unlock()
		return
	}
	timer := o.clock.NewTimer(delay)
	o.timers = append(o.timers, timer)
	o.mu.Unlock()

	go o.awaitClipWrite(timer, event)
}

// OnFallRecovered implements statemachine.FallObserver. The core has no
// recovery-time action of its own; subscribers interested in recovery
// (the event store) register separately.
func (o *Orchestrator) OnFallRecovered(falldetect.FallEvent) {}

func (o *Orchestrator) awaitClipWrite(timer timeutil.Timer, event falldetect.FallEvent) {
	<-timer.C()
	o.writeClip(event)
}

func (o *Orchestrator) writeClip(event falldetect.FallEvent) {
	frames := o.buf.GetClip(event.ConfirmedAt, o.cfg.ClipBeforeSec, o.cfg.ClipAfterSec)
	if len(frames) == 0 {
		monitoring.Logf("orchestrator: empty clip for %s, skipping write", event.EventID)
		return
	}
	if _, err := o.writer.WriteClip(event, frames); err != nil {
		monitoring.Logf("orchestrator: clip write failed for %s: %v", event.EventID, err)
	}
}

// Shutdown cancels all pending deferred clip-write timers; already-fired
// timers whose writes are in flight are not interrupted, matching the
// "best-effort cancel, no panics" disposition in spec §7.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.shutdown = true
	for _, timer := range o.timers {
		timer.Stop()
	}
	o.timers = nil
}
