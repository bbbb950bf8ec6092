// Package statemachine implements the three-state debounce machine that
// converts a noisy (fallen, t) boolean stream into a clean lifecycle of
// suspected and confirmed fall events, fanned out to two disjoint observer
// sets.
package statemachine

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/banshee-data/fallwatch/internal/falldetect"
	"github.com/banshee-data/fallwatch/internal/monitoring"
)

// State is one of the three debounce states.
type State int

const (
	Normal State = iota
	Suspected
	Confirmed
)

func (s State) String() string {
	switch s {
	case Suspected:
		return "suspected"
	case Confirmed:
		return "confirmed"
	default:
		return "normal"
	}
}

// Params holds the three timing parameters that govern debounce behavior.
type Params struct {
	DelaySec         float64
	SameEventWindow  float64
	ReNotifyInterval float64
}

// DefaultParams returns the spec's default timing parameters.
func DefaultParams() Params {
	return Params{
		DelaySec:         3.0,
		SameEventWindow:  60.0,
		ReNotifyInterval: 120.0,
	}
}

// Machine is the debounce state machine. It is single-threaded: all state
// is accessed only from the goroutine that calls Update, so no internal
// locking is needed for the state itself.
type Machine struct {
	params Params

	state          State
	suspectedSince float64

	currentFall      *falldetect.FallEvent
	currentSuspected *falldetect.SuspectedEvent

	// lastFall survives a Confirmed -> Normal recovery so a re-confirm
	// within SameEventWindow can still merge into it (§4.4.3 S5); currentFall
	// is nil whenever the machine is not in the Confirmed state.
	lastFall *falldetect.FallEvent

	fallObservers      []FallObserver
	suspectedObservers []SuspectedObserver
}

// New creates a Machine in the Normal state with the given parameters.
// Observers registered after construction are appended; registration is
// intended as a construction-time-only operation (see RegisterFallObserver
// / RegisterSuspectedObserver).
func New(params Params) *Machine {
	return &Machine{params: params, state: Normal}
}

// RegisterFallObserver appends a fall-observer. Append-only; call before
// the first Update.
func (m *Machine) RegisterFallObserver(o FallObserver) {
	m.fallObservers = append(m.fallObservers, o)
}

// RegisterSuspectedObserver appends a suspected-observer. Append-only; call
// before the first Update.
func (m *Machine) RegisterSuspectedObserver(o SuspectedObserver) {
	m.suspectedObservers = append(m.suspectedObservers, o)
}

// State returns the machine's current state. For tests and diagnostics.
func (m *Machine) State() State {
	return m.state
}

// Update feeds one (fallen, t) sample to the machine, per the transition
// table in §4.4.2. It does not return until every relevant observer has
// been invoked; a throwing observer is isolated and logged, never
// propagated, and never mutates machine state.
func (m *Machine) Update(fallen bool, t float64) {
	switch m.state {
	case Normal:
		m.updateFromNormal(fallen, t)
	case Suspected:
		m.updateFromSuspected(fallen, t)
	case Confirmed:
		m.updateFromConfirmed(fallen, t)
	}
}

func (m *Machine) updateFromNormal(fallen bool, t float64) {
	if !fallen {
		return
	}
	m.suspectedSince = t
	ev := falldetect.SuspectedEvent{
		SuspectedID: uuid.New().String(),
		SuspectedAt: t,
		Outcome:     falldetect.OutcomePending,
	}
	m.currentSuspected = &ev
	m.state = Suspected
	m.notifySuspected(func(o SuspectedObserver) { o.OnFallSuspected(ev) })
}

func (m *Machine) updateFromSuspected(fallen bool, t float64) {
	if !fallen {
		ev := *m.currentSuspected
		ev.Outcome = falldetect.OutcomeCleared
		ev.OutcomeAt = t
		m.currentSuspected = nil
		m.state = Normal
		m.notifySuspected(func(o SuspectedObserver) { o.OnSuspicionCleared(ev) })
		return
	}

	if t-m.suspectedSince < m.params.DelaySec {
		return
	}
	m.confirm(t)
}

func (m *Machine) updateFromConfirmed(fallen bool, t float64) {
	if !fallen {
		fallEvent := m.currentFall
		m.currentFall = nil
		m.currentSuspected = nil
		m.state = Normal
		if fallEvent != nil {
			ev := *fallEvent
			m.notifyFall(func(o FallObserver) { o.OnFallRecovered(ev) })
		}
		return
	}

	if m.currentFall == nil {
		return
	}
	if t-m.currentFall.LastNotifiedAt < m.params.ReNotifyInterval {
		return
	}
	m.currentFall.LastNotifiedAt = t
	m.currentFall.NotificationCount++
	ev := *m.currentFall
	m.notifyFall(func(o FallObserver) { o.OnFallConfirmed(ev) })
}

// confirm implements the Suspected -> Confirmed action in §4.4.3.
func (m *Machine) confirm(t float64) {
	resolved := *m.currentSuspected
	resolved.Outcome = falldetect.OutcomeConfirmed
	resolved.OutcomeAt = t
	m.currentSuspected = nil
	m.state = Confirmed

	sameEvent := m.lastFall != nil && t-m.lastFall.ConfirmedAt < m.params.SameEventWindow
	if sameEvent {
		// Re-confirm within SameEventWindow of a prior recovery: resume the
		// original event rather than starting a new one.
		m.currentFall = m.lastFall
	} else {
		ev := falldetect.FallEvent{
			EventID:           fmt.Sprintf("evt_%d", int64(math.Floor(t))),
			ConfirmedAt:       t,
			LastNotifiedAt:    t,
			NotificationCount: 1,
		}
		m.currentFall = &ev
		m.lastFall = &ev
		fired := ev
		m.notifyFall(func(o FallObserver) { o.OnFallConfirmed(fired) })
	}
	// Same-event merge: per the resolved Open Question, last_notified_at and
	// notification_count on the existing FallEvent are left untouched.

	m.notifySuspected(func(o SuspectedObserver) { o.OnFallConfirmedUpdate(resolved) })
}

func (m *Machine) notifyFall(call func(FallObserver)) {
	for _, o := range m.fallObservers {
		m.dispatch(func() { call(o) })
	}
}

func (m *Machine) notifySuspected(call func(SuspectedObserver)) {
	for _, o := range m.suspectedObservers {
		m.dispatch(func() { call(o) })
	}
}

// dispatch invokes fn, recovering from and logging any panic so that one
// faulty observer cannot prevent subsequent observers from being called or
// corrupt machine state.
func (m *Machine) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("statemachine: observer panic recovered: %v", r)
		}
	}()
	fn()
}
