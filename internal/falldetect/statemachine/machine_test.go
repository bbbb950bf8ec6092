package statemachine

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/fallwatch/internal/falldetect"
)

type recordingFallObserver struct {
	confirmed []falldetect.FallEvent
	recovered []falldetect.FallEvent
}

func (r *recordingFallObserver) OnFallConfirmed(ev falldetect.FallEvent) {
	r.confirmed = append(r.confirmed, ev)
}

func (r *recordingFallObserver) OnFallRecovered(ev falldetect.FallEvent) {
	r.recovered = append(r.recovered, ev)
}

type recordingSuspectedObserver struct {
	suspected []falldetect.SuspectedEvent
	cleared   []falldetect.SuspectedEvent
	confirmed []falldetect.SuspectedEvent
}

func (r *recordingSuspectedObserver) OnFallSuspected(ev falldetect.SuspectedEvent) {
	r.suspected = append(r.suspected, ev)
}

func (r *recordingSuspectedObserver) OnSuspicionCleared(ev falldetect.SuspectedEvent) {
	r.cleared = append(r.cleared, ev)
}

func (r *recordingSuspectedObserver) OnFallConfirmedUpdate(ev falldetect.SuspectedEvent) {
	r.confirmed = append(r.confirmed, ev)
}

type panickyFallObserver struct{}

func (panickyFallObserver) OnFallConfirmed(falldetect.FallEvent) { panic("boom") }
func (panickyFallObserver) OnFallRecovered(falldetect.FallEvent) { panic("boom") }

func newHarness() (*Machine, *recordingFallObserver, *recordingSuspectedObserver) {
	m := New(DefaultParams())
	fo := &recordingFallObserver{}
	so := &recordingSuspectedObserver{}
	m.RegisterFallObserver(fo)
	m.RegisterSuspectedObserver(so)
	return m, fo, so
}

func feedConstant(m *Machine, fallen bool, fromT, toT, step float64) {
	for t := fromT; t < toT; t += step {
		m.Update(fallen, t)
	}
}

// S1 - Standing person, no event.
func TestS1_NoEvent(t *testing.T) {
	m, fo, so := newHarness()
	for i := 0; i < 100; i++ {
		m.Update(false, float64(i)/15.0)
	}
	if len(fo.confirmed) != 0 || len(fo.recovered) != 0 {
		t.Fatalf("expected no fall-observer calls, got %+v / %+v", fo.confirmed, fo.recovered)
	}
	if len(so.suspected) != 0 || len(so.cleared) != 0 || len(so.confirmed) != 0 {
		t.Fatalf("expected no suspected-observer calls, got %+v/%+v/%+v", so.suspected, so.cleared, so.confirmed)
	}
	if m.State() != Normal {
		t.Fatalf("final state = %v, want Normal", m.State())
	}
}

// S2 - Transient false alarm.
func TestS2_TransientFalseAlarm(t *testing.T) {
	m, fo, so := newHarness()
	feedConstant(m, true, 0, 1.0, 1.0/15.0)
	feedConstant(m, false, 1.0, 6.0, 1.0/15.0)

	if len(so.suspected) != 1 {
		t.Fatalf("on_fall_suspected count = %d, want 1", len(so.suspected))
	}
	if len(so.cleared) != 1 {
		t.Fatalf("on_suspicion_cleared count = %d, want 1", len(so.cleared))
	}
	if len(fo.confirmed) != 0 {
		t.Fatalf("on_fall_confirmed count = %d, want 0", len(fo.confirmed))
	}
}

// S3 - Confirmed fall, then recovery.
func TestS3_ConfirmedThenRecovery(t *testing.T) {
	m, fo, _ := newHarness()
	feedConstant(m, true, 0, 10.0, 1.0/15.0)
	if len(fo.confirmed) != 1 {
		t.Fatalf("on_fall_confirmed count = %d, want 1", len(fo.confirmed))
	}
	got := fo.confirmed[0]
	wantEvent := falldetect.FallEvent{
		EventID:           "evt_3",
		ConfirmedAt:       got.ConfirmedAt,
		LastNotifiedAt:    got.ConfirmedAt,
		NotificationCount: 1,
	}
	if diff := cmp.Diff(wantEvent, got); diff != "" {
		t.Errorf("confirmed event mismatch (-want +got):\n%s", diff)
	}

	m.Update(false, 10.0+1e-6)
	if len(fo.recovered) != 1 {
		t.Fatalf("on_fall_recovered count = %d, want 1", len(fo.recovered))
	}
	if m.State() != Normal {
		t.Fatalf("final state = %v, want Normal", m.State())
	}
}

// S4 - Persistent fall with re-notification.
func TestS4_PersistentReNotify(t *testing.T) {
	m, fo, _ := newHarness()
	feedConstant(m, true, 0, 250.0, 1.0/15.0)

	want := 1 + int((250.0-3.0)/120.0)
	if len(fo.confirmed) != want {
		t.Fatalf("on_fall_confirmed count = %d, want %d", len(fo.confirmed), want)
	}
	for i, ev := range fo.confirmed {
		if ev.NotificationCount != uint32(i+1) {
			t.Errorf("confirmed[%d].NotificationCount = %d, want %d", i, ev.NotificationCount, i+1)
		}
	}
}

// S5 - Same-event merge.
func TestS5_SameEventMerge(t *testing.T) {
	m, fo, _ := newHarness()
	feedConstant(m, true, 0, 3.0+1.0/15.0, 1.0/15.0) // confirm near t=3
	firstConfirmedCount := len(fo.confirmed)
	if firstConfirmedCount != 1 {
		t.Fatalf("expected 1 confirm after first rise, got %d", firstConfirmedCount)
	}
	firstEventID := fo.confirmed[0].EventID

	m.Update(false, 10.0) // recover
	// rise again and confirm at t=40 (40-3 < 60 same_event_window)
	feedConstant(m, true, 37.0, 40.0+1.0/15.0, 1.0/15.0)

	if len(fo.confirmed) != firstConfirmedCount {
		t.Fatalf("merge should not fire a new on_fall_confirmed; got %d calls, want %d", len(fo.confirmed), firstConfirmedCount)
	}
	if m.State() != Confirmed {
		t.Fatalf("state after merge = %v, want Confirmed", m.State())
	}
	if m.currentFall == nil || m.currentFall.EventID != firstEventID {
		t.Fatalf("expected original event %q to remain current", firstEventID)
	}
	if m.currentFall.NotificationCount != 1 {
		t.Fatalf("merge must not touch notification_count, got %d", m.currentFall.NotificationCount)
	}
}

// S7 - Bbox boundary is exercised in the rule package; this is the
// state-machine-side analogue confirming the transition table has no
// off-by-one at the delay boundary.
func TestDelayBoundaryIsInclusive(t *testing.T) {
	m, fo, _ := newHarness()
	m.Update(true, 0)           // Normal -> Suspected
	m.Update(true, 2.999999)    // still < delay
	if m.State() != Suspected {
		t.Fatalf("state at t=2.999999 = %v, want Suspected", m.State())
	}
	m.Update(true, 3.0) // t - suspected_since >= delay_sec
	if m.State() != Confirmed {
		t.Fatalf("state at t=3.0 = %v, want Confirmed", m.State())
	}
	if len(fo.confirmed) != 1 {
		t.Fatalf("expected exactly one confirm at the boundary, got %d", len(fo.confirmed))
	}
}

func TestObserverIsolation(t *testing.T) {
	m := New(DefaultParams())
	m.RegisterFallObserver(panickyFallObserver{})
	fo := &recordingFallObserver{}
	m.RegisterFallObserver(fo)

	feedConstant(m, true, 0, 3.0+1.0/15.0, 1.0/15.0)

	if len(fo.confirmed) != 1 {
		t.Fatalf("second observer should still be called despite a panicking first observer, got %d calls", len(fo.confirmed))
	}
	if m.State() != Confirmed {
		t.Fatalf("state corrupted by observer panic: %v", m.State())
	}
}

func TestSuspectedThenResolutionOrdering(t *testing.T) {
	m, _, so := newHarness()
	m.Update(true, 0)
	if len(so.suspected) != 1 {
		t.Fatalf("expected suspected call before resolution")
	}
	if len(so.cleared)+len(so.confirmed) != 0 {
		t.Fatalf("resolution must not fire before suspicion entry settles")
	}
	m.Update(false, 1.0)
	if len(so.cleared) != 1 {
		t.Fatalf("expected exactly one resolution call")
	}
}
