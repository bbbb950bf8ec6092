package store

import (
	"github.com/banshee-data/fallwatch/internal/falldetect"
	"github.com/banshee-data/fallwatch/internal/monitoring"
)

// EventLogger is the default persistent-event-store fall-observer and
// suspected-observer: it records every lifecycle transition into the
// backing DB. Persistence failures are logged and do not propagate, per
// the state machine's observer-isolation contract.
type EventLogger struct {
	db *DB
}

// NewEventLogger wraps db as an EventLogger.
func NewEventLogger(db *DB) *EventLogger {
	return &EventLogger{db: db}
}

// OnFallConfirmed implements statemachine.FallObserver.
func (l *EventLogger) OnFallConfirmed(ev falldetect.FallEvent) {
	if ev.NotificationCount == 1 {
		if err := l.db.InsertFallEvent(ev); err != nil {
			monitoring.Logf("store: failed to insert fall event %s: %v", ev.EventID, err)
		}
		return
	}
	if err := l.db.UpdateNotification(ev); err != nil {
		monitoring.Logf("store: failed to update notification for %s: %v", ev.EventID, err)
	}
}

// OnFallRecovered implements statemachine.FallObserver.
func (l *EventLogger) OnFallRecovered(ev falldetect.FallEvent) {
	if err := l.db.MarkRecovered(ev, ev.LastNotifiedAt); err != nil {
		monitoring.Logf("store: failed to mark %s recovered: %v", ev.EventID, err)
	}
}

// OnFallSuspected implements statemachine.SuspectedObserver.
func (l *EventLogger) OnFallSuspected(ev falldetect.SuspectedEvent) {
	if err := l.db.InsertSuspectedEvent(ev); err != nil {
		monitoring.Logf("store: failed to insert suspected event %s: %v", ev.SuspectedID, err)
	}
}

// OnSuspicionCleared implements statemachine.SuspectedObserver.
func (l *EventLogger) OnSuspicionCleared(ev falldetect.SuspectedEvent) {
	if err := l.db.ResolveSuspectedEvent(ev); err != nil {
		monitoring.Logf("store: failed to resolve suspected event %s: %v", ev.SuspectedID, err)
	}
}

// OnFallConfirmedUpdate implements statemachine.SuspectedObserver.
func (l *EventLogger) OnFallConfirmedUpdate(ev falldetect.SuspectedEvent) {
	if err := l.db.ResolveSuspectedEvent(ev); err != nil {
		monitoring.Logf("store: failed to resolve suspected event %s: %v", ev.SuspectedID, err)
	}
}
