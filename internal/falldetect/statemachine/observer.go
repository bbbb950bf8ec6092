package statemachine

import "github.com/banshee-data/fallwatch/internal/falldetect"

// FallObserver is notified of confirmed-fall lifecycle events. It may be
// called multiple times per incident (re-notification while the fall
// persists).
type FallObserver interface {
	OnFallConfirmed(event falldetect.FallEvent)
	OnFallRecovered(event falldetect.FallEvent)
}

// SuspectedObserver is notified of suspicion lifecycle events. Exactly one
// of OnSuspicionCleared or OnFallConfirmedUpdate follows each
// OnFallSuspected before another OnFallSuspected may fire.
type SuspectedObserver interface {
	OnFallSuspected(event falldetect.SuspectedEvent)
	OnSuspicionCleared(event falldetect.SuspectedEvent)
	OnFallConfirmedUpdate(event falldetect.SuspectedEvent)
}
