package notify

import (
	"github.com/banshee-data/fallwatch/internal/falldetect"
	"github.com/banshee-data/fallwatch/internal/monitoring"
	"github.com/banshee-data/fallwatch/internal/serialmux"
)

// SirenRelay is a fall-observer that drives a serial-attached alarm panel:
// it triggers the siren on confirmation and silences it on recovery. Command
// delivery failures are logged and dropped; the serial link has no queued
// retry, unlike the push notifier, since a stale siren command has no value
// once the event has moved on.
type SirenRelay struct {
	mux serialmux.SerialMuxInterface
}

// NewSirenRelay creates a SirenRelay driving commands through mux. Callers
// are responsible for calling mux.Initialize() before registering the relay.
func NewSirenRelay(mux serialmux.SerialMuxInterface) *SirenRelay {
	return &SirenRelay{mux: mux}
}

// OnFallConfirmed implements statemachine.FallObserver.
func (s *SirenRelay) OnFallConfirmed(ev falldetect.FallEvent) {
	if err := s.mux.SendCommand("TRIGGER"); err != nil {
		monitoring.Logf("notify: siren trigger failed for %s: %v", ev.EventID, err)
	}
}

// OnFallRecovered implements statemachine.FallObserver.
func (s *SirenRelay) OnFallRecovered(ev falldetect.FallEvent) {
	if err := s.mux.SendCommand("SILENCE"); err != nil {
		monitoring.Logf("notify: siren silence failed for %s: %v", ev.EventID, err)
	}
}
