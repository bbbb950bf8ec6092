package serialmux

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/fallwatch/internal/monitoring"
)

// CurrentState holds the latest config values received from the alarm panel
// and is intentionally package-level so admin routes or tests can inspect it.
var CurrentState map[string]any

// HandleAck records an acknowledgement line from the alarm panel.
func HandleAck(payload string) error {
	monitoring.Logf("serialmux: ack: %s", payload)
	return nil
}

// HandleNak records a negative-acknowledgement line from the alarm panel.
// Nak lines indicate the panel rejected the last command; the caller is
// responsible for any retry policy.
func HandleNak(payload string) error {
	monitoring.Logf("serialmux: nak: %s", payload)
	return fmt.Errorf("alarm panel rejected command: %s", payload)
}

// HandleConfigResponse merges a JSON config-status line into CurrentState.
func HandleConfigResponse(payload string) error {
	var configValues map[string]any

	if err := json.Unmarshal([]byte(payload), &configValues); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %v", err)
	}

	if CurrentState == nil {
		CurrentState = make(map[string]any)
	}
	for k, v := range configValues {
		CurrentState[k] = v
	}

	monitoring.Logf("serialmux: config: %s", payload)
	return nil
}

// HandleEvent classifies and dispatches a line read from the alarm panel.
func HandleEvent(payload string) error {
	switch ClassifyPayload(payload) {
	case EventTypeAck:
		return HandleAck(payload)
	case EventTypeNak:
		return HandleNak(payload)
	case EventTypeConfig:
		if err := HandleConfigResponse(payload); err != nil {
			return fmt.Errorf("failed to handle config response: %v", err)
		}
	default:
		monitoring.Logf("serialmux: unknown event type: %s", payload)
	}
	return nil
}
