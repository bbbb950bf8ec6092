// Package notify implements the two concrete fall-observer notification
// transports: an HTTP push notifier and a local serial alarm-relay.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/fallwatch/internal/falldetect"
	"github.com/banshee-data/fallwatch/internal/httputil"
	"github.com/banshee-data/fallwatch/internal/monitoring"
)

// pushPayload is the JSON body posted to the webhook, per spec §6's
// "event id, confirmation timestamp (human-readable), notification count".
type pushPayload struct {
	EventID           string `json:"event_id"`
	ConfirmedAtHuman  string `json:"confirmed_at_human"`
	NotificationCount uint32 `json:"notification_count"`
}

// PushNotifier is a fall-observer that posts JSON to a configured webhook
// URL. Failed deliveries are queued and retried before the next send, per
// the spec's "retry semantics: queue on failure, drain on next success"
// transport contract.
type PushNotifier struct {
	client     httputil.HTTPClient
	webhookURL string

	mu     sync.Mutex
	queued []pushPayload
}

// NewPushNotifier creates a PushNotifier posting to webhookURL via client.
func NewPushNotifier(client httputil.HTTPClient, webhookURL string) *PushNotifier {
	return &PushNotifier{client: client, webhookURL: webhookURL}
}

// OnFallConfirmed implements statemachine.FallObserver.
func (p *PushNotifier) OnFallConfirmed(ev falldetect.FallEvent) {
	payload := pushPayload{
		EventID:           ev.EventID,
		ConfirmedAtHuman:  time.Unix(int64(ev.ConfirmedAt), 0).UTC().Format(time.RFC3339),
		NotificationCount: ev.NotificationCount,
	}
	p.send(payload)
}

// OnFallRecovered implements statemachine.FallObserver. The push transport
// only notifies on confirm/re-notify; recovery has no user-visible push per
// spec §6.
func (p *PushNotifier) OnFallRecovered(falldetect.FallEvent) {}

func (p *PushNotifier) send(payload pushPayload) {
	p.mu.Lock()
	p.queued = append(p.queued, payload)
	pending := append([]pushPayload(nil), p.queued...)
	p.mu.Unlock()

	var delivered int
	for _, pl := range pending {
		if err := p.post(pl); err != nil {
			monitoring.Logf("notify: push delivery failed for %s, queuing for retry: %v", pl.EventID, err)
			break
		}
		delivered++
	}

	p.mu.Lock()
	p.queued = p.queued[delivered:]
	p.mu.Unlock()
}

func (p *PushNotifier) post(payload pushPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}
	resp, err := p.client.Post(p.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
