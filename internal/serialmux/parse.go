package serialmux

import "strings"

const (
	EventTypeAck     = "ack"
	EventTypeNak     = "nak"
	EventTypeConfig  = "config"
	EventTypeUnknown = "unknown"
)

// ClassifyPayload inspects a line read from the alarm panel and returns a
// simple event type token.
func ClassifyPayload(payload string) string {
	if strings.HasPrefix(payload, "OK") || strings.Contains(payload, "ack") {
		return EventTypeAck
	}
	if strings.HasPrefix(payload, "ERR") || strings.Contains(payload, "nak") {
		return EventTypeNak
	}
	if strings.HasPrefix(payload, "{") {
		return EventTypeConfig
	}
	return EventTypeUnknown
}
