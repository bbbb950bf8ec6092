package collector

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/fallwatch/internal/falldetect"
)

type fakeBuffer struct {
	frames []falldetect.Frame
}

func (b *fakeBuffer) GetClip(eventTime, before, after float64) []falldetect.Frame {
	return b.frames
}

type fakeDetector struct{}

func (fakeDetector) Detect(f falldetect.Frame) (falldetect.Skeleton, bool) {
	var s falldetect.Skeleton
	for i := range s.Keypoints {
		s.Keypoints[i] = falldetect.Keypoint{X: 1, Y: 1, Visibility: 0.9}
	}
	return s, true
}

func TestCollector_ResolvesClearedEvent(t *testing.T) {
	dir := t.TempDir()
	buf := &fakeBuffer{frames: []falldetect.Frame{{Timestamp: 1}, {Timestamp: 2}}}
	c := New(buf, fakeDetector{}, DefaultConfig(dir))
	defer c.Shutdown()

	ev := falldetect.SuspectedEvent{SuspectedID: "abc", SuspectedAt: 1, Outcome: falldetect.OutcomeCleared, OutcomeAt: 2}
	c.OnFallSuspected(falldetect.SuspectedEvent{SuspectedID: "abc", SuspectedAt: 1})
	c.OnSuspicionCleared(ev)
	c.Shutdown()

	path := filepath.Join(dir, "abc_cleared.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected output file, got error: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid JSON written: %v", err)
	}
	if got["keypoint_format"] != "coco17" {
		t.Errorf("keypoint_format = %v, want coco17", got["keypoint_format"])
	}
}

func TestCollector_EmptyClipSkipped(t *testing.T) {
	dir := t.TempDir()
	buf := &fakeBuffer{frames: nil}
	c := New(buf, fakeDetector{}, DefaultConfig(dir))

	ev := falldetect.SuspectedEvent{SuspectedID: "empty", SuspectedAt: 1, Outcome: falldetect.OutcomeConfirmed}
	c.OnFallConfirmedUpdate(ev)
	c.Shutdown()

	if _, err := os.ReadFile(filepath.Join(dir, "empty_confirmed.json")); err == nil {
		t.Fatal("expected no output file for an empty clip")
	}
}

func TestCollector_ShutdownDrainsQueue(t *testing.T) {
	dir := t.TempDir()
	buf := &fakeBuffer{frames: []falldetect.Frame{{Timestamp: 1}}}
	cfg := DefaultConfig(dir)
	cfg.Workers = 1
	c := New(buf, fakeDetector{}, cfg)

	for i := 0; i < 5; i++ {
		id := time.Now().Format("150405") + string(rune('a'+i))
		c.OnFallConfirmedUpdate(falldetect.SuspectedEvent{SuspectedID: id, SuspectedAt: 1, Outcome: falldetect.OutcomeConfirmed})
	}
	c.Shutdown()

	entries, _ := os.ReadDir(dir)
	if len(entries) != 5 {
		t.Fatalf("expected 5 drained output files, got %d", len(entries))
	}
}
