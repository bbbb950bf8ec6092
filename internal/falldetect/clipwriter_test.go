package falldetect

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/fallwatch/internal/fsutil"
)

func TestManifestClipWriter_WritesManifest(t *testing.T) {
	dir := t.TempDir()
	w := NewManifestClipWriter(dir)

	event := FallEvent{EventID: "evt_3"}
	frames := []Frame{{Timestamp: 1.0}, {Timestamp: 2.0}, {Timestamp: 3.0}}

	path, err := w.WriteClip(event, frames)
	if err != nil {
		t.Fatalf("WriteClip() error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("path = %q, want dir %q", path, dir)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	var manifest clipManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("failed to unmarshal manifest: %v", err)
	}
	if manifest.FrameCount != 3 {
		t.Errorf("FrameCount = %d, want 3", manifest.FrameCount)
	}
	if manifest.EventID != "evt_3" {
		t.Errorf("EventID = %q, want evt_3", manifest.EventID)
	}
}

func TestManifestClipWriter_WritesToMemoryFileSystem(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	w := &ManifestClipWriter{OutputDir: "/clips", FS: mem}

	event := FallEvent{EventID: "evt_9"}
	frames := []Frame{{Timestamp: 5.0}}

	path, err := w.WriteClip(event, frames)
	if err != nil {
		t.Fatalf("WriteClip() error: %v", err)
	}
	if !mem.Exists(path) {
		t.Fatalf("expected %s to exist in the memory filesystem", path)
	}

	data, err := mem.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read back manifest: %v", err)
	}
	var manifest clipManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("failed to unmarshal manifest: %v", err)
	}
	if manifest.EventID != "evt_9" {
		t.Errorf("EventID = %q, want evt_9", manifest.EventID)
	}
}

func TestNullDetector_AlwaysNoSubject(t *testing.T) {
	var d NullDetector
	subj := d.Detect(Frame{})
	if subj.Kind != SubjectNone {
		t.Errorf("Kind = %v, want SubjectNone", subj.Kind)
	}
}

func TestNullPoseDetector_NeverFinds(t *testing.T) {
	var d NullPoseDetector
	_, ok := d.Detect(Frame{})
	if ok {
		t.Error("expected NullPoseDetector to never find a skeleton")
	}
}
