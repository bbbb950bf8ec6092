package falldetect

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/fallwatch/internal/fsutil"
	"github.com/banshee-data/fallwatch/internal/security"
)

// clipManifest describes a clip's constituent frames. Actual video
// encoding (MP4 at source fps) is an external collaborator per the core's
// scope; ManifestClipWriter records the frame set a real encoder would
// consume instead of producing video itself.
type clipManifest struct {
	EventID    string    `json:"event_id"`
	FrameCount int       `json:"frame_count"`
	Timestamps []float64 `json:"timestamps"`
}

// ManifestClipWriter implements orchestrator.ClipWriter by recording the
// frame set for a confirmed event as a JSON manifest under OutputDir. FS
// defaults to the real filesystem; tests supply fsutil.NewMemoryFileSystem
// to exercise WriteClip without touching disk.
type ManifestClipWriter struct {
	OutputDir string
	FS        fsutil.FileSystem
}

// NewManifestClipWriter creates a ManifestClipWriter rooted at outputDir,
// backed by the real filesystem.
func NewManifestClipWriter(outputDir string) *ManifestClipWriter {
	return &ManifestClipWriter{OutputDir: outputDir, FS: fsutil.OSFileSystem{}}
}

// WriteClip implements orchestrator.ClipWriter.
func (w *ManifestClipWriter) WriteClip(event FallEvent, frames []Frame) (string, error) {
	manifest := clipManifest{EventID: event.EventID, FrameCount: len(frames)}
	for _, f := range frames {
		manifest.Timestamps = append(manifest.Timestamps, f.Timestamp)
	}

	path := filepath.Join(w.OutputDir, fmt.Sprintf("%s.clip.json", event.EventID))
	if err := security.ValidatePathWithinDirectory(path, w.OutputDir); err != nil {
		return "", fmt.Errorf("validate clip path: %w", err)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal clip manifest: %w", err)
	}
	fs := w.FS
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	if err := fs.MkdirAll(w.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create clip output dir: %w", err)
	}
	if err := fs.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write clip manifest: %w", err)
	}
	return path, nil
}
