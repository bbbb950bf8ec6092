package falldetect

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/banshee-data/fallwatch/internal/monitoring"
)

// DirectoryFrameSource yields frames decoded from JPEG/PNG files in a
// directory, in sorted filename order, paced at a fixed FPS. It stands in
// for the camera feed the spec treats as an external collaborator: useful
// for replaying a recorded clip through the pipeline.
type DirectoryFrameSource struct {
	dir string
	fps float64
}

// NewDirectoryFrameSource creates a frame source reading decoded images
// from dir, paced at fps frames per second.
func NewDirectoryFrameSource(dir string, fps float64) *DirectoryFrameSource {
	return &DirectoryFrameSource{dir: dir, fps: fps}
}

// Run reads frames in order and invokes onFrame(frame, t) for each,
// blocking until the directory is exhausted or ctx is canceled.
func (s *DirectoryFrameSource) Run(ctx context.Context, onFrame func(Frame, float64)) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read frame directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	if s.fps <= 0 {
		s.fps = 15
	}
	interval := time.Duration(float64(time.Second) / s.fps)

	start := time.Now()
	for i, name := range names {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		path := filepath.Join(s.dir, name)
		f, err := os.Open(path)
		if err != nil {
			monitoring.Logf("framesource: skipping %s: %v", path, err)
			continue
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			monitoring.Logf("framesource: failed to decode %s: %v", path, err)
			continue
		}

		t := float64(start.Unix()) + float64(i)/s.fps
		onFrame(Frame{Timestamp: t, Pixels: img}, t)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil
}
