// Package collector implements the Skeleton Collector: a suspected-event
// observer that snapshots the rolling buffer on resolution and extracts a
// labeled skeleton sequence in the background, off the detection thread.
package collector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/banshee-data/fallwatch/internal/falldetect"
	"github.com/banshee-data/fallwatch/internal/monitoring"
	"github.com/banshee-data/fallwatch/internal/security"
)

// Buffer is the subset of the rolling buffer's API the collector depends
// on, kept as an interface so tests can supply a fake without importing
// the buffer package's concrete Ring type.
type Buffer interface {
	GetClip(eventTime, beforeSec, afterSec float64) []falldetect.Frame
}

// PoseDetector runs pose inference on a single frame. External collaborator
// per spec §6; the collector only depends on this narrow interface.
type PoseDetector interface {
	Detect(frame falldetect.Frame) (falldetect.Skeleton, bool)
}

// Config holds the collector's tunable parameters.
type Config struct {
	BeforeSec  float64
	AfterSec   float64
	Workers    int
	OutputDir  string
	SourceName string // reported in the output file's metadata.source_video
	FPS        float64
}

// DefaultConfig returns the spec's default collector parameters (2 workers,
// 5s before/after).
func DefaultConfig(outputDir string) Config {
	return Config{
		BeforeSec: 5,
		AfterSec:  5,
		Workers:   2,
		OutputDir: outputDir,
		FPS:       15,
	}
}

// job is one unit of background extraction work: a resolved suspected event
// plus the frames already snapshotted from the buffer.
type job struct {
	event  falldetect.SuspectedEvent
	frames []falldetect.Frame
}

// Collector implements statemachine.SuspectedObserver. On suspicion entry it
// records the event in a pending map; on resolution it snapshots the clip
// synchronously (before the buffer can evict it) and hands the work to a
// bounded worker pool.
type Collector struct {
	buf      Buffer
	detector PoseDetector
	cfg      Config

	// pending is touched only from the detection thread (observer
	// callbacks), so it needs no lock of its own.
	pending map[string]falldetect.SuspectedEvent

	jobs   chan job
	wg     sync.WaitGroup
	closed bool
	mu     sync.Mutex // guards closed and job submission
}

// New creates a Collector and starts its worker pool.
func New(buf Buffer, detector PoseDetector, cfg Config) *Collector {
	c := &Collector{
		buf:      buf,
		detector: detector,
		cfg:      cfg,
		pending:  make(map[string]falldetect.SuspectedEvent),
		jobs:     make(chan job, 64),
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	return c
}

// OnFallSuspected records the event; extraction is deferred until
// resolution.
func (c *Collector) OnFallSuspected(ev falldetect.SuspectedEvent) {
	c.pending[ev.SuspectedID] = ev
}

// OnSuspicionCleared snapshots and submits extraction work labeled
// "cleared".
func (c *Collector) OnSuspicionCleared(ev falldetect.SuspectedEvent) {
	c.resolve(ev)
}

// OnFallConfirmedUpdate snapshots and submits extraction work labeled
// "confirmed".
func (c *Collector) OnFallConfirmedUpdate(ev falldetect.SuspectedEvent) {
	c.resolve(ev)
}

func (c *Collector) resolve(ev falldetect.SuspectedEvent) {
	delete(c.pending, ev.SuspectedID)

	// Snapshot now, on the calling (detection) thread: later frames may be
	// evicted by the time a background worker could acquire the buffer.
	frames := c.buf.GetClip(ev.SuspectedAt, c.cfg.BeforeSec, c.cfg.AfterSec)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		monitoring.Logf("collector: dropping job for %s, collector is shut down", ev.SuspectedID)
		return
	}
	c.jobs <- job{event: ev, frames: frames}
}

func (c *Collector) worker() {
	defer c.wg.Done()
	for j := range c.jobs {
		c.extract(j)
	}
}

func (c *Collector) extract(j job) {
	if len(j.frames) == 0 {
		monitoring.Logf("collector: empty clip for %s, skipping extraction", j.event.SuspectedID)
		return
	}

	seq, err := c.buildSequence(j)
	if err != nil {
		monitoring.Logf("collector: extraction failed for %s: %v", j.event.SuspectedID, err)
		return
	}

	label := j.event.Outcome.String()
	path := filepath.Join(c.cfg.OutputDir, fmt.Sprintf("%s_%s.json", j.event.SuspectedID, label))
	if err := security.ValidatePathWithinDirectory(path, c.cfg.OutputDir); err != nil {
		monitoring.Logf("collector: refusing to write outside output dir: %v", err)
		return
	}
	if err := writeSequenceFile(path, seq); err != nil {
		monitoring.Logf("collector: failed writing %s: %v", path, err)
	}
}

// skeletonFile mirrors the on-disk JSON schema in spec §6.
type skeletonFile struct {
	Metadata struct {
		EventID     string  `json:"event_id"`
		Timestamp   string  `json:"timestamp"`
		SourceVideo string  `json:"source_video"`
		DurationSec float64 `json:"duration_sec"`
		FPS         float64 `json:"fps"`
		TotalFrames int     `json:"total_frames"`
		Extractor   struct {
			Engine  string `json:"engine"`
			Model   string `json:"model"`
			Version string `json:"version"`
		} `json:"extractor"`
	} `json:"metadata"`
	KeypointFormat string          `json:"keypoint_format"`
	Sequence       []sequenceFrame `json:"sequence"`
	Version        string          `json:"version"`
}

type sequenceFrame struct {
	FrameIndex int                  `json:"frame_index"`
	Timestamp  float64              `json:"timestamp"`
	Keypoints  map[string][3]float32 `json:"keypoints"`
}

func (c *Collector) buildSequence(j job) (skeletonFile, error) {
	var out skeletonFile
	out.KeypointFormat = "coco17"
	out.Version = "1.0"
	out.Metadata.EventID = j.event.SuspectedID
	out.Metadata.Timestamp = time.Unix(int64(j.event.SuspectedAt), 0).UTC().Format(time.RFC3339)
	out.Metadata.SourceVideo = c.cfg.SourceName
	out.Metadata.FPS = c.cfg.FPS
	out.Metadata.Extractor.Engine = "fallwatch"
	out.Metadata.Extractor.Model = "pose-external"
	out.Metadata.Extractor.Version = "1.0"

	width, height := frameDimensions(j.frames[0])

	out.Sequence = make([]sequenceFrame, 0, len(j.frames))
	for i, f := range j.frames {
		skel, ok := c.detector.Detect(f)
		if !ok {
			continue
		}
		kp := make(map[string][3]float32, falldetect.NumKeypoints)
		for idx, name := range falldetect.CocoKeypointNames {
			k := skel.Keypoints[idx]
			xn, yn := float32(0), float32(0)
			if width > 0 {
				xn = k.X / float32(width)
			}
			if height > 0 {
				yn = k.Y / float32(height)
			}
			kp[name] = [3]float32{xn, yn, k.Visibility}
		}
		out.Sequence = append(out.Sequence, sequenceFrame{
			FrameIndex: i,
			Timestamp:  f.Timestamp,
			Keypoints:  kp,
		})
	}
	out.Metadata.TotalFrames = len(out.Sequence)
	if n := len(j.frames); n > 1 {
		out.Metadata.DurationSec = j.frames[n-1].Timestamp - j.frames[0].Timestamp
	}
	return out, nil
}

// frameDimensions returns the pixel width/height of a frame, or (0, 0) if
// no image handle is attached (e.g. in tests).
func frameDimensions(f falldetect.Frame) (int, int) {
	if f.Pixels == nil {
		return 0, 0
	}
	b := f.Pixels.Bounds()
	return b.Dx(), b.Dy()
}

func writeSequenceFile(path string, seq skeletonFile) error {
	data, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal skeleton sequence: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write skeleton sequence: %w", err)
	}
	return nil
}

// Shutdown closes the job queue and waits for in-flight and queued
// extractions to finish.
func (c *Collector) Shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.jobs)
	c.mu.Unlock()
	c.wg.Wait()
}
