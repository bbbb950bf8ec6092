package smoother

import "github.com/banshee-data/fallwatch/internal/falldetect"

// DefaultMinCutoff, DefaultBeta, and DefaultDCutoff are the spec-mandated
// One-Euro defaults.
const (
	DefaultMinCutoff        = 1.0
	DefaultBeta             = 0.007
	DefaultDCutoff          = 1.0
	DefaultVisibilityReset  = 0.3
)

// Config holds the tunable One-Euro parameters plus the visibility
// threshold below which a keypoint's filters are reset rather than
// smoothed.
type Config struct {
	MinCutoff        float64
	Beta             float64
	DCutoff          float64
	VisibilityReset  float64
}

// DefaultConfig returns the spec's default One-Euro parameters.
func DefaultConfig() Config {
	return Config{
		MinCutoff:       DefaultMinCutoff,
		Beta:            DefaultBeta,
		DCutoff:         DefaultDCutoff,
		VisibilityReset: DefaultVisibilityReset,
	}
}

// pointFilter is the pair of One-Euro filters (x, y) for a single keypoint.
type pointFilter struct {
	x, y *oneEuro
}

// Smoother maintains one pair of One-Euro filters per COCO-17 keypoint (34
// filter instances total) and produces a smoothed skeleton given a raw
// skeleton and timestamp.
type Smoother struct {
	cfg     Config
	filters [falldetect.NumKeypoints]pointFilter
}

// New creates a Smoother with the given configuration.
func New(cfg Config) *Smoother {
	s := &Smoother{cfg: cfg}
	s.initFilters()
	return s
}

// NewDefault creates a Smoother using the spec's default parameters.
func NewDefault() *Smoother {
	return New(DefaultConfig())
}

func (s *Smoother) initFilters() {
	for i := range s.filters {
		s.filters[i] = pointFilter{
			x: newOneEuro(s.cfg.MinCutoff, s.cfg.Beta, s.cfg.DCutoff),
			y: newOneEuro(s.cfg.MinCutoff, s.cfg.Beta, s.cfg.DCutoff),
		}
	}
}

// Smooth returns a new skeleton with each keypoint's x/y run through its
// One-Euro filter. Visibility is passed through unchanged. If a keypoint's
// visibility is below the configured reset threshold, that keypoint's
// filters are reset and its raw value passed through, preventing "ghost"
// anchoring of previously-seen points.
func (s *Smoother) Smooth(skel falldetect.Skeleton, timestamp float64) falldetect.Skeleton {
	out := skel
	for i, kp := range skel.Keypoints {
		pf := &s.filters[i]
		if float64(kp.Visibility) < s.cfg.VisibilityReset {
			pf.x.reset()
			pf.y.reset()
			out.Keypoints[i] = kp
			continue
		}
		out.Keypoints[i] = falldetect.Keypoint{
			X:          float32(pf.x.filter(float64(kp.X), timestamp)),
			Y:          float32(pf.y.filter(float64(kp.Y), timestamp)),
			Visibility: kp.Visibility,
		}
	}
	return out
}

// Reset zeroes all 34 filter instances, for use when tracking ends.
func (s *Smoother) Reset() {
	s.initFilters()
}
