// Package rule maps a detector Subject to a fallen boolean. Two
// interchangeable variants are provided: a bbox aspect-ratio rule and a
// torso-angle pose rule. Neither variant enforces temporal logic; that is
// the debounce state machine's job.
package rule

import "github.com/banshee-data/fallwatch/internal/falldetect"

// Engine maps a Subject, observed at a timestamp, to a fallen boolean.
type Engine interface {
	Evaluate(subject falldetect.Subject, timestamp float64) bool
}

// BBoxRule implements the aspect-ratio fall rule: fallen iff the subject is
// a BBox and its aspect ratio is strictly below Threshold.
type BBoxRule struct {
	Threshold float64
}

// NewBBoxRule creates a BBoxRule with the spec default threshold of 1.3.
func NewBBoxRule() BBoxRule {
	return BBoxRule{Threshold: 1.3}
}

// Evaluate implements Engine.
func (r BBoxRule) Evaluate(subject falldetect.Subject, _ float64) bool {
	if subject.Kind != falldetect.SubjectBBox {
		return false
	}
	return subject.BBox.AspectRatio() < r.Threshold
}

// Smoother is the subset of smoother.Smoother's API the pose rule depends
// on, kept as an interface here so the rule package has no import-time
// dependency on the smoother package's concrete type.
type Smoother interface {
	Smooth(skel falldetect.Skeleton, timestamp float64) falldetect.Skeleton
}

// PoseRule implements the torso-angle fall rule: requires the four torso
// keypoints to be visible, then compares torso angle to Threshold.
type PoseRule struct {
	Threshold     float64
	MinVisibility float32
	Smoother      Smoother // optional; nil disables smoothing
}

// NewPoseRule creates a PoseRule with the spec defaults (angle threshold
// 60 degrees, min visibility 0.3) and no smoothing.
func NewPoseRule() PoseRule {
	return PoseRule{Threshold: 60.0, MinVisibility: 0.3}
}

// Evaluate implements Engine.
func (r PoseRule) Evaluate(subject falldetect.Subject, timestamp float64) bool {
	if subject.Kind != falldetect.SubjectSkeleton {
		return false
	}
	skel := subject.Skeleton
	if r.Smoother != nil {
		skel = r.Smoother.Smooth(skel, timestamp)
	}
	if !skel.TorsoVisible(r.MinVisibility) {
		return false
	}
	return skel.TorsoAngle() >= r.Threshold
}
