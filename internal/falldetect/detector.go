package falldetect

// NullDetector is a placeholder Detector that always reports no subject. The
// real pose/bbox model is an external collaborator (opaque model file,
// loaded and run outside this package); deployments wire in their own
// Detector implementation. NullDetector lets the rest of the pipeline run
// and be exercised without one.
type NullDetector struct{}

// Detect implements orchestrator.Detector.
func (NullDetector) Detect(Frame) Subject { return NoSubject }

// NullPoseDetector is a placeholder collector.PoseDetector that never
// finds a skeleton. Like NullDetector, it stands in for the external pose
// model the collector invokes to build a skeleton-sequence file.
type NullPoseDetector struct{}

// Detect implements collector.PoseDetector.
func (NullPoseDetector) Detect(Frame) (Skeleton, bool) { return Skeleton{}, false }
