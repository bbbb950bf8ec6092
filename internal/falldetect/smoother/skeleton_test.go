package smoother

import (
	"math"
	"testing"

	"github.com/banshee-data/fallwatch/internal/falldetect"
)

func constSkeleton(x, y, vis float32) falldetect.Skeleton {
	var skel falldetect.Skeleton
	for i := range skel.Keypoints {
		skel.Keypoints[i] = falldetect.Keypoint{X: x, Y: y, Visibility: vis}
	}
	return skel
}

func TestSmoother_IdempotenceOnConstantSignal(t *testing.T) {
	s := NewDefault()
	var last falldetect.Skeleton
	for i := 0; i < 60; i++ {
		last = s.Smooth(constSkeleton(100, 200, 1.0), float64(i)*(1.0/30.0))
	}
	for _, kp := range last.Keypoints {
		if math.Abs(float64(kp.X)-100) > 1e-3 {
			t.Errorf("converged X = %v, want ~100", kp.X)
		}
		if math.Abs(float64(kp.Y)-200) > 1e-3 {
			t.Errorf("converged Y = %v, want ~200", kp.Y)
		}
	}
}

func TestSmoother_Boundedness(t *testing.T) {
	s := NewDefault()
	const xmin, ymin = 0.0, 0.0
	const xmax, ymax = 640.0, 480.0
	for i := 0; i < 200; i++ {
		t0 := float64(i) * (1.0 / 30.0)
		v := float32(320 + 100*math.Sin(float64(i)))
		out := s.Smooth(constSkeleton(v, 240, 1.0), t0)
		for _, kp := range out.Keypoints {
			if float64(kp.X) < xmin-1e-6 || float64(kp.X) > xmax+1e-6 {
				t.Fatalf("frame %d: X=%v out of input bound range", i, kp.X)
			}
			if float64(kp.Y) < ymin-1e-6 || float64(kp.Y) > ymax+1e-6 {
				t.Fatalf("frame %d: Y=%v out of input bound range", i, kp.Y)
			}
		}
	}
}

func TestSmoother_FirstSampleUnchanged(t *testing.T) {
	s := NewDefault()
	in := constSkeleton(50, 60, 0.9)
	out := s.Smooth(in, 0)
	if out.Keypoints[0] != in.Keypoints[0] {
		t.Fatalf("first sample altered: got %+v, want %+v", out.Keypoints[0], in.Keypoints[0])
	}
}

func TestSmoother_VisibilityResetPassesRawThrough(t *testing.T) {
	s := NewDefault()
	s.Smooth(constSkeleton(10, 10, 1.0), 0)
	s.Smooth(constSkeleton(10, 10, 1.0), 1.0/30)

	lowVis := constSkeleton(999, 999, 0.1)
	out := s.Smooth(lowVis, 2.0/30)
	for _, kp := range out.Keypoints {
		if kp.X != 999 || kp.Y != 999 {
			t.Fatalf("expected raw passthrough on low visibility, got %+v", kp)
		}
	}
}

func TestSmoother_NonPositiveDtCoerced(t *testing.T) {
	s := NewDefault()
	s.Smooth(constSkeleton(0, 0, 1.0), 5.0)
	// out-of-order timestamp: dt <= 0, must not panic.
	out := s.Smooth(constSkeleton(1, 1, 1.0), 5.0)
	_ = out
	out = s.Smooth(constSkeleton(2, 2, 1.0), 4.0)
	_ = out
}

func TestAlpha_MonotonicInCutoff(t *testing.T) {
	dt := 1.0 / 30.0
	lo := alpha(1.0, dt)
	hi := alpha(10.0, dt)
	if hi <= lo {
		t.Fatalf("alpha should increase with cutoff frequency: alpha(1)=%v alpha(10)=%v", lo, hi)
	}
}
