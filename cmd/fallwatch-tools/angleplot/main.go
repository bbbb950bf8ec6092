// Command angleplot renders raw-vs-smoothed torso-angle time series from a
// skeleton-sequence JSON file (the collector package's output format), for
// offline tuning of the One Euro filter and angle threshold.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/fallwatch/internal/falldetect"
	"github.com/banshee-data/fallwatch/internal/falldetect/smoother"
)

var (
	inFile    = flag.String("in", "", "Path to a skeleton-sequence JSON file")
	outFile   = flag.String("out", "angle.png", "Path to write the rendered PNG")
	minCutoff = flag.Float64("min-cutoff", smoother.DefaultMinCutoff, "One Euro filter min cutoff")
	beta      = flag.Float64("beta", smoother.DefaultBeta, "One Euro filter beta")
	threshold = flag.Float64("threshold", 60.0, "Torso angle threshold to overlay, in degrees")
)

type sequenceFrame struct {
	FrameIndex int                   `json:"frame_index"`
	Timestamp  float64               `json:"timestamp"`
	Keypoints  map[string][3]float32 `json:"keypoints"`
}

type skeletonFile struct {
	Metadata struct {
		FPS float64 `json:"fps"`
	} `json:"metadata"`
	Sequence []sequenceFrame `json:"sequence"`
}

func main() {
	flag.Parse()
	if *inFile == "" {
		log.Fatal("-in is required")
	}

	data, err := os.ReadFile(*inFile)
	if err != nil {
		log.Fatalf("failed to read %s: %v", *inFile, err)
	}
	var seqFile skeletonFile
	if err := json.Unmarshal(data, &seqFile); err != nil {
		log.Fatalf("failed to parse %s: %v", *inFile, err)
	}
	if len(seqFile.Sequence) == 0 {
		log.Fatal("sequence has no frames")
	}

	sm := smoother.New(smoother.Config{
		MinCutoff:       *minCutoff,
		Beta:            *beta,
		DCutoff:         smoother.DefaultDCutoff,
		VisibilityReset: smoother.DefaultVisibilityReset,
	})

	rawPts := make(plotter.XYs, 0, len(seqFile.Sequence))
	smoothedPts := make(plotter.XYs, 0, len(seqFile.Sequence))
	rawAngles := make([]float64, 0, len(seqFile.Sequence))
	smoothedAngles := make([]float64, 0, len(seqFile.Sequence))
	for _, f := range seqFile.Sequence {
		skel := skeletonFromKeypoints(f.Keypoints)
		rawAngle := skel.TorsoAngle()
		smoothed := sm.Smooth(skel, f.Timestamp)
		smoothedAngle := smoothed.TorsoAngle()

		rawPts = append(rawPts, plotter.XY{X: f.Timestamp, Y: rawAngle})
		smoothedPts = append(smoothedPts, plotter.XY{X: f.Timestamp, Y: smoothedAngle})
		rawAngles = append(rawAngles, rawAngle)
		smoothedAngles = append(smoothedAngles, smoothedAngle)
	}

	printSummary("raw", rawAngles)
	printSummary("smoothed", smoothedAngles)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Torso angle: raw vs smoothed (%s)", *inFile)
	p.X.Label.Text = "Timestamp (s)"
	p.Y.Label.Text = "Torso angle (deg)"

	rawLine, err := plotter.NewLine(rawPts)
	if err != nil {
		log.Fatalf("failed to build raw line: %v", err)
	}
	rawLine.Width = vg.Points(1)
	p.Add(rawLine)
	p.Legend.Add("raw", rawLine)

	smoothedLine, err := plotter.NewLine(smoothedPts)
	if err != nil {
		log.Fatalf("failed to build smoothed line: %v", err)
	}
	smoothedLine.Width = vg.Points(2)
	p.Add(smoothedLine)
	p.Legend.Add("smoothed", smoothedLine)

	thresholdPts := plotter.XYs{
		{X: rawPts[0].X, Y: *threshold},
		{X: rawPts[len(rawPts)-1].X, Y: *threshold},
	}
	thresholdLine, err := plotter.NewLine(thresholdPts)
	if err != nil {
		log.Fatalf("failed to build threshold line: %v", err)
	}
	p.Add(thresholdLine)
	p.Legend.Add("threshold", thresholdLine)

	p.Legend.Top = true

	if err := p.Save(12*vg.Inch, 6*vg.Inch, *outFile); err != nil {
		log.Fatalf("failed to save plot: %v", err)
	}
	fmt.Printf("wrote %s (%d frames)\n", *outFile, len(seqFile.Sequence))
}

// printSummary reports mean, standard deviation, and median for a torso-
// angle series, to gauge how much a smoothing pass actually damps jitter.
func printSummary(label string, angles []float64) {
	sorted := append([]float64(nil), angles...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(angles, nil)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	fmt.Printf("%-9s mean=%.2f stddev=%.2f median=%.2f\n", label, mean, std, median)
}

// skeletonFromKeypoints reconstructs a falldetect.Skeleton from the
// name-keyed keypoint map a skeleton-sequence file stores on disk.
func skeletonFromKeypoints(kp map[string][3]float32) falldetect.Skeleton {
	var skel falldetect.Skeleton
	for idx, name := range falldetect.CocoKeypointNames {
		v, ok := kp[name]
		if !ok {
			continue
		}
		skel.Keypoints[idx] = falldetect.Keypoint{X: v[0], Y: v[1], Visibility: v[2]}
	}
	return skel
}
