package forensics

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/rules"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// neutralScore stands in for a sub-detector that failed
const neutralScore = 0.5

// detectorResult is the outcome of one authenticity sub-detector
type detectorResult struct {
	Score float64
	Err   error
}

// detector scores one tampering indicator in [0,1]
type detector func(f *frame) float64

// runDetector converts a panic into an error result with the neutral score
func runDetector(name string, d detector, f *frame, out *detectorResult) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				*out = detectorResult{Score: neutralScore, Err: fmt.Errorf("%s detector: %v", name, r)}
			}
		}()
		*out = detectorResult{Score: clamp01(d(f))}
		return nil
	}
}

// compressionScore combines the spread of the cosine spectrum with the mean
// intensity variance of whole 8x8 blocks
func compressionScore(f *frame) float64 {
	coeffs := dct2(f.gray)
	// DC term is the image mean, not an artifact
	freqVariance := 0.0
	if len(coeffs) > 1 {
		freqVariance = stat.PopVariance(coeffs[1:], nil)
	}

	const block = 8
	var blockVariance float64
	for y := 0; y < f.h-block; y += block {
		for x := 0; x < f.w-block; x += block {
			blockVariance += stat.PopVariance(f.gray.region(x, y, x+block, y+block), nil)
		}
	}
	if cells := (f.h / block) * (f.w / block); cells > 0 {
		blockVariance /= float64(cells)
	} else {
		blockVariance = 0
	}

	return math.Min(1, (freqVariance/1000+blockVariance/100)/2)
}

// noiseScore looks at the high-pass residual: its spread, and how far the
// strongest spectral peak stands above the other top-10 peaks
func noiseScore(f *frame) float64 {
	blurred := gaussianBlur(f.gray, 5)
	residual := newPlane(f.w, f.h)
	for i, v := range f.gray.pix {
		residual.pix[i] = math.Max(0, v-blurred.pix[i])
	}
	_, variance := residual.meanVariance()
	noiseStd := math.Sqrt(variance)

	mags := fftMagnitudes(residual)
	sort.Float64s(mags)
	top := mags[max(0, len(mags)-10):]
	var ratio float64
	if mean := stat.Mean(top, nil); mean > 0 {
		ratio = floats.Max(top) / mean
	}

	return math.Min(1, (noiseStd/50+ratio/100)/2)
}

// colorScore is the fraction of cells in a 4x4 grid whose L*a*b* mean or
// spread lies more than two standard deviations from the grid average
func colorScore(f *frame) float64 {
	const grid = 4
	l, a, b := labConvert(f)
	channels := []*plane{l, a, b}

	// six statistics per cell: three means then three standard deviations.
	// Images narrower or shorter than the grid leave some cells empty; those
	// are skipped rather than counted as black cells.
	stats := make([][]float64, 0, grid*grid)
	for i := 0; i < grid; i++ {
		for j := 0; j < grid; j++ {
			y0, y1 := i*f.h/grid, (i+1)*f.h/grid
			x0, x1 := j*f.w/grid, (j+1)*f.w/grid
			if x1 <= x0 || y1 <= y0 {
				continue
			}
			cell := make([]float64, 6)
			for c, ch := range channels {
				mean, variance := stat.PopMeanVariance(ch.region(x0, y0, x1, y1), nil)
				cell[c] = mean
				cell[c+3] = math.Sqrt(variance)
			}
			stats = append(stats, cell)
		}
	}
	if len(stats) < 2 {
		return 0
	}

	outliers := 0
	column := make([]float64, len(stats))
	flagged := make([]bool, len(stats))
	for k := 0; k < 6; k++ {
		for i, cell := range stats {
			column[i] = cell[k]
		}
		mean, variance := stat.PopMeanVariance(column, nil)
		std := math.Sqrt(variance)
		if std < 1e-9 {
			continue
		}
		for i, v := range column {
			if math.Abs(v-mean)/(std+1e-8) > 2 {
				flagged[i] = true
			}
		}
	}
	for _, out := range flagged {
		if out {
			outliers++
		}
	}
	return float64(outliers) / float64(len(stats))
}

// edgeScorer returns the edge-discontinuity detector: the fraction of
// significant contours that turn sharper than maxAngle somewhere along their length
func edgeScorer(minPoints int, maxAngle float64) detector {
	return func(f *frame) float64 {
		var total, broken int
		for _, contour := range contours(f.edges, f.w, f.h) {
			if len(contour) <= minPoints {
				continue
			}
			total++
			if sharpTurn(contour, maxAngle) {
				broken++
			}
		}
		return float64(broken) / float64(max(total, 1))
	}
}

// sharpTurn reports whether the direction between consecutive interior points
// changes by more than maxAngle radians
func sharpTurn(contour []image.Point, maxAngle float64) bool {
	for i := 2; i < len(contour)-2; i++ {
		v1x, v1y := float64(contour[i].X-contour[i-1].X), float64(contour[i].Y-contour[i-1].Y)
		v2x, v2y := float64(contour[i+1].X-contour[i].X), float64(contour[i+1].Y-contour[i].Y)
		norm := math.Hypot(v1x, v1y)*math.Hypot(v2x, v2y) + 1e-8
		cos := math.Max(-1, math.Min(1, (v1x*v2x+v1y*v2y)/norm))
		if math.Acos(cos) > maxAngle {
			return true
		}
	}
	return false
}

// namedDetector pairs a detector with its rule table name
type namedDetector struct {
	name string
	run  detector
}

// pixelDetectors lists the pixel detectors in report order
func pixelDetectors(r *rules.ImageRules) []namedDetector {
	return []namedDetector{
		{rules.DetectorCompression, compressionScore},
		{rules.DetectorNoise, noiseScore},
		{rules.DetectorColor, colorScore},
		{rules.DetectorEdge, edgeScorer(r.MinContourPoints, r.MaxAngleChange)},
	}
}

// assessAuthenticity runs the pixel detectors in parallel and the metadata
// check, then deducts for every exceeded threshold from 1.0
func assessAuthenticity(f *frame, content []byte, r *rules.ImageRules) model.AuthenticityDetails {
	return assessWith(f, content, r, pixelDetectors(r))
}

// assessWith scores f with the given detectors. A failed detector keeps the
// neutral score, records its error and deducts nothing.
func assessWith(f *frame, content []byte, r *rules.ImageRules, detectors []namedDetector) model.AuthenticityDetails {
	results := make([]detectorResult, len(detectors))
	var g errgroup.Group
	for i, d := range detectors {
		g.Go(runDetector(d.name, d.run, f, &results[i]))
	}
	_ = g.Wait()

	details := model.AuthenticityDetails{Issues: []string{}}

	score := 1.0
	for i, d := range detectors {
		res := results[i]
		switch d.name {
		case rules.DetectorCompression:
			details.CompressionScore = res.Score
		case rules.DetectorNoise:
			details.NoiseScore = res.Score
		case rules.DetectorColor:
			details.ColorScore = res.Score
		case rules.DetectorEdge:
			details.EdgeScore = res.Score
		}
		if res.Err != nil {
			if details.Errors == nil {
				details.Errors = map[string]string{}
			}
			details.Errors[d.name] = res.Err.Error()
			continue
		}
		rule := r.Detectors[d.name]
		if res.Score > rule.Threshold {
			details.Issues = append(details.Issues, rule.Issue)
			score -= rule.Deduction
		}
	}

	details.Metadata = checkMetadata(content, r.EditingSoftware)
	if details.Metadata.Suspicious {
		details.Issues = append(details.Issues, details.Metadata.Issues...)
		score -= r.MetadataDeduction
	}

	details.Score = clamp01(score)
	return details
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return neutralScore
	}
	return math.Max(0, math.Min(1, v))
}
