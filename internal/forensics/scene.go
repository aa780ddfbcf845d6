package forensics

import (
	"math"
	"sort"

	"github.com/ppiankov/claimlens/internal/model"
	"gonum.org/v1/gonum/floats"
)

const (
	// sharpBlurScore is the Laplacian variance above which an image counts as sharp
	sharpBlurScore = 100
	dominantColors = 5
	// kmeansSamples caps the pixels clustered for dominant colors
	kmeansSamples = 4096
	kmeansRounds  = 20
)

// goodExposure is the lighting rule shared by the quality score and the scene report
func goodExposure(brightness, contrast float64) bool {
	return brightness > 50 && brightness < 200 && contrast > 20
}

// analyzeScene reports lighting, focus and the dominant colors of f
func analyzeScene(f *frame) *model.SceneAnalysis {
	brightness, variance := f.gray.meanVariance()
	contrast := math.Sqrt(variance)
	scene := &model.SceneAnalysis{
		Lighting: model.Lighting{Brightness: brightness, Contrast: contrast, Quality: "poor"},
		Focus:    model.Focus{BlurScore: laplacianVariance(f.gray), Quality: "blurred"},
	}
	if goodExposure(brightness, contrast) {
		scene.Lighting.Quality = "good"
	}
	if scene.Focus.BlurScore > sharpBlurScore {
		scene.Focus.Quality = "sharp"
	}
	scene.DominantColors = dominantColorsOf(f, dominantColors)
	return scene
}

// dominantColorsOf clusters a strided sample of pixels with k-means. Seeding
// is deterministic, so the same image always yields the same colors.
func dominantColorsOf(f *frame, k int) [][3]int {
	samples := samplePixels(f, kmeansSamples)
	if len(samples) == 0 {
		return [][3]int{}
	}

	distinct := make(map[[3]float64]struct{})
	for _, s := range samples {
		distinct[[3]float64{s[0], s[1], s[2]}] = struct{}{}
		if len(distinct) >= k {
			break
		}
	}
	k = min(k, len(distinct))

	centers := seedCenters(samples, k)

	assign := make([]int, len(samples))
	sizes := make([]int, k)
	for round := 0; round < kmeansRounds; round++ {
		changed := round == 0
		for i, s := range samples {
			best, bestDist := 0, math.Inf(1)
			for c, center := range centers {
				if d := floats.Distance(s, center, 2); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, 3)
			sizes[c] = 0
		}
		for i, s := range samples {
			floats.Add(sums[assign[i]], s)
			sizes[assign[i]]++
		}
		for c := range centers {
			// an empty cluster keeps its previous center
			if sizes[c] > 0 {
				floats.ScaleTo(centers[c], 1/float64(sizes[c]), sums[c])
			}
		}
	}

	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return sizes[order[i]] > sizes[order[j]] })

	out := make([][3]int, 0, k)
	for _, c := range order {
		ctr := centers[c]
		out = append(out, [3]int{int(math.Round(ctr[0])), int(math.Round(ctr[1])), int(math.Round(ctr[2]))})
	}
	return out
}

// seedCenters starts from the median-luminance sample and repeatedly adds the
// sample farthest from every chosen center
func seedCenters(samples [][]float64, k int) [][]float64 {
	byLuminance := make([][]float64, len(samples))
	copy(byLuminance, samples)
	sort.SliceStable(byLuminance, func(i, j int) bool { return luminance(byLuminance[i]) < luminance(byLuminance[j]) })

	centers := [][]float64{append([]float64(nil), byLuminance[len(byLuminance)/2]...)}
	nearest := make([]float64, len(samples))
	for i, s := range samples {
		nearest[i] = floats.Distance(s, centers[0], 2)
	}
	for len(centers) < k {
		far := floats.MaxIdx(nearest)
		next := append([]float64(nil), samples[far]...)
		centers = append(centers, next)
		for i, s := range samples {
			nearest[i] = math.Min(nearest[i], floats.Distance(s, next, 2))
		}
	}
	return centers
}

// samplePixels returns up to limit RGB triples taken at a fixed stride
func samplePixels(f *frame, limit int) [][]float64 {
	n := f.pixels()
	step := max(1, (n+limit-1)/limit)
	out := make([][]float64, 0, n/step+1)
	for i := 0; i < n; i += step {
		out = append(out, []float64{f.r.pix[i], f.g.pix[i], f.b.pix[i]})
	}
	return out
}

func luminance(rgb []float64) float64 {
	return 0.299*rgb[0] + 0.587*rgb[1] + 0.114*rgb[2]
}
