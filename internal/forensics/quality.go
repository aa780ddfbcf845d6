package forensics

import (
	"fmt"
	"image"
	"math"

	"github.com/ppiankov/claimlens/internal/model"
	"golang.org/x/image/draw"
)

// qualityScore averages resolution, sharpness and exposure
func qualityScore(f *frame) float64 {
	resolution := math.Min(1, float64(f.pixels())/1e6)
	sharpness := math.Min(1, laplacianVariance(f.gray)/200)

	brightness, variance := f.gray.meanVariance()
	exposure := 0.5
	if goodExposure(brightness, math.Sqrt(variance)) {
		exposure = 1.0
	}

	return (resolution + sharpness + exposure) / 3
}

func basicInfo(img image.Image, format string, size int) *model.BasicInfo {
	b := img.Bounds()
	info := &model.BasicInfo{
		Width:        b.Dx(),
		Height:       b.Dy(),
		Format:       format,
		UniqueColors: uniqueColors(img),
		AverageHash:  averageHash(img),
		SizeBytes:    size,
	}
	if info.Height > 0 {
		info.AspectRatio = float64(info.Width) / float64(info.Height)
	}
	return info
}

func uniqueColors(img image.Image) int {
	b := img.Bounds()
	seen := make(map[[4]uint32]struct{})
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			seen[[4]uint32{r, g, bl, a}] = struct{}{}
		}
	}
	return len(seen)
}

// averageHash is the 64-bit perceptual hash: an 8x8 grayscale thumbnail with
// one bit per pixel set when it is brighter than the thumbnail mean
func averageHash(img image.Image) string {
	thumb := image.NewGray(image.Rect(0, 0, 8, 8))
	draw.CatmullRom.Scale(thumb, thumb.Bounds(), img, img.Bounds(), draw.Src, nil)

	var total int
	for _, v := range thumb.Pix {
		total += int(v)
	}
	mean := float64(total) / float64(len(thumb.Pix))

	var hash uint64
	for i, v := range thumb.Pix {
		if float64(v) > mean {
			hash |= 1 << (63 - uint(i))
		}
	}
	return fmt.Sprintf("%016x", hash)
}
