package forensics

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

// plane is one channel of an image as row-major float samples on the 0..255 scale
type plane struct {
	w, h int
	pix []float64
}

func newPlane(w, h int) *plane {
	return &plane{w: w, h: h, pix: make([]float64, w*h)}
}

func (p *plane) at(x, y int) float64 {
	return p.pix[y*p.w+x]
}

// border returns the sample at (x, y) with the edge mirrored without repeating
// the border row or column (gfedcb|abcdefgh|gfedcba)
func (p *plane) border(x, y int) float64 {
	return p.pix[reflect101(y, p.h)*p.w+reflect101(x, p.w)]
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*n - 2 - i
		}
	}
	return i
}

// region copies the rectangle [x0,x1) x [y0,y1)
func (p *plane) region(x0, y0, x1, y1 int) []float64 {
	if x1 <= x0 || y1 <= y0 {
		return nil
	}
	out := make([]float64, 0, (x1-x0)*(y1-y0))
	for y := y0; y < y1; y++ {
		out = append(out, p.pix[y*p.w+x0:y*p.w+x1]...)
	}
	return out
}

func (p *plane) meanVariance() (float64, float64) {
	return stat.PopMeanVariance(p.pix, nil)
}

// frame holds the channels every detector reads. It is built once per image
// and never written after construction.
type frame struct {
	w, h    int
	r, g, b *plane
	gray   *plane
	edges  []bool
	nEdges int
}

func newFrame(img image.Image) *frame {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	f := &frame{
		w:    w,
		h:    h,
		r:    newPlane(w, h),
		g:    newPlane(w, h),
		b:    newPlane(w, h),
		gray: newPlane(w, h),
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*w + x
			f.r.pix[i] = float64(r >> 8)
			f.g.pix[i] = float64(g >> 8)
			f.b.pix[i] = float64(b >> 8)
			f.gray.pix[i] = math.Round(0.299*f.r.pix[i] + 0.587*f.g.pix[i] + 0.114*f.b.pix[i])
		}
	}

	f.edges = canny(f.gray, cannyLow, cannyHigh)
	for _, e := range f.edges {
		if e {
			f.nEdges++
		}
	}
	return f
}

func (f *frame) pixels() int {
	return f.w * f.h
}

// edgeDensity is the fraction of pixels on an edge
func (f *frame) edgeDensity() float64 {
	if f.pixels() == 0 {
		return 0
	}
	return float64(f.nEdges) / float64(f.pixels())
}

// convolve applies a square kernel with mirrored borders
func convolve(p *plane, kernel []float64, size int) *plane {
	out := newPlane(p.w, p.h)
	half := size / 2
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var sum float64
			for ky := 0; ky < size; ky++ {
				for kx := 0; kx < size; kx++ {
					k := kernel[ky*size+kx]
					if k == 0 {
						continue
					}
					sum += k * p.border(x+kx-half, y+ky-half)
				}
			}
			out.pix[y*p.w+x] = sum
		}
	}
	return out
}

// gaussianKernel builds a normalized size x size kernel. A sigma of zero
// derives it from the size the same way common imaging libraries do.
func gaussianKernel(size int, sigma float64) []float64 {
	if sigma <= 0 {
		sigma = 0.3*(float64(size-1)*0.5-1) + 0.8
	}
	half := size / 2
	line := make([]float64, size)
	var total float64
	for i := range line {
		d := float64(i - half)
		line[i] = math.Exp(-d * d / (2 * sigma * sigma))
		total += line[i]
	}
	kernel := make([]float64, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			kernel[y*size+x] = line[y] * line[x] / (total * total)
		}
	}
	return kernel
}

func gaussianBlur(p *plane, size int) *plane {
	blurred := convolve(p, gaussianKernel(size, 0), size)
	for i, v := range blurred.pix {
		blurred.pix[i] = math.Round(v)
	}
	return blurred
}

var laplacianKernel = []float64{
	0, 1, 0,
	1, -4, 1,
	0, 1, 0,
}

// laplacianVariance is the variance of the second derivative, a focus measure
func laplacianVariance(p *plane) float64 {
	if p.w*p.h == 0 {
		return 0
	}
	_, variance := convolve(p, laplacianKernel, 3).meanVariance()
	return variance
}

var (
	sobelX = []float64{
		-1, 0, 1,
		-2, 0, 2,
		-1, 0, 1,
	}
	sobelY = []float64{
		-1, -2, -1,
		0, 0, 0,
		1, 2, 1,
	}
)

// Hysteresis thresholds on the L1 gradient magnitude
const (
	cannyLow  = 50
	cannyHigh = 150
)

// canny marks edge pixels: Sobel gradients, non-maximum suppression along the
// gradient direction, then hysteresis from strong pixels through weak ones
func canny(p *plane, low, high float64) []bool {
	w, h := p.w, p.h
	edges := make([]bool, w*h)
	if w < 3 || h < 3 {
		return edges
	}

	gx := convolve(p, sobelX, 3)
	gy := convolve(p, sobelY, 3)
	mag := make([]float64, w*h)
	for i := range mag {
		mag[i] = math.Abs(gx.pix[i]) + math.Abs(gy.pix[i])
	}
	magAt := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	const (
		tan22 = 0.41421356237309503
		tan67 = 2.414213562373095
	)
	candidate := make([]bool, w*h)
	var stack []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			dx, dy := gx.pix[i], gy.pix[i]
			ax, ay := math.Abs(dx), math.Abs(dy)

			var n1, n2 float64
			switch {
			case ay <= ax*tan22:
				n1, n2 = magAt(x-1, y), magAt(x+1, y)
			case ay >= ax*tan67:
				n1, n2 = magAt(x, y-1), magAt(x, y+1)
			case (dx > 0) == (dy > 0):
				n1, n2 = magAt(x-1, y-1), magAt(x+1, y+1)
			default:
				n1, n2 = magAt(x+1, y-1), magAt(x-1, y+1)
			}
			if m <= n1 || m < n2 {
				continue
			}

			candidate[i] = true
			if m > high {
				edges[i] = true
				stack = append(stack, i)
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for _, d := range neighbors {
			nx, ny := x+d.X, y+d.Y
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			j := ny*w + nx
			if candidate[j] && !edges[j] {
				edges[j] = true
				stack = append(stack, j)
			}
		}
	}
	return edges
}

// dilate grows a mask with a size x size rectangle anchored at size/2
func dilate(mask []bool, w, h, size int) []bool {
	lo, hi := -(size / 2), size-size/2-1

	rows := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for d := lo; d <= hi; d++ {
				sx := x + d
				if sx >= 0 && sx < w && mask[y*w+sx] {
					rows[y*w+x] = true
					break
				}
			}
		}
	}

	out := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for d := lo; d <= hi; d++ {
				sy := y + d
				if sy >= 0 && sy < h && rows[sy*w+x] {
					out[y*w+x] = true
					break
				}
			}
		}
	}
	return out
}

// labConvert maps sRGB to CIE L*a*b* (D65) scaled to 0..255 per channel
func labConvert(f *frame) (l, a, b *plane) {
	l, a, b = newPlane(f.w, f.h), newPlane(f.w, f.h), newPlane(f.w, f.h)
	for i := range f.r.pix {
		rl := srgbToLinear(f.r.pix[i] / 255)
		gl := srgbToLinear(f.g.pix[i] / 255)
		bl := srgbToLinear(f.b.pix[i] / 255)

		x := (0.412453*rl + 0.357580*gl + 0.180423*bl) / 0.950456
		y := 0.212671*rl + 0.715160*gl + 0.072169*bl
		z := (0.019334*rl + 0.119193*gl + 0.950227*bl) / 1.088754

		fx, fy, fz := labF(x), labF(y), labF(z)
		lightness := 116*fy - 16
		if y <= 0.008856 {
			lightness = 903.3 * y
		}
		l.pix[i] = lightness * 255 / 100
		a.pix[i] = 500*(fx-fy) + 128
		b.pix[i] = 200*(fy-fz) + 128
	}
	return l, a, b
}

func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func labF(t float64) float64 {
	if t > 0.008856 {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116.0
}
