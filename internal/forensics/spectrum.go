package forensics

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// dct2 returns the separable 2-D cosine transform of p, row-major.
// Each axis is scaled by 1/sqrt(2(n-1)) so coefficient magnitudes stay on
// the pixel scale; an axis of length 1 is passed through.
func dct2(p *plane) []float64 {
	out := make([]float64, len(p.pix))
	copy(out, p.pix)

	if p.w > 1 {
		dct := fourier.NewDCT(p.w)
		scale := 1 / math.Sqrt(2*float64(p.w-1))
		row := make([]float64, p.w)
		for y := 0; y < p.h; y++ {
			seg := out[y*p.w : (y+1)*p.w]
			dct.Transform(row, seg)
			for x, v := range row {
				seg[x] = v * scale
			}
		}
	}

	if p.h > 1 {
		dct := fourier.NewDCT(p.h)
		scale := 1 / math.Sqrt(2*float64(p.h-1))
		col := make([]float64, p.h)
		res := make([]float64, p.h)
		for x := 0; x < p.w; x++ {
			for y := 0; y < p.h; y++ {
				col[y] = out[y*p.w+x]
			}
			dct.Transform(res, col)
			for y, v := range res {
				out[y*p.w+x] = v * scale
			}
		}
	}
	return out
}

// fftMagnitudes returns |F(u,v)| of the unnormalized 2-D discrete Fourier
// transform of p, row-major
func fftMagnitudes(p *plane) []float64 {
	data := make([]complex128, len(p.pix))
	for i, v := range p.pix {
		data[i] = complex(v, 0)
	}

	if p.w > 1 {
		fft := fourier.NewCmplxFFT(p.w)
		for y := 0; y < p.h; y++ {
			seg := data[y*p.w : (y+1)*p.w]
			fft.Coefficients(seg, seg)
		}
	}

	if p.h > 1 {
		fft := fourier.NewCmplxFFT(p.h)
		col := make([]complex128, p.h)
		for x := 0; x < p.w; x++ {
			for y := 0; y < p.h; y++ {
				col[y] = data[y*p.w+x]
			}
			fft.Coefficients(col, col)
			for y, v := range col {
				data[y*p.w+x] = v
			}
		}
	}

	mags := make([]float64, len(data))
	for i, v := range data {
		mags[i] = cmplx.Abs(v)
	}
	return mags
}
