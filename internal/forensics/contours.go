package forensics

import (
	"image"
	"sort"
)

// neighbors lists the 8-neighborhood clockwise from east (y grows downward)
var neighbors = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

func neighborIndex(d image.Point) int {
	for i, n := range neighbors {
		if n == d {
			return i
		}
	}
	return -1
}

// blob is one 8-connected foreground component
type blob struct {
	start  image.Point // top-most, then left-most pixel
	bounds image.Rectangle
	area   int
}

// blobs labels the 8-connected components of mask in raster order
func blobs(mask []bool, w, h int) []blob {
	seen := make([]bool, len(mask))
	var out []blob
	var stack []int

	for i, on := range mask {
		if !on || seen[i] {
			continue
		}
		b := blob{
			start:  image.Pt(i%w, i/w),
			bounds: image.Rect(i%w, i/w, i%w+1, i/w+1),
		}
		seen[i] = true
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := j%w, j/w
			b.area++
			b.bounds = b.bounds.Union(image.Rect(x, y, x+1, y+1))
			for _, d := range neighbors {
				nx, ny := x+d.X, y+d.Y
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				k := ny*w + nx
				if mask[k] && !seen[k] {
					seen[k] = true
					stack = append(stack, k)
				}
			}
		}
		out = append(out, b)
	}
	return out
}

// traceContour follows the outer boundary of the blob containing start with
// Moore-neighbor tracing and returns the boundary pixels in order
func traceContour(mask []bool, w, h int, start image.Point) []image.Point {
	on := func(p image.Point) bool {
		return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h && mask[p.Y*w+p.X]
	}

	// The pixel west of the start is background: nothing earlier in raster order is set.
	next := func(p, back image.Point) (image.Point, image.Point, bool) {
		from := neighborIndex(back.Sub(p))
		prev := back
		for k := 1; k <= 8; k++ {
			c := p.Add(neighbors[(from+k)%8])
			if on(c) {
				return c, prev, true
			}
			prev = c
		}
		return p, back, false
	}

	points := []image.Point{start}
	cur, back := start, start.Add(image.Pt(-1, 0))
	second, back, ok := next(cur, back)
	if !ok {
		return points
	}
	cur = second

	limit := 4*w*h + 8
	for i := 0; i < limit; i++ {
		c, b, _ := next(cur, back)
		if cur == start && c == second {
			break
		}
		points = append(points, cur)
		cur, back = c, b
	}
	return points
}

// simplify keeps only the points where the chain changes direction, so
// straight runs collapse to their end points
func simplify(points []image.Point) []image.Point {
	n := len(points)
	if n < 3 {
		return points
	}
	var out []image.Point
	for i := range points {
		prev := points[(i-1+n)%n]
		next := points[(i+1)%n]
		if points[i].Sub(prev) != next.Sub(points[i]) {
			out = append(out, points[i])
		}
	}
	if len(out) == 0 {
		return points[:1]
	}
	return out
}

// contours returns the simplified outer contour of every blob in mask
func contours(mask []bool, w, h int) [][]image.Point {
	var out [][]image.Point
	for _, b := range blobs(mask, w, h) {
		out = append(out, simplify(traceContour(mask, w, h, b.start)))
	}
	return out
}

// largestBlobs returns blobs with area above minArea, largest first
func largestBlobs(mask []bool, w, h int, minArea float64, limit int) []blob {
	var kept []blob
	for _, b := range blobs(mask, w, h) {
		if float64(b.area) > minArea {
			kept = append(kept, b)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].area > kept[j].area
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
