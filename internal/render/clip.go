package render

import "math"

// Band is one horizontal slice of a polygon filled with a single colour.
type Band struct {
	Points []Point
	Color  Color
}

// MaxGradientBands caps how many bands GradientBands produces. Taller
// polygons get proportionally taller bands.
const MaxGradientBands = 1024

// GradientBands approximates a gradient fill of poly by slicing it into
// horizontal bands of the given height, each filled with the gradient
// colour at its middle. Backends without native gradients use it.
func GradientBands(poly []Point, g VerticalGradient, step float64) []Band {
	if len(poly) < 3 || !(step > 0) {
		return nil
	}

	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range poly {
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	span := maxY - minY
	if math.IsNaN(span) || math.IsInf(span, 0) || span <= 0 {
		return nil
	}

	// Counting bands with an integer keeps the loop finite even where
	// top+step == top in float64.
	n := int(math.Ceil(span / step))
	if n > MaxGradientBands {
		n = MaxGradientBands
		step = span / float64(n)
	}

	var bands []Band
	for i := range n {
		top := minY + float64(i)*step
		bottom := math.Min(top+step, maxY)
		if i == n-1 {
			bottom = maxY
		}
		slice := ClipBand(poly, top, bottom)
		if len(slice) < 3 {
			continue
		}
		bands = append(bands, Band{Points: slice, Color: g.At((top + bottom) / 2)})
	}
	return bands
}

// ClipBand clips poly to the slab top <= y <= bottom (Sutherland-Hodgman
// against two horizontal edges).
//
// SUTHERLAND-HODGMAN:
// Clip against one edge at a time. Walk the polygon's edges prev → cur:
//
//	prev in,  cur in   → keep cur
//	prev out, cur in   → keep the crossing point, then cur
//	prev in,  cur out  → keep the crossing point
//	prev out, cur out  → keep nothing
//
// The output is the polygon on the inside of that edge; running it again
// for the second edge leaves the part inside both.
func ClipBand(poly []Point, top, bottom float64) []Point {
	out := clipY(poly, top, func(p Point) bool { return p.Y >= top })
	return clipY(out, bottom, func(p Point) bool { return p.Y <= bottom })
}

func clipY(poly []Point, y float64, inside func(Point) bool) []Point {
	if len(poly) == 0 {
		return nil
	}

	out := make([]Point, 0, len(poly)+2)
	prev := poly[len(poly)-1]
	for _, cur := range poly {
		switch {
		case inside(cur):
			if !inside(prev) {
				out = append(out, crossY(prev, cur, y))
			}
			out = append(out, cur)
		case inside(prev):
			out = append(out, crossY(prev, cur, y))
		}
		prev = cur
	}
	return out
}

// crossY is where segment a-b crosses the horizontal line at y. Only called
// when a and b lie on different sides, so a.Y != b.Y.
func crossY(a, b Point, y float64) Point {
	t := (y - a.Y) / (b.Y - a.Y)
	return Point{X: a.X + t*(b.X-a.X), Y: y}
}
