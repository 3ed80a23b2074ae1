package render

import (
	"io"
	"math"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/wcharczuk/go-chart/v2"
)

// gradientStep is the band height, in logical pixels, used to approximate
// gradients in SVG output.
const gradientStep = 4

// SVG renders through go-chart's vector renderer. The renderer works in
// whole pixels and has no gradients, caps or joins, so gradients become
// banded fills and strokes use the renderer's defaults. SVG is resolution
// independent: the pixel ratio is ignored.
type SVG struct {
	mu     sync.Mutex
	width  float64
	height float64
	r      chart.Renderer
	ttf    *truetype.Font
}

var _ Surface = (*SVG)(nil)

// NewSVG returns an empty document of the given logical size.
func NewSVG(width, height float64) *SVG {
	s := &SVG{}
	if f, err := chart.GetDefaultFont(); err == nil {
		s.ttf = f
	}
	s.Resize(width, height, 1)
	return s
}

func (s *SVG) Resize(width, height, _ float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
	s.reset()
}

func (s *SVG) reset() {
	w, h := BackingSize(s.width, s.height, 1)
	r, err := chart.SVG(max(w, 1), max(h, 1))
	if err != nil {
		// the vector renderer never fails to construct
		panic("render: svg renderer: " + err.Error())
	}
	// 72 dpi makes font points equal CSS pixels
	r.SetDPI(72)
	if s.ttf != nil {
		r.SetFont(s.ttf)
	}
	s.r = r
}

func (s *SVG) Size() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Clear starts a new empty document.
func (s *SVG) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// STATEFUL RENDERER:
// chart.Renderer works like a pen: set colours and widths (SetStrokeColor,
// SetFillColor...), trace a path (MoveTo, LineTo, Close), then commit it
// with Stroke, Fill or FillStroke. Style persists between paths, so every
// operation below starts with ResetStyle. Coordinates are whole pixels.
func px(v float64) int { return int(math.Round(v)) }

func (s *SVG) path(points []Point, closed bool) {
	for i, p := range points {
		if i == 0 {
			s.r.MoveTo(px(p.X), px(p.Y))
		} else {
			s.r.LineTo(px(p.X), px(p.Y))
		}
	}
	if closed {
		s.r.Close()
	}
}

func (s *SVG) StrokeLine(from, to Point, st Stroke) {
	s.StrokePolyline([]Point{from, to}, st)
}

func (s *SVG) StrokePolyline(points []Point, st Stroke) {
	if len(points) < 2 || st.Width <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.ResetStyle()
	s.r.SetStrokeColor(st.Color.Drawing())
	s.r.SetStrokeWidth(st.Width)
	s.path(points, false)
	s.r.Stroke()
}

func (s *SVG) fill(points []Point, c Color) {
	s.r.ResetStyle()
	s.r.SetFillColor(c.Drawing())
	s.path(points, true)
	s.r.Fill()
}

func (s *SVG) FillPolygon(points []Point, c Color) {
	if len(points) < 3 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fill(points, c)
}

func (s *SVG) FillGradient(points []Point, g VerticalGradient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, band := range GradientBands(points, g, gradientStep) {
		s.fill(band.Points, band.Color)
	}
}

func (s *SVG) Circle(center Point, radius float64, fill Color, st Stroke) {
	if radius <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.ResetStyle()
	s.r.SetFillColor(fill.Drawing())
	s.r.SetStrokeColor(st.Color.Drawing())
	s.r.SetStrokeWidth(st.Width)
	s.r.Circle(radius, px(center.X), px(center.Y))
}

// FillText writes a text element. Font.Bold has no effect: the renderer
// carries a single face.
func (s *SVG) FillText(text string, x, y float64, f Font, c Color) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.ResetStyle()
	if s.ttf != nil {
		s.r.SetFont(s.ttf)
	}
	s.r.SetFontColor(c.Drawing())
	s.r.SetFontSize(f.Size)
	if f.Center {
		if s.ttf != nil {
			x -= float64(s.r.MeasureText(text).Width()) / 2
		} else {
			// rough average glyph width without font metrics
			x -= float64(len(text)) * f.Size * 0.25
		}
	}
	s.r.Text(text, px(x), px(y))
}

// Save writes the finished document.
func (s *SVG) Save(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Save(w)
}
