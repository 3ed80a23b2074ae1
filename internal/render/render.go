// Package render defines a small 2D drawing surface in logical pixels and
// three implementations of it:
//
//   - Recorder keeps a display list that a browser can replay on a <canvas>
//   - Raster paints into an RGBA bitmap and encodes PNG
//   - SVG emits a vector document through go-chart's SVG renderer
//
// Chart code draws against Surface only, so the same drawing routine feeds
// every output format, and tests can inspect exactly what was drawn.
//
// LOGICAL VS DEVICE PIXELS:
// A chart 600 logical pixels wide on a display with device pixel ratio 2
// needs a 1200 pixel bitmap to look sharp. Callers only ever speak logical
// pixels; each backend multiplies by the ratio on the way in:
//
//	Resize(600, 300, 2) → backing store 1200 x 600
//	FillText("110", 40, 50, ...) → drawn at device (80, 100), font size x2
//
// The Recorder stores logical coordinates plus the ratio, exactly like a
// <canvas> whose context was scaled once with ctx.scale(dpr, dpr).
package render

import (
	"encoding/json"
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Surface is a 2D canvas addressed in logical pixels. Implementations map
// logical pixels to device pixels with the ratio passed to Resize.
type Surface interface {
	// Resize sets the logical size and the device pixel ratio. The backing
	// store becomes ceil(width*dpr) x ceil(height*dpr) and is cleared.
	Resize(width, height, dpr float64)
	// Size returns the logical size.
	Size() (width, height float64)
	// Clear erases everything drawn so far.
	Clear()

	// FillText draws text with its baseline starting at (x, y).
	FillText(text string, x, y float64, f Font, c Color)
	StrokeLine(from, to Point, s Stroke)
	StrokePolyline(points []Point, s Stroke)
	FillPolygon(points []Point, c Color)
	FillGradient(points []Point, g VerticalGradient)
	Circle(center Point, radius float64, fill Color, s Stroke)
}

// Point is a position in logical pixels. Y grows downward.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Font selects the text size in logical pixels. Center makes the x
// coordinate of FillText the horizontal middle of the text instead of its
// left edge.
type Font struct {
	Size   float64 `json:"size"`
	Bold   bool    `json:"bold,omitempty"`
	Center bool    `json:"center,omitempty"`
}

// Stroke describes an outline. Round selects round joins and caps.
type Stroke struct {
	Color Color   `json:"color"`
	Width float64 `json:"width"`
	Round bool    `json:"round,omitempty"`
}

// Color is a straight (non-premultiplied) RGB colour with alpha in [0, 1],
// the same model as CSS rgba().
type Color struct {
	R, G, B uint8
	A       float64
}

// Hex parses "#RRGGBB" or "RRGGBB" into an opaque colour.
func Hex(hex string) Color {
	c := drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
	return Color{R: c.R, G: c.G, B: c.B, A: 1}
}

// RGBA builds a colour from 8-bit channels and a [0, 1] alpha.
func RGBA(r, g, b uint8, a float64) Color {
	return Color{R: r, G: g, B: b, A: clamp01(a)}
}

// White is opaque white.
var White = Color{R: 255, G: 255, B: 255, A: 1}

// CSS renders the colour as "#rrggbb" when opaque and "rgba(r,g,b,a)"
// otherwise.
func (c Color) CSS() string {
	if c.A >= 1 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", c.R, c.G, c.B, formatAlpha(c.A))
}

func formatAlpha(a float64) string {
	s := fmt.Sprintf("%.3f", a)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// MarshalJSON encodes the colour as its CSS string so a display list can be
// replayed on a canvas without conversion.
func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.CSS())
}

func (c Color) alpha8() uint8 {
	return uint8(math.Round(clamp01(c.A) * 255))
}

// NRGBA converts to the standard library colour model.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.alpha8()}
}

// Drawing converts to go-chart's colour type.
func (c Color) Drawing() drawing.Color {
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: c.alpha8()}
}

// VerticalGradient interpolates linearly from From at Y0 to To at Y1.
// Outside [Y0, Y1] the nearest end colour applies.
type VerticalGradient struct {
	Y0   float64 `json:"y0"`
	From Color   `json:"from"`
	Y1   float64 `json:"y1"`
	To   Color   `json:"to"`
}

// At returns the colour at logical height y.
func (g VerticalGradient) At(y float64) Color {
	if g.Y1 == g.Y0 {
		return g.From
	}
	t := clamp01((y - g.Y0) / (g.Y1 - g.Y0))
	lerp := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + t*(float64(b)-float64(a))))
	}
	return Color{
		R: lerp(g.From.R, g.To.R),
		G: lerp(g.From.G, g.To.G),
		B: lerp(g.From.B, g.To.B),
		A: g.From.A + t*(g.To.A-g.From.A),
	}
}

// BackingSize returns the device-pixel dimensions for a logical size.
// A non-positive ratio counts as 1.
func BackingSize(width, height, dpr float64) (int, int) {
	dpr = normalizeDPR(dpr)
	return int(math.Ceil(width * dpr)), int(math.Ceil(height * dpr))
}

func normalizeDPR(dpr float64) float64 {
	if dpr <= 0 || math.IsNaN(dpr) || math.IsInf(dpr, 0) {
		return 1
	}
	return dpr
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
