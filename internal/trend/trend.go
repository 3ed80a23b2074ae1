// Package trend draws the sugar-level trend chart.
//
// The chart is a line over an area filled with a vertical gradient, a
// five-line grid with value labels, a marker and two labels per reading,
// and a title. Everything is drawn against render.Surface in logical
// pixels, so the same routine produces the browser display list, the PNG
// and the SVG.
package trend

import (
	"math"
	"strconv"

	"github.com/sakif/medhistory/internal/model"
	"github.com/sakif/medhistory/internal/render"
)

// Chart constants, in logical pixels unless noted.
const (
	Padding     = 50
	Gridlines   = 5
	AxisFloor   = 200 // mg/dL: the y axis never tops out below this
	VisualFloor = 50  // mg/dL: reported in Geometry, never used to clip

	LineWidth    = 3
	PointRadius  = 4
	MarkerStroke = 2

	Title        = "Sugar Levels (mg/dL)"
	EmptyMessage = "No data available. Add vitals to see trends."
)

var (
	lineColor      = render.Hex("#2563EB")
	gridColor      = render.Hex("#e2e8f0")
	gridLabelColor = render.Hex("#94a3b8")
	valueColor     = render.Hex("#1e293b")
	dateColor      = render.Hex("#64748B")
	areaBottom     = render.RGBA(37, 99, 235, 0.05)
	areaTop        = render.RGBA(37, 99, 235, 0.3)

	titleFont = render.Font{Size: 12, Bold: true}
	valueFont = render.Font{Size: 12, Bold: true}
	labelFont = render.Font{Size: 10}
	emptyFont = render.Font{Size: 14, Center: true}
)

// Viewport is the logical size of the drawing area and the device pixel
// ratio of the display it is shown on.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	DPR    float64 `json:"dpr"`
}

// DefaultViewport matches the chart container of the web client.
var DefaultViewport = Viewport{Width: 600, Height: 300, DPR: 1}

// PlotPoint is one reading placed on the chart.
type PlotPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value int     `json:"value"`
	Date  string  `json:"date"`
	Label string  `json:"label"` // MM-DD
}

// Geometry is the computed layout of a chart.
type Geometry struct {
	Width       float64     `json:"width"`
	Height      float64     `json:"height"`
	ChartWidth  float64     `json:"chartWidth"`
	ChartHeight float64     `json:"chartHeight"`
	Baseline    float64     `json:"baseline"`
	MaxVal      int         `json:"maxVal"`
	MinVal      int         `json:"minVal"`
	YScale      float64     `json:"yScale"`
	Step        float64     `json:"step"`
	Points      []PlotPoint `json:"points"`
}

// Empty reports whether there is nothing to plot.
func (g Geometry) Empty() bool { return len(g.Points) == 0 }

// y maps a value to a logical y coordinate; 0 sits on the baseline.
func (g Geometry) y(v float64) float64 {
	return g.Baseline - v*g.YScale
}

// Layout places readings, assumed ascending by date, on a width x height
// chart. It does not draw anything.
//
// COORDINATES:
// Screen y grows downward, chart values grow upward, so a value maps to
//
//	y = baseline - value * yScale     baseline = height - padding
//	                                  yScale   = chartHeight / maxVal
//
// 0 lands on the baseline and maxVal on the top padding line. maxVal is at
// least AxisFloor, so a week of 90-110 mg/dL readings does not fill the
// whole chart and look alarming. Points are spread evenly in x by index,
// not by date: gaps between logging days do not show.
func Layout(readings []model.VitalsReading, width, height float64) Geometry {
	g := Geometry{
		Width:       width,
		Height:      height,
		ChartWidth:  width - 2*Padding,
		ChartHeight: height - 2*Padding,
		Baseline:    height - Padding,
		MaxVal:      AxisFloor,
		MinVal:      VisualFloor,
		Points:      []PlotPoint{},
	}

	values := make([]int, len(readings))
	for i, r := range readings {
		values[i] = r.Sugar.Int()
		g.MaxVal = max(g.MaxVal, values[i])
		g.MinVal = min(g.MinVal, values[i])
	}
	g.YScale = g.ChartHeight / float64(g.MaxVal)

	n := len(readings)
	if n > 1 {
		g.Step = g.ChartWidth / float64(n-1)
	}

	for i, r := range readings {
		x := Padding + float64(i)*g.Step
		if n == 1 {
			x = Padding + g.ChartWidth/2
		}
		// Rows written before validation existed can hold negative values.
		// They plot on the baseline; the label still shows what was stored.
		plotted := max(values[i], 0)
		g.Points = append(g.Points, PlotPoint{
			X:     x,
			Y:     g.y(float64(plotted)),
			Value: values[i],
			Date:  r.Date,
			Label: r.DateLabel(),
		})
	}
	return g
}

// Render resizes s to vp and draws the chart of readings onto it. It always
// clears first, so repeated calls never accumulate drawing state. An empty
// series draws only the informational message.
func Render(s render.Surface, vp Viewport, readings []model.VitalsReading) Geometry {
	s.Resize(vp.Width, vp.Height, vp.DPR)
	s.Clear()

	g := Layout(readings, vp.Width, vp.Height)
	if g.Empty() {
		s.FillText(EmptyMessage, vp.Width/2, vp.Height/2, emptyFont, dateColor)
		return g
	}

	drawGrid(s, g)
	if len(g.Points) > 1 {
		drawArea(s, g)
	}
	drawLine(s, g)
	drawPoints(s, g)
	s.FillText(Title, g.Width/2-50, 20, titleFont, valueColor)
	return g
}

func drawGrid(s render.Surface, g Geometry) {
	stroke := render.Stroke{Color: gridColor, Width: 1}
	for i := 0; i <= Gridlines; i++ {
		v := float64(g.MaxVal) / Gridlines * float64(i)
		y := g.y(v)
		s.StrokeLine(render.Point{X: Padding, Y: y}, render.Point{X: g.Width - Padding, Y: y}, stroke)
		// FormatFloat: int(v) overflows when MaxVal is near math.MaxInt
		s.FillText(strconv.FormatFloat(math.Round(v), 'f', 0, 64), 10, y+3, labelFont, gridLabelColor)
	}
}

// drawArea fills the region between the line and the baseline, transparent
// near the baseline and denser towards the top of the chart.
func drawArea(s render.Surface, g Geometry) {
	first, last := g.Points[0], g.Points[len(g.Points)-1]

	poly := make([]render.Point, 0, len(g.Points)+2)
	poly = append(poly, render.Point{X: first.X, Y: g.Baseline})
	for _, p := range g.Points {
		poly = append(poly, render.Point{X: p.X, Y: p.Y})
	}
	poly = append(poly, render.Point{X: last.X, Y: g.Baseline})

	s.FillGradient(poly, render.VerticalGradient{
		Y0: g.Baseline, From: areaBottom,
		Y1: Padding, To: areaTop,
	})
}

func drawLine(s render.Surface, g Geometry) {
	pts := make([]render.Point, len(g.Points))
	for i, p := range g.Points {
		pts[i] = render.Point{X: p.X, Y: p.Y}
	}
	s.StrokePolyline(pts, render.Stroke{Color: lineColor, Width: LineWidth, Round: true})
}

func drawPoints(s render.Surface, g Geometry) {
	marker := render.Stroke{Color: lineColor, Width: MarkerStroke}
	for _, p := range g.Points {
		s.Circle(render.Point{X: p.X, Y: p.Y}, PointRadius, render.White, marker)
		s.FillText(strconv.Itoa(p.Value), p.X-5, p.Y-10, valueFont, valueColor)
		s.FillText(p.Label, p.X-15, g.Height-25, labelFont, dateColor)
	}
}
