package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Raster paints onto an RGBA bitmap. Paths go through go-chart's raster
// graphic context (anti-aliased, with caps and joins); text goes through an
// x/image font.Drawer using go-chart's bundled Roboto face, or the fixed
// 7x13 bitmap face when the TrueType font cannot be loaded.
type Raster struct {
	mu     sync.Mutex
	width  float64
	height float64
	dpr    float64
	img    *image.RGBA
	gc     *drawing.RasterGraphicContext
	ttf    *truetype.Font
	faces  map[float64]font.Face
}

var _ Surface = (*Raster)(nil)

// NewRaster returns a cleared bitmap of ceil(width*dpr) x ceil(height*dpr)
// device pixels.
func NewRaster(width, height, dpr float64) *Raster {
	r := &Raster{}
	if f, err := chart.GetDefaultFont(); err == nil {
		r.ttf = f
	}
	r.Resize(width, height, dpr)
	return r
}

func (r *Raster) Resize(width, height, dpr float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.width, r.height, r.dpr = width, height, normalizeDPR(dpr)
	w, h := BackingSize(width, height, r.dpr)
	r.img = image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	r.gc = newContext(r.img)
	r.faces = make(map[float64]font.Face)
}

// newContext cannot fail: the context only rejects non-RGBA images.
func newContext(img *image.RGBA) *drawing.RasterGraphicContext {
	gc, err := drawing.NewRasterGraphicContext(img)
	if err != nil {
		panic("render: raster context: " + err.Error())
	}
	return gc
}

func (r *Raster) Size() (float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

// Clear resets every pixel to transparent.
func (r *Raster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	draw.Draw(r.img, r.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// path traces points in device pixels onto the current path.
func (r *Raster) path(points []Point, closed bool) {
	r.gc.BeginPath()
	for i, p := range points {
		x, y := p.X*r.dpr, p.Y*r.dpr
		if i == 0 {
			r.gc.MoveTo(x, y)
		} else {
			r.gc.LineTo(x, y)
		}
	}
	if closed {
		r.gc.Close()
	}
}

func (r *Raster) applyStroke(s Stroke) {
	r.gc.SetStrokeColor(s.Color.NRGBA())
	r.gc.SetLineWidth(s.Width * r.dpr)
	if s.Round {
		r.gc.SetLineCap(drawing.RoundCap)
		r.gc.SetLineJoin(drawing.RoundJoin)
	} else {
		r.gc.SetLineCap(drawing.ButtCap)
		r.gc.SetLineJoin(drawing.MiterJoin)
	}
}

func (r *Raster) StrokeLine(from, to Point, s Stroke) {
	r.StrokePolyline([]Point{from, to}, s)
}

func (r *Raster) StrokePolyline(points []Point, s Stroke) {
	if len(points) < 2 || s.Width <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyStroke(s)
	r.path(points, false)
	r.gc.Stroke()
}

func (r *Raster) FillPolygon(points []Point, c Color) {
	if len(points) < 3 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gc.SetFillColor(c.NRGBA())
	r.path(points, true)
	r.gc.Fill()
}

// FillGradient rasterises the polygon into a coverage mask and composites a
// per-row gradient image through it, so the gradient is exact per pixel.
//
// MASKED COMPOSITING:
// go-chart's graphic context fills with one colour, so the gradient is
// built in two steps:
//  1. Fill the polygon in opaque white on a blank mask image. After
//     anti-aliasing, each mask pixel's alpha is how much of that pixel the
//     polygon covers (0 outside, 255 inside, in between on the edges).
//  2. draw.DrawMask(dst, r, src, sp, mask, mp, draw.Over) blends src into
//     dst scaled by the mask's alpha. src is gradientImage, a virtual image
//     whose At(x, y) computes the gradient colour for row y; no pixels are
//     stored for it.
//
// Rows are converted back to logical pixels (y / dpr, sampled at the pixel
// centre) because the gradient stops are given in logical coordinates.
func (r *Raster) FillGradient(points []Point, g VerticalGradient) {
	if len(points) < 3 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	bounds := r.img.Bounds()
	mask := image.NewRGBA(bounds)
	mgc := newContext(mask)
	mgc.SetFillColor(color.White)
	mgc.BeginPath()
	for i, p := range points {
		if i == 0 {
			mgc.MoveTo(p.X*r.dpr, p.Y*r.dpr)
		} else {
			mgc.LineTo(p.X*r.dpr, p.Y*r.dpr)
		}
	}
	mgc.Close()
	mgc.Fill()

	draw.DrawMask(r.img, bounds, gradientImage{g: g, dpr: r.dpr, bounds: bounds}, image.Point{}, mask, image.Point{}, draw.Over)
}

// gradientImage colours each row by the gradient; x is ignored. It
// satisfies image.Image with three methods and computes pixels on demand.
type gradientImage struct {
	g      VerticalGradient
	dpr    float64
	bounds image.Rectangle
}

func (gi gradientImage) ColorModel() color.Model { return color.NRGBAModel }
func (gi gradientImage) Bounds() image.Rectangle { return gi.bounds }
func (gi gradientImage) At(_, y int) color.Color {
	return gi.g.At((float64(y) + 0.5) / gi.dpr).NRGBA()
}

func (r *Raster) Circle(center Point, radius float64, fill Color, s Stroke) {
	if radius <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.applyStroke(s)
	r.gc.SetFillColor(fill.NRGBA())
	r.gc.BeginPath()
	r.gc.ArcTo(center.X*r.dpr, center.Y*r.dpr, radius*r.dpr, radius*r.dpr, 0, 2*math.Pi)
	r.gc.Close()
	if s.Width > 0 {
		r.gc.FillStroke()
	} else {
		r.gc.Fill()
	}
}

// face returns a cached face for a logical font size.
func (r *Raster) face(size float64) font.Face {
	px := size * r.dpr
	if f, ok := r.faces[px]; ok {
		return f
	}
	var f font.Face = basicfont.Face7x13
	if r.ttf != nil {
		f = truetype.NewFace(r.ttf, &truetype.Options{Size: px, DPI: 72, Hinting: font.HintingFull})
	}
	r.faces[px] = f
	return f
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

// FillText draws text at a baseline. Bold is synthesised by a second pass
// offset by half a logical pixel.
func (r *Raster) FillText(text string, x, y float64, f Font, c Color) {
	if text == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	face := r.face(f.Size)
	if f.Center {
		advance := font.MeasureString(face, text)
		x -= float64(advance) / 64 / r.dpr / 2
	}

	d := &font.Drawer{
		Dst:  r.img,
		Src:  image.NewUniform(c.NRGBA()),
		Face: face,
		Dot:  fixed.Point26_6{X: toFixed(x * r.dpr), Y: toFixed(y * r.dpr)},
	}
	d.DrawString(text)
	if f.Bold {
		d.Dot = fixed.Point26_6{X: toFixed((x + 0.5) * r.dpr), Y: toFixed(y * r.dpr)}
		d.DrawString(text)
	}
}

// Image returns the backing bitmap. It is shared, not copied.
func (r *Raster) Image() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.img
}

// EncodePNG writes the bitmap as PNG.
func (r *Raster) EncodePNG(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return png.Encode(w, r.img)
}
