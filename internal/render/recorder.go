package render

import "sync"

// Op kinds recorded by Recorder.
const (
	OpClear    = "clear"
	OpText     = "text"
	OpLine     = "line"
	OpPolyline = "polyline"
	OpPolygon  = "polygon"
	OpGradient = "gradient"
	OpCircle   = "circle"
)

// Op is one recorded drawing call. Only the fields relevant to Kind are set.
type Op struct {
	Kind     string            `json:"op"`
	Points   []Point           `json:"points,omitempty"`
	Text     string            `json:"text,omitempty"`
	X        float64           `json:"x,omitempty"`
	Y        float64           `json:"y,omitempty"`
	Radius   float64           `json:"radius,omitempty"`
	Font     *Font             `json:"font,omitempty"`
	Fill     *Color            `json:"fill,omitempty"`
	Stroke   *Stroke           `json:"stroke,omitempty"`
	Gradient *VerticalGradient `json:"gradient,omitempty"`
}

// DisplayList is the serialisable state of a Recorder.
type DisplayList struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	DPR    float64 `json:"dpr"`
	Ops    []Op    `json:"ops"`
}

// Recorder is a Surface that remembers what was drawn since the last Clear
// or Resize. It is safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	list DisplayList
}

var _ Surface = (*Recorder)(nil)

// NewRecorder returns an empty recorder of the given logical size.
func NewRecorder(width, height, dpr float64) *Recorder {
	r := &Recorder{}
	r.Resize(width, height, dpr)
	return r
}

func (r *Recorder) Resize(width, height, dpr float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = DisplayList{Width: width, Height: height, DPR: normalizeDPR(dpr), Ops: []Op{}}
}

func (r *Recorder) Size() (float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list.Width, r.list.Height
}

// Clear drops everything recorded and records a single clear op.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list.Ops = []Op{{Kind: OpClear}}
}

func (r *Recorder) add(op Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list.Ops = append(r.list.Ops, op)
}

func (r *Recorder) FillText(text string, x, y float64, f Font, c Color) {
	r.add(Op{Kind: OpText, Text: text, X: x, Y: y, Font: &f, Fill: &c})
}

func (r *Recorder) StrokeLine(from, to Point, s Stroke) {
	r.add(Op{Kind: OpLine, Points: []Point{from, to}, Stroke: &s})
}

func (r *Recorder) StrokePolyline(points []Point, s Stroke) {
	r.add(Op{Kind: OpPolyline, Points: append([]Point(nil), points...), Stroke: &s})
}

func (r *Recorder) FillPolygon(points []Point, c Color) {
	r.add(Op{Kind: OpPolygon, Points: append([]Point(nil), points...), Fill: &c})
}

func (r *Recorder) FillGradient(points []Point, g VerticalGradient) {
	r.add(Op{Kind: OpGradient, Points: append([]Point(nil), points...), Gradient: &g})
}

func (r *Recorder) Circle(center Point, radius float64, fill Color, s Stroke) {
	r.add(Op{Kind: OpCircle, X: center.X, Y: center.Y, Radius: radius, Fill: &fill, Stroke: &s})
}

// DisplayList returns a copy of the current state.
func (r *Recorder) DisplayList() DisplayList {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.list
	out.Ops = append([]Op(nil), r.list.Ops...)
	return out
}

// Ops returns a copy of the recorded ops.
func (r *Recorder) Ops() []Op {
	return r.DisplayList().Ops
}

// Texts returns the text of every text op, in drawing order.
func (r *Recorder) Texts() []string {
	var out []string
	for _, op := range r.Ops() {
		if op.Kind == OpText {
			out = append(out, op.Text)
		}
	}
	return out
}
