package trend

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sakif/medhistory/internal/model"
	"github.com/sakif/medhistory/internal/render"
)

// Loader fetches the readings to plot, ascending by date.
type Loader func(ctx context.Context) ([]model.VitalsReading, error)

// View binds one Surface to a data source and keeps it showing the most
// recently requested data.
//
// Each Refresh takes a generation ticket before its remote read. When the
// read completes, the render only proceeds if no later Refresh has started
// in the meantime; otherwise it is dropped. A slow, superseded read can
// therefore never overwrite the output of a newer one, and drawing itself
// is serialised.
//
// GENERATION TICKETS:
// Two refreshes can overlap, and their reads can finish in either order:
//
//	A: ticket 1 ─ read (slow) ──────────────────┐ gen is 2: drop
//	B:      ticket 2 ─ read (fast) ─┐ gen is 2: draw
//
// The ticket is an atomic counter bumped before the read. After the read a
// refresh takes the mutex and compares its ticket with the counter; only
// the holder of the newest ticket draws. Holding the mutex while comparing
// and drawing means a newer refresh cannot slip in between the check and
// the Clear, and the atomic lets the ticket be taken without waiting for a
// draw in progress.
type View struct {
	surface render.Surface
	load    Loader
	logger  *slog.Logger

	gen atomic.Uint64

	mu       sync.Mutex // guards surface, viewport, last
	viewport Viewport
	last     Geometry
}

// NewView returns a view drawing onto s. Nothing is drawn until Refresh.
func NewView(s render.Surface, vp Viewport, load Loader, logger *slog.Logger) *View {
	return &View{
		surface:  s,
		load:     load,
		logger:   logger,
		viewport: vp,
	}
}

// SetViewport changes the size used by the next render, e.g. when the
// container is resized.
func (v *View) SetViewport(vp Viewport) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.viewport = vp
}

// Refresh reads the series and redraws the surface. A failed read renders
// the empty state instead of surfacing an error, except when ctx was
// cancelled: the caller went away, so the chart other readers see is left
// as it was. It returns the geometry drawn and true, or the previous
// geometry and false when nothing was drawn.
func (v *View) Refresh(ctx context.Context) (Geometry, bool) {
	ticket := v.gen.Add(1)

	readings, err := v.load(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			v.logger.Debug("trend refresh abandoned by caller", "ticket", ticket, "error", err)
			return v.Last(), false
		}
		v.logger.Warn("loading trend data failed, rendering empty chart", "error", err)
		readings = nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// anyone who started after us has a higher ticket
	if v.gen.Load() != ticket {
		v.logger.Debug("dropping superseded trend render", "ticket", ticket)
		return v.last, false
	}

	v.last = Render(v.surface, v.viewport, readings)
	return v.last, true
}

// Last returns the geometry of the most recent completed render.
func (v *View) Last() Geometry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

// Surface returns the bound surface.
func (v *View) Surface() render.Surface {
	return v.surface
}

// Read calls fn with the surface and the geometry of the last render while
// no render is in progress, so fn sees a complete chart.
func (v *View) Read(fn func(s render.Surface, g Geometry)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(v.surface, v.last)
}
