package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sakif/medhistory/internal/model"
	"github.com/sakif/medhistory/internal/render"
	"github.com/sakif/medhistory/internal/trend"
)

// Viewport bounds accepted from clients.
const (
	MaxViewportSide = 4000
	MaxDPR          = 4
)

// DefaultRefreshTimeout bounds a background chart refresh.
const DefaultRefreshTimeout = 10 * time.Second

// TrendChart is the display list of a rendered chart together with its
// layout.
type TrendChart struct {
	Geometry    trend.Geometry     `json:"geometry"`
	DisplayList render.DisplayList `json:"displayList"`
}

// TrendService renders sugar trend charts.
//
// Each user has one live chart, a trend.View drawing into a display list
// recorder. Concurrent refreshes of the same chart resolve last-write-wins.
// PNG and SVG renders are one-off and draw onto a fresh surface.
type TrendService struct {
	vitals  *VitalsService
	logger  *slog.Logger
	timeout time.Duration

	mu    sync.Mutex
	views map[string]*trendView

	wg sync.WaitGroup
}

type trendView struct {
	view     *trend.View
	recorder *render.Recorder
}

func NewTrendService(vitals *VitalsService, logger *slog.Logger) *TrendService {
	return &TrendService{
		vitals:  vitals,
		logger:  logger,
		timeout: DefaultRefreshTimeout,
		views:   make(map[string]*trendView),
	}
}

// NormalizeViewport fills in defaults and clamps a client supplied size.
// The clamp bounds the bitmap a single request can allocate: 4000 x 4000
// logical pixels at ratio 4 is already 256M device pixels.
func NormalizeViewport(vp trend.Viewport) trend.Viewport {
	def := trend.DefaultViewport
	if vp.Width <= 0 || math.IsNaN(vp.Width) {
		vp.Width = def.Width
	}
	if vp.Height <= 0 || math.IsNaN(vp.Height) {
		vp.Height = def.Height
	}
	if vp.DPR <= 0 || math.IsNaN(vp.DPR) {
		vp.DPR = def.DPR
	}
	vp.Width = min(vp.Width, MaxViewportSide)
	vp.Height = min(vp.Height, MaxViewportSide)
	vp.DPR = min(vp.DPR, MaxDPR)
	return vp
}

func (s *TrendService) loader(userID string) trend.Loader {
	return func(ctx context.Context) ([]model.VitalsReading, error) {
		return s.vitals.Ascending(ctx, userID)
	}
}

func (s *TrendService) viewFor(userID string, vp trend.Viewport) *trendView {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tv, ok := s.views[userID]; ok {
		return tv
	}
	rec := render.NewRecorder(vp.Width, vp.Height, vp.DPR)
	tv := &trendView{
		view:     trend.NewView(rec, vp, s.loader(userID), s.logger.With(slog.String("user_id", userID))),
		recorder: rec,
	}
	s.views[userID] = tv
	return tv
}

// Display refreshes the user's live chart at vp and returns what it shows.
// A read failure shows the empty chart. When a newer refresh overtook this
// one, the newer result is returned.
func (s *TrendService) Display(ctx context.Context, userID string, vp trend.Viewport) TrendChart {
	vp = NormalizeViewport(vp)
	tv := s.viewFor(userID, vp)
	tv.view.SetViewport(vp)
	tv.view.Refresh(ctx)

	var chart TrendChart
	tv.view.Read(func(_ render.Surface, g trend.Geometry) {
		chart = TrendChart{Geometry: g, DisplayList: tv.recorder.DisplayList()}
	})
	return chart
}

// Invalidate redraws the user's live chart in the background, if there is
// one. The refresh outlives the request that triggered it but keeps its
// values, such as the access token.
func (s *TrendService) Invalidate(ctx context.Context, userID string) {
	s.mu.Lock()
	tv, ok := s.views[userID]
	s.mu.Unlock()
	if !ok {
		return
	}

	// DETACHED BACKGROUND WORK:
	// The request that saved the vitals returns before the chart is redrawn,
	// and its context is cancelled when it does. WithoutCancel keeps the
	// context's values (the caller's access token, which the backend needs)
	// but drops its cancellation; WithTimeout then gives the refresh its
	// own deadline. The WaitGroup lets shutdown wait for refreshes still
	// in flight.
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if _, drawn := tv.view.Refresh(ctx); drawn {
			s.logger.Debug("trend chart refreshed", slog.String("user_id", userID))
		}
	}()
}

// Forget drops the user's live chart.
func (s *TrendService) Forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, userID)
}

// Wait blocks until background refreshes have finished.
func (s *TrendService) Wait() {
	s.wg.Wait()
}

func (s *TrendService) readings(ctx context.Context, userID string) []model.VitalsReading {
	readings, err := s.vitals.Ascending(ctx, userID)
	if err != nil {
		s.logger.Warn("loading trend data failed, rendering empty chart",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return readings
}

// WritePNG renders the chart as a PNG of ceil(width*dpr) x ceil(height*dpr)
// pixels.
func (s *TrendService) WritePNG(ctx context.Context, w io.Writer, userID string, vp trend.Viewport) error {
	vp = NormalizeViewport(vp)
	r := render.NewRaster(vp.Width, vp.Height, vp.DPR)
	trend.Render(r, vp, s.readings(ctx, userID))
	if err := r.EncodePNG(w); err != nil {
		return fmt.Errorf("writing trend png: %w", err)
	}
	return nil
}

// WriteSVG renders the chart as an SVG document. The pixel ratio is
// irrelevant for vector output.
func (s *TrendService) WriteSVG(ctx context.Context, w io.Writer, userID string, vp trend.Viewport) error {
	vp = NormalizeViewport(vp)
	vp.DPR = 1
	doc := render.NewSVG(vp.Width, vp.Height)
	trend.Render(doc, vp, s.readings(ctx, userID))
	if err := doc.Save(w); err != nil {
		return fmt.Errorf("writing trend svg: %w", err)
	}
	return nil
}
