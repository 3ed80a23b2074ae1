package service

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/medhistory/internal/backend"
	"github.com/sakif/medhistory/internal/model"
	"github.com/sakif/medhistory/internal/render"
	"github.com/sakif/medhistory/internal/trend"
)

// =========================================================================
// TEST HELPERS
// =========================================================================

// newTestTrendService wires vitals changes to chart invalidation, as the
// server does. Wait runs at cleanup so no background redraw outlives the
// test.
func newTestTrendService(t *testing.T) (*TrendService, *VitalsService, *fakeBackend) {
	t.Helper()
	fb := newFakeBackend()
	vitals := NewVitalsService(fb, testLogger())
	svc := NewTrendService(vitals, testLogger())
	vitals.OnChange(svc.Invalidate)
	t.Cleanup(svc.Wait)
	return svc, vitals, fb
}

// seedScenario stores three readings out of date order; the chart must
// sort them.
func seedScenario(t *testing.T, fb *fakeBackend) {
	t.Helper()
	fb.seed(t, backend.TableVitals, []model.VitalsReading{
		{UserID: "u1", Date: "2024-01-15", Sugar: 160},
		{UserID: "u1", Date: "2024-01-01", Sugar: 110},
		{UserID: "u1", Date: "2024-01-08", Sugar: 135},
	})
}

// =========================================================================
// VIEWPORT TESTS
// =========================================================================

func TestNormalizeViewport(t *testing.T) {
	tests := []struct {
		name string
		in   trend.Viewport
		want trend.Viewport
	}{
		{"zero uses defaults", trend.Viewport{}, trend.DefaultViewport},
		{"kept", trend.Viewport{Width: 800, Height: 400, DPR: 2}, trend.Viewport{Width: 800, Height: 400, DPR: 2}},
		{"clamped", trend.Viewport{Width: 1e6, Height: 1e6, DPR: 10}, trend.Viewport{Width: MaxViewportSide, Height: MaxViewportSide, DPR: MaxDPR}},
		{"negative", trend.Viewport{Width: -1, Height: 200, DPR: -2}, trend.Viewport{Width: 600, Height: 200, DPR: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeViewport(tt.in))
		})
	}
}

// =========================================================================
// LIVE CHART TESTS
// =========================================================================

func TestTrend_Display(t *testing.T) {
	svc, _, fb := newTestTrendService(t)
	seedScenario(t, fb)

	chart := svc.Display(context.Background(), "u1", trend.Viewport{})

	g := chart.Geometry
	require.Len(t, g.Points, 3)
	assert.Equal(t, 200, g.MaxVal)
	assert.Equal(t, []string{"01-01", "01-08", "01-15"}, []string{g.Points[0].Label, g.Points[1].Label, g.Points[2].Label})
	assert.Greater(t, g.Points[0].Y, g.Points[2].Y, "higher values sit higher on screen")

	assert.Equal(t, 600.0, chart.DisplayList.Width)
	require.NotEmpty(t, chart.DisplayList.Ops)
	assert.Equal(t, render.OpClear, chart.DisplayList.Ops[0].Kind)
}

func TestTrend_DisplayFailedReadIsEmptyChart(t *testing.T) {
	svc, _, fb := newTestTrendService(t)
	fb.selectErr[backend.TableVitals] = backend.ErrUnavailable

	chart := svc.Display(context.Background(), "u1", trend.DefaultViewport)
	assert.True(t, chart.Geometry.Empty())

	var texts []string
	for _, op := range chart.DisplayList.Ops {
		if op.Text != "" {
			texts = append(texts, op.Text)
		}
	}
	assert.Equal(t, []string{trend.EmptyMessage}, texts)
}

func TestTrend_InvalidateRedrawsLiveChart(t *testing.T) {
	svc, vitals, _ := newTestTrendService(t)
	ctx := context.Background()

	chart := svc.Display(ctx, "u1", trend.DefaultViewport)
	require.True(t, chart.Geometry.Empty())

	_, err := vitals.Create(ctx, "u1", model.VitalsReading{Date: "2024-02-01", Sugar: 140})
	require.NoError(t, err)
	svc.Wait()

	svc.mu.Lock()
	tv := svc.views["u1"]
	svc.mu.Unlock()
	assert.Len(t, tv.view.Last().Points, 1)
	assert.Contains(t, tv.recorder.Texts(), "140")
}

func TestTrend_InvalidateOutlivesRequest(t *testing.T) {
	svc, _, fb := newTestTrendService(t)
	svc.Display(context.Background(), "u1", trend.DefaultViewport)
	seedScenario(t, fb)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Invalidate(ctx, "u1")
	svc.Wait()

	svc.mu.Lock()
	tv := svc.views["u1"]
	svc.mu.Unlock()
	assert.Len(t, tv.view.Last().Points, 3)
}

func TestTrend_InvalidateWithoutLiveChartIsNoop(t *testing.T) {
	svc, _, fb := newTestTrendService(t)
	svc.Invalidate(context.Background(), "u1")
	svc.Wait()
	assert.Empty(t, fb.selects)

	svc.Display(context.Background(), "u1", trend.DefaultViewport)
	svc.Forget("u1")
	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.NotContains(t, svc.views, "u1")
}

// =========================================================================
// ENCODER TESTS
// =========================================================================

func TestTrend_WritePNG(t *testing.T) {
	svc, _, fb := newTestTrendService(t)
	seedScenario(t, fb)

	var buf bytes.Buffer
	require.NoError(t, svc.WritePNG(context.Background(), &buf, "u1", trend.Viewport{Width: 300, Height: 150, DPR: 2}))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	w, h := render.BackingSize(300, 150, 2)
	assert.Equal(t, w, img.Bounds().Dx())
	assert.Equal(t, h, img.Bounds().Dy())
}

func TestTrend_WriteSVG(t *testing.T) {
	svc, _, fb := newTestTrendService(t)
	seedScenario(t, fb)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteSVG(context.Background(), &buf, "u1", trend.DefaultViewport))

	out := buf.String()
	assert.True(t, strings.Contains(out, "<svg"), "not an svg document")
	assert.Contains(t, out, "01-08")
}
