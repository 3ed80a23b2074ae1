package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/medhistory/internal/model"
)

// kinds lists the insight kinds in report order, which is what most
// cases assert on.
func kinds(r Report) []string {
	out := []string{}
	for _, in := range r.Insights {
		out = append(out, in.Kind)
	}
	return out
}

// =========================================================================
// RULE TESTS
// =========================================================================

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name     string
		readings []model.VitalsReading
		want     []string
	}{
		{
			name:     "healthy",
			readings: []model.VitalsReading{{BloodPressure: "120/80", Sugar: 100, Temperature: model.Decimal(36.6)}},
			want:     []string{"bp_normal", "sugar_normal"},
		},
		{
			name:     "hypertension by diastolic",
			readings: []model.VitalsReading{{BloodPressure: "130/95"}},
			want:     []string{"bp_high"},
		},
		{
			name:     "low bp",
			readings: []model.VitalsReading{{BloodPressure: "85/70"}},
			want:     []string{"bp_low"},
		},
		{
			name:     "boundary values are normal",
			readings: []model.VitalsReading{{BloodPressure: "140/90", Sugar: 140, Temperature: model.Decimal(37.5)}},
			want:     []string{"bp_normal", "sugar_normal"},
		},
		{
			name: "rising sugar wins over elevated",
			readings: []model.VitalsReading{
				{Sugar: 190},
				{Sugar: 150},
			},
			want: []string{"sugar_rising"},
		},
		{
			name: "elevated without a jump",
			readings: []model.VitalsReading{
				{Sugar: 160},
				{Sugar: 150},
			},
			want: []string{"sugar_elevated"},
		},
		{
			name:     "fever",
			readings: []model.VitalsReading{{Temperature: model.Decimal(38.2)}},
			want:     []string{"fever"},
		},
		{
			name:     "unparseable bp and zero sugar are skipped",
			readings: []model.VitalsReading{{BloodPressure: "n/a"}},
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Analyze(tt.readings)
			assert.Equal(t, StatusOK, r.Status)
			assert.Equal(t, tt.want, kinds(r))
		})
	}
}

func TestAnalyze_Messages(t *testing.T) {
	r := Analyze([]model.VitalsReading{
		{BloodPressure: "150/100", Sugar: 180, Temperature: model.Decimal(38)},
		{Sugar: 150},
	})

	require.Len(t, r.Insights, 3)
	assert.Contains(t, r.Insights[0].Message, "150/100")
	assert.Contains(t, r.Insights[1].Message, "increased by 30 mg/dL")
	assert.Contains(t, r.Insights[2].Message, "38 °C")
	assert.Equal(t, SeverityAlert, r.Insights[0].Severity)
}

func TestAnalyze_NoData(t *testing.T) {
	r := Analyze(nil)
	assert.Equal(t, StatusNoData, r.Status)
	assert.NotEmpty(t, r.Message)
	assert.NotNil(t, r.Insights)
}
