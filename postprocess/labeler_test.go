package postprocess

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/modelwrap/core"
)

func TestThresholdLabeler_Apply(t *testing.T) {
	l := NewThresholdLabeler()

	tests := []struct {
		name   string
		values []float64
		want   []string
	}{
		{"scenario", []float64{150, 85, 100}, []string{"Expensive", "Not Expensive", "Not Expensive"}},
		{"just above threshold", []float64{100.0001}, []string{"Expensive"}},
		{"negative", []float64{-5}, []string{"Not Expensive"}},
		{"empty", []float64{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Label(t.Context(), tt.values, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleLabeler_Label(t *testing.T) {
	l, err := NewRuleLabeler([]Rule{
		{When: "prediction > 300.0", Label: "Luxury"},
		{When: "prediction > 100.0 && row.bedrooms <= 1.0", Label: "Expensive"},
	}, "Not Expensive")
	require.NoError(t, err)

	rows := core.MustFrame([]string{"bedrooms"}, [][]float64{{4}, {1}, {3}, {1}})
	got, err := l.Label(t.Context(), []float64{350, 150, 150, 80}, rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"Luxury", "Expensive", "Not Expensive", "Not Expensive"}, got)

	_, err = l.Label(t.Context(), []float64{1}, rows)
	assert.True(t, core.IsInvalidInput(err))
}

func TestRuleLabeler_Errors(t *testing.T) {
	_, err := NewRuleLabeler([]Rule{{When: "prediction >", Label: "x"}}, "y")
	assert.True(t, core.IsInvalidInput(err))

	_, err = NewRuleLabeler([]Rule{{When: "prediction > 1.0"}}, "y")
	assert.True(t, core.IsInvalidInput(err))

	l, err := NewRuleLabeler([]Rule{{When: "row.bathrooms > 1.0", Label: "x"}}, "y")
	require.NoError(t, err)
	_, err = l.Label(t.Context(), []float64{1}, core.MustFrame([]string{"bedrooms"}, [][]float64{{1}}))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = l.Label(ctx, []float64{1}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLabeler_ConfigRoundTrip(t *testing.T) {
	l := &ThresholdLabeler{Threshold: 250, Above: "High", Below: "Low"}
	cfg := l.Config()
	assert.Equal(t, LabelerTypeThreshold, cfg.Type)
	assert.Equal(t, 250.0, cfg.Config["threshold"])

	rl, err := NewRuleLabeler([]Rule{{When: "prediction > 1.0", Label: "x"}}, "y")
	require.NoError(t, err)
	assert.Equal(t, "y", rl.Config().Config["default"])
}
