package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rushteam/modelwrap/config"
	_ "github.com/rushteam/modelwrap/config/builders"
	"github.com/rushteam/modelwrap/core"
	"github.com/rushteam/modelwrap/feature"
	"github.com/rushteam/modelwrap/model"
	"github.com/rushteam/modelwrap/postprocess"
	"github.com/rushteam/modelwrap/wrapper"
)

const wrapperYAML = `
name: airbnb-price
steps:
  - type: sum
    config:
      output: review_scores_sum
      inputs: [review_scores_accuracy, review_scores_cleanliness, review_scores_checkin,
               review_scores_communication, review_scores_location, review_scores_value]
  - type: truncate
    config: {input: latitude, output: trunc_lat, decimals: 2}
  - type: truncate
    config: {input: longitude, output: trunc_long, decimals: 2, mode: round}
labeler:
  type: threshold
  config: {threshold: 100, above: Expensive, below: Not Expensive}
model:
  kind: linear
  path: delegate.json
`

func writeLinear(t *testing.T, dir string) {
	t.Helper()
	lr, err := model.NewLinearRegressor(-20,
		[]string{"accommodates", "bedrooms", "review_scores_sum", "trunc_lat", "trunc_long"},
		[]float64{30, 20, 1, 0, 0})
	require.NoError(t, err)
	require.NoError(t, lr.Save(filepath.Join(dir, "delegate.json")))
}

func TestLoadAndBuild(t *testing.T) {
	dir := t.TempDir()
	writeLinear(t, dir)
	path := filepath.Join(dir, "wrapper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(wrapperYAML), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "delegate.json"), cfg.Model.Path)
	require.Len(t, cfg.Steps, 3)

	m, err := config.Build(cfg)
	require.NoError(t, err)

	columns := append([]string{"accommodates", "bedrooms", "latitude", "longitude"}, feature.ReviewScoreColumns...)
	input := core.MustFrame(columns, [][]float64{
		{4, 2, 37.76, -122.43, 10, 9, 10, 10, 9, 9}, // -20 + 120 + 40 + 57 = 197
		{1, 0, 37.76, -122.43, 5, 5, 5, 5, 5, 5},    // -20 + 30 + 0 + 30 = 40
	})
	out, err := m.Predict(t.Context(), nil, input)
	require.NoError(t, err)
	assert.Equal(t, []string{"Expensive", "Not Expensive"}, out.Labels)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := config.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("steps:\n  - type: polynomial\n"), 0o600))
	_, err = config.Load(bad)
	assert.ErrorContains(t, err, "unsupported step type")

	badModel := filepath.Join(dir, "bad_model.json")
	require.NoError(t, os.WriteFile(badModel, []byte(`{"model": {"kind": "onnx"}}`), 0o600))
	_, err = config.Load(badModel)
	assert.ErrorContains(t, err, "unsupported kind")
}

func TestBuildSteps_FromStepConfigs(t *testing.T) {
	pre, err := feature.NewPreprocessor(core.Schema{"x"}, []feature.Step{
		feature.NewSumStep("s", "a", "b"),
		&feature.ScaleStep{Input: "s", Output: "x", Scaler: feature.ZScoreScaler{Mean: 1, Std: 2}},
		&feature.DropStep{Columns: []string{"a"}},
	})
	require.NoError(t, err)

	steps, err := config.BuildSteps(pre.StepConfigs())
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for i, s := range steps {
		assert.Equal(t, pre.Steps[i].Config(), s.Config())
	}

	_, err = config.BuildSteps([]feature.StepConfig{{Type: feature.StepTypeSum, Config: map[string]any{"output": "s"}}})
	assert.Error(t, err)
	_, err = config.BuildSteps([]feature.StepConfig{{Type: feature.StepTypeScale, Config: map[string]any{"input": "a", "method": "sqrt"}}})
	assert.Error(t, err)
}

func TestBuildLabeler(t *testing.T) {
	l, err := config.BuildLabeler(config.Default().Labeler)
	require.NoError(t, err)
	got, err := l.Label(t.Context(), []float64{150, 100}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Expensive", "Not Expensive"}, got)

	rl, err := config.BuildLabeler(postprocessRuleConfig())
	require.NoError(t, err)
	got, err = rl.Label(t.Context(), []float64{500, 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Luxury", "Budget"}, got)
}

func TestBuildWrapper_SignatureMismatch(t *testing.T) {
	lr, err := model.NewLinearRegressor(0, []string{"accommodates"}, []float64{1})
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Signature = []string{"bedrooms"}
	_, err = config.BuildWrapper(cfg, lr)
	assert.True(t, core.IsSchemaMismatch(err))
}

func TestBuildWrapper_LoggerReachesPreprocessor(t *testing.T) {
	lr, err := model.NewLinearRegressor(-100,
		[]string{"accommodates", "bedrooms", "review_scores_sum", "trunc_lat", "trunc_long"},
		[]float64{30, 20, 1, 0, 0})
	require.NoError(t, err)
	obs, logs := observer.New(zapcore.DebugLevel)

	m, err := config.BuildWrapper(config.Default(), lr, wrapper.WithLogger(zap.New(obs)))
	require.NoError(t, err)
	_, err = m.Predict(t.Context(), nil, core.MustFrame([]string{"accommodates"}, [][]float64{{2}}))
	require.True(t, core.IsSchemaMismatch(err), "got %v", err)

	rejected := logs.FilterMessage("preprocess rejected input").All()
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].ContextMap()["missing"], "latitude")

	// 未设置日志时不输出
	m, err = config.BuildWrapper(config.Default(), lr)
	require.NoError(t, err)
	_, err = m.Predict(t.Context(), nil, core.MustFrame([]string{"accommodates"}, [][]float64{{2}}))
	require.Error(t, err)
	assert.Len(t, logs.FilterMessage("preprocess rejected input").All(), 1)
}

func postprocessRuleConfig() postprocess.LabelerConfig {
	return postprocess.LabelerConfig{
		Type: postprocess.LabelerTypeRule,
		Config: map[string]any{
			"rules": []any{
				map[string]any{"when": "prediction > 300.0", "label": "Luxury"},
				map[string]any{"when": "prediction > 100.0", "label": "Expensive"},
			},
			"default": "Budget",
		},
	}
}

func TestBuildModel_RemoteColumnsFromMetadata(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature_meta.json"),
		[]byte(`{"feature_columns": ["accommodates", "bedrooms"], "label_column": "price"}`), 0o600))
	path := filepath.Join(dir, "remote.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  kind: rpc
  endpoint: http://127.0.0.1:1/predict
  metadata: feature_meta.json
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "feature_meta.json"), cfg.Model.Metadata)

	m, err := config.BuildModel(&cfg.Model)
	require.NoError(t, err)
	assert.Equal(t, core.Schema{"accommodates", "bedrooms"}, m.Schema())

	cfg.Model.Metadata = ""
	_, err = config.BuildModel(&cfg.Model)
	assert.ErrorContains(t, err, "columns not found")
}
