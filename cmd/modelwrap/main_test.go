package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/modelwrap/model"
	"github.com/rushteam/modelwrap/packaging"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestPackageAndPredict(t *testing.T) {
	dir := t.TempDir()
	delegate := filepath.Join(dir, "linear.json")
	lr, err := model.NewLinearRegressor(-100,
		[]string{"accommodates", "bedrooms", "review_scores_sum", "trunc_lat", "trunc_long"},
		[]float64{30, 20, 1, 0, 0})
	require.NoError(t, err)
	require.NoError(t, lr.Save(delegate))

	modelDir := filepath.Join(dir, "airbnb")
	out, err := execute(t, "package", "--delegate", delegate, "--kind", model.KindLinear, "--out", modelDir, "--name", "airbnb-price")
	require.NoError(t, err, out)
	assert.Contains(t, out, "saved airbnb-price")

	meta, err := packaging.ReadMLmodel(modelDir)
	require.NoError(t, err)
	assert.Equal(t, packaging.FlavorWrapper, meta.Flavor)

	// 目录非空且没有 --overwrite
	_, err = execute(t, "package", "--delegate", delegate, "--kind", model.KindLinear, "--out", modelDir)
	assert.Error(t, err)

	input := filepath.Join(dir, "rows.csv")
	require.NoError(t, os.WriteFile(input, []byte(strings.Join([]string{
		"accommodates,bedrooms,latitude,longitude,review_scores_accuracy,review_scores_cleanliness,review_scores_checkin,review_scores_communication,review_scores_location,review_scores_value",
		"2,1,37.769310,-122.433856,10,9,10,10,9,9",
		"6,3,37.801234,-122.410001,10,10,10,10,10,10",
	}, "\n")+"\n"), 0o600))

	out, err = execute(t, "predict", "--model", modelDir, "--input", input)
	require.NoError(t, err, out)
	assert.Equal(t, "Not Expensive\nExpensive\n", out)
}

func TestPredict_MissingModel(t *testing.T) {
	_, err := execute(t, "predict", "--model", t.TempDir(), "--input", "rows.csv")
	assert.Error(t, err)
}
