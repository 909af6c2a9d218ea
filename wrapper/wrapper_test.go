package wrapper

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/modelwrap/core"
	"github.com/rushteam/modelwrap/feature"
	"github.com/rushteam/modelwrap/postprocess"
)

var signature = core.Schema{"accommodates", "bedrooms", "review_scores_sum", "trunc_lat", "trunc_long"}

// fakeRegressor 按行返回预设的预测值，并记录收到的输入
type fakeRegressor struct {
	mu     sync.Mutex
	values []float64
	err    error
	calls  int
	seen   *core.Frame
}

func (f *fakeRegressor) Name() string        { return "fake" }
func (f *fakeRegressor) Schema() core.Schema { return signature }

func (f *fakeRegressor) Predict(_ context.Context, frame *core.Frame) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = frame
	if f.err != nil {
		return nil, f.err
	}
	return f.values, nil
}

func rawListings() *core.Frame {
	columns := append([]string{"host_total_listings_count", "accommodates", "bedrooms", "latitude", "longitude"}, feature.ReviewScoreColumns...)
	return core.MustFrame(columns, [][]float64{
		{1, 2, 1, 37.769310, -122.433856, 10, 9, 10, 10, 9, 9},
		{3, 4, 2, 37.745112, -122.421018, 9, 9, 9, 10, 10, 8},
		{2, 6, 3, 37.801234, -122.410001, 10, 10, 10, 10, 10, 10},
	})
}

func newTestModel(t *testing.T, delegate *fakeRegressor) *Model {
	t.Helper()
	pre, err := feature.NewPreprocessor(signature, feature.DefaultListingSteps())
	require.NoError(t, err)
	m, err := New(delegate, pre, nil)
	require.NoError(t, err)
	return m
}

func TestModel_Predict(t *testing.T) {
	delegate := &fakeRegressor{values: []float64{150, 85, 100}}
	m := newTestModel(t, delegate)

	out, err := m.Predict(t.Context(), nil, rawListings())
	require.NoError(t, err)
	assert.Equal(t, []string{"Expensive", "Not Expensive", "Not Expensive"}, out.Labels)
	assert.Equal(t, 3, out.Len())

	// 委托模型只看到训练签名中的列
	require.NotNil(t, delegate.seen)
	if diff := cmp.Diff([]string(signature), delegate.seen.Columns()); diff != "" {
		t.Errorf("delegate input columns (-want +got):\n%s", diff)
	}
	assert.Equal(t, []float64{2, 1, 57, 37.77, -122.43}, delegate.seen.Row(0))
}

func TestModel_PredictMissingCoordinates(t *testing.T) {
	delegate := &fakeRegressor{values: []float64{150, 85, 100}}
	m := newTestModel(t, delegate)

	input := rawListings()
	input.Drop(feature.LatitudeColumn, feature.LongitudeColumn)

	out, err := m.Predict(t.Context(), &core.ModelContext{}, input)
	assert.Nil(t, out)
	require.True(t, core.IsSchemaMismatch(err), "got %v", err)
	assert.Equal(t, []string{"latitude", "longitude"}, core.GetDomainError(err).Columns)
	assert.Zero(t, delegate.calls, "delegate must not be called after a preprocessing failure")
}

func TestModel_PredictDelegateErrors(t *testing.T) {
	boom := errors.New("delegate down")
	m := newTestModel(t, &fakeRegressor{err: boom})
	_, err := m.Predict(t.Context(), nil, rawListings())
	assert.ErrorIs(t, err, boom)

	m = newTestModel(t, &fakeRegressor{values: []float64{1}})
	_, err = m.Predict(t.Context(), nil, rawListings())
	require.Error(t, err)
	assert.Equal(t, core.ErrorCodeInvalidOutput, core.GetDomainError(err).Code)
}

func TestModel_PredictDeterministicAndPure(t *testing.T) {
	m := newTestModel(t, &fakeRegressor{values: []float64{150, 85, 100}})
	input := rawListings()
	before := input.Rows()

	first, err := m.Predict(t.Context(), nil, input)
	require.NoError(t, err)
	for range 5 {
		again, err := m.Predict(t.Context(), nil, input)
		require.NoError(t, err)
		assert.Equal(t, first.Labels, again.Labels)
	}
	if diff := cmp.Diff(before, input.Rows()); diff != "" {
		t.Errorf("input mutated (-before +after):\n%s", diff)
	}
	assert.Equal(t, rawListings().Columns(), input.Columns())
}

func TestModel_Concurrent(t *testing.T) {
	m := newTestModel(t, &fakeRegressor{values: []float64{150, 85, 100}})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := m.Predict(context.Background(), nil, rawListings())
			if assert.NoError(t, err) {
				assert.Equal(t, "Expensive", out.Labels[0])
			}
		}()
	}
	wg.Wait()
}

func TestModel_Postprocess(t *testing.T) {
	m := newTestModel(t, &fakeRegressor{})
	got, err := m.Postprocess(t.Context(), []float64{150, 85, 100, 100.01}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Expensive", "Not Expensive", "Not Expensive", "Expensive"}, got)
}

func TestModel_RuleLabeler(t *testing.T) {
	pre, err := feature.NewPreprocessor(signature, feature.DefaultListingSteps())
	require.NoError(t, err)
	labeler, err := postprocess.NewRuleLabeler([]postprocess.Rule{
		{When: "prediction > 100.0 && row.bedrooms >= 3.0", Label: "Family Premium"},
		{When: "prediction > 100.0", Label: "Expensive"},
	}, "Not Expensive")
	require.NoError(t, err)

	m, err := New(&fakeRegressor{values: []float64{150, 85, 120}}, pre, labeler, WithName("rules"))
	require.NoError(t, err)
	assert.Equal(t, "rules", m.Name())

	out, err := m.Predict(t.Context(), nil, rawListings())
	require.NoError(t, err)
	assert.Equal(t, []string{"Expensive", "Not Expensive", "Family Premium"}, out.Labels)
}

func TestNew_Validation(t *testing.T) {
	pre, err := feature.NewPreprocessor(core.Schema{"accommodates"}, nil)
	require.NoError(t, err)

	_, err = New(&fakeRegressor{}, pre, nil)
	assert.True(t, core.IsSchemaMismatch(err))

	_, err = New(nil, pre, nil)
	assert.True(t, core.IsInvalidInput(err))

	_, err = New(&fakeRegressor{}, nil, nil)
	assert.True(t, core.IsInvalidInput(err))
}
