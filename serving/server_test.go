package serving

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/modelwrap/core"
	"github.com/rushteam/modelwrap/feature"
	"github.com/rushteam/modelwrap/model"
	"github.com/rushteam/modelwrap/packaging"
	"github.com/rushteam/modelwrap/postprocess"
	"github.com/rushteam/modelwrap/wrapper"
)

var trained = core.Schema{"accommodates", "bedrooms", "review_scores_sum", "trunc_lat", "trunc_long"}

// saveModel 保存线性委托模型：-100 + 30*accommodates + 20*bedrooms + review_scores_sum
func saveModel(t *testing.T, dir string, threshold float64, overwrite bool) {
	t.Helper()
	lr, err := model.NewLinearRegressor(-100, trained, []float64{30, 20, 1, 0, 0})
	require.NoError(t, err)
	pre, err := feature.NewPreprocessor(trained, feature.DefaultListingSteps())
	require.NoError(t, err)
	labeler := postprocess.NewThresholdLabeler()
	labeler.Threshold = threshold
	m, err := wrapper.New(lr, pre, labeler)
	require.NoError(t, err)
	require.NoError(t, packaging.SaveModel(dir, &packaging.SaveRequest{Name: "airbnb-price", Wrapper: m, Overwrite: overwrite}))
}

const splitBody = `{
  "columns": ["accommodates", "bedrooms", "latitude", "longitude",
              "review_scores_accuracy", "review_scores_cleanliness", "review_scores_checkin",
              "review_scores_communication", "review_scores_location", "review_scores_value"],
  "data": [[2, 1, 37.769310, -122.433856, 10, 9, 10, 10, 9, 9],
           [4, 2, 37.745112, -122.421018, 9, 9, 9, 10, 10, 8]]
}`

const csvBody = `accommodates,bedrooms,latitude,longitude,review_scores_accuracy,review_scores_cleanliness,review_scores_checkin,review_scores_communication,review_scores_location,review_scores_value
2,1,37.769310,-122.433856,10,9,10,10,9,9
4,2,37.745112,-122.421018,9,9,9,10,10,8
`

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	saveModel(t, dir, postprocess.DefaultThreshold, false)
	s, err := NewServer(t.Context(), Config{ModelDir: dir})
	require.NoError(t, err)
	return s, dir
}

func invoke(t *testing.T, h http.Handler, contentType, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/invocations", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestInvocations(t *testing.T) {
	s, _ := newTestServer(t)
	want := []any{"Not Expensive", "Expensive"}

	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"split json", "application/json", splitBody},
		{"no content type", "", splitBody},
		{"dataframe_split", "application/json; charset=utf-8", `{"dataframe_split": ` + splitBody + `}`},
		{"csv", "text/csv", csvBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := invoke(t, s.Handler(), tt.contentType, tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, want, resp["predictions"])
			assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
		})
	}
}

func TestInvocations_Records(t *testing.T) {
	s, _ := newTestServer(t)
	body := `{"dataframe_records": [{"accommodates": 6, "bedrooms": 3, "latitude": 37.8, "longitude": -122.4,
		"review_scores_accuracy": 10, "review_scores_cleanliness": 10, "review_scores_checkin": 10,
		"review_scores_communication": 10, "review_scores_location": 10, "review_scores_value": 10}]}`
	rec, resp := invoke(t, s.Handler(), "application/json", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []any{"Expensive"}, resp["predictions"])
}

func TestInvocations_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		code        string
	}{
		{
			name:        "missing coordinates",
			contentType: "application/json",
			body:        `{"columns": ["accommodates", "bedrooms"], "data": [[2, 1]]}`,
			status:      http.StatusBadRequest,
			code:        core.ErrorCodeSchemaMismatch,
		},
		{"bad json", "application/json", `{"columns": [`, http.StatusBadRequest, core.ErrorCodeInvalidInput},
		{"ragged rows", "application/json", `{"columns": ["a", "b"], "data": [[1]]}`, http.StatusBadRequest, core.ErrorCodeInvalidInput},
		{"bad csv cell", "text/csv", "a,b\n1,x\n", http.StatusBadRequest, core.ErrorCodeInvalidInput},
		{"unsupported type", "application/xml", "<a/>", http.StatusUnsupportedMediaType, core.ErrorCodeNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := invoke(t, s.Handler(), tt.contentType, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, resp["error_code"])
		})
	}

	rec, resp := invoke(t, s.Handler(), "application/json", `{"columns": ["accommodates"], "data": [[2]]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp["columns"], "latitude")
}

func TestPingAndVersion(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "airbnb-price")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invocations", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestReload_KeepsPreviousModelOnFailure(t *testing.T) {
	s, dir := newTestServer(t)
	before := s.Model()

	require.NoError(t, os.WriteFile(filepath.Join(dir, packaging.MLmodelFile), []byte("flavor: onnx\n"), 0o600))
	assert.Error(t, s.Reload(t.Context()))
	assert.Same(t, before, s.Model())

	rec, resp := invoke(t, s.Handler(), "application/json", splitBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"Not Expensive", "Expensive"}, resp["predictions"])
}

func TestNewServer_MissingModel(t *testing.T) {
	_, err := NewServer(t.Context(), Config{ModelDir: t.TempDir()})
	assert.True(t, core.IsNotFound(err), "got %v", err)
}

func TestRun_WatchAndShutdown(t *testing.T) {
	dir := t.TempDir()
	saveModel(t, dir, postprocess.DefaultThreshold, false)
	s, err := NewServer(t.Context(), Config{Addr: "127.0.0.1:0", ModelDir: dir, Watch: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	post := func() []any {
		resp, err := http.Post("http://"+s.Addr()+"/invocations", "application/json", strings.NewReader(splitBody))
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		preds, _ := body["predictions"].([]any)
		return preds
	}
	assert.Equal(t, []any{"Not Expensive", "Expensive"}, post())

	// 阈值降到 30 后重新保存，第一行 37 也变成 Expensive
	saveModel(t, dir, 30, true)
	assert.Eventually(t, func() bool {
		preds := post()
		return len(preds) == 2 && preds[0] == "Expensive"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRun_Twice(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.Addr = "127.0.0.1:0"
	s.cfg.Watch = false

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	require.NotPanics(t, func() {
		assert.ErrorIs(t, s.Run(ctx), ErrServerStarted)
	})

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.ErrorIs(t, s.Run(t.Context()), ErrServerStarted)
}
