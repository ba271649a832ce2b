package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/san-kum/pose-coach/server/pose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func call(t *testing.T, env *testEnv, method, path string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Header().Get("Content-Type") != "image/png" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func TestAPI_Exercises(t *testing.T) {
	env := newTestEnv(t)

	w, resp := call(t, env, http.MethodGet, "/api/v1/exercises", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var exercises []ExerciseInfo
	require.NoError(t, json.Unmarshal(resp.Data, &exercises))
	ids := make([]string, 0, len(exercises))
	for _, e := range exercises {
		ids = append(ids, e.ID)
		assert.NotZero(t, e.Rules)
	}
	assert.Equal(t, []string{"lunge", "pushup", "squat"}, ids)

	w, resp = call(t, env, http.MethodGet, "/api/v1/exercises/squat", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), `"driver":"knee_flexion"`)

	w, resp = call(t, env, http.MethodGet, "/api/v1/exercises/burpee", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "unknown_exercise", resp.Error.Code)
}

func TestAPI_AnalyzePose(t *testing.T) {
	env := newTestEnv(t)
	p := pose.Synthesize(pose.Stance{Knee: 90, Lean: 20, Elbow: 170, Visibility: 0.95})

	w, resp := call(t, env, http.MethodPost, "/api/v1/analyze-pose", map[string]any{
		"exercise":  "squat",
		"width":     480,
		"height":    480,
		"landmarks": p.Landmarks,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, resp.Success)

	var result struct {
		Analysis struct {
			Evaluation struct {
				Exercise string `json:"exercise"`
				Phase    string `json:"phase"`
				Score    *int   `json:"score"`
			} `json:"evaluation"`
		} `json:"analysis"`
		Summary struct {
			Rating string `json:"rating"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, "squat", result.Analysis.Evaluation.Exercise)
	assert.Equal(t, "bottom", result.Analysis.Evaluation.Phase)
	assert.NotNil(t, result.Analysis.Evaluation.Score)
	assert.NotEmpty(t, result.Summary.Rating)

	w, resp = call(t, env, http.MethodPost, "/api/v1/analyze-pose", map[string]any{
		"exercise":  "squat",
		"landmarks": p.Landmarks[:5],
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_pose", resp.Error.Code)

	w, resp = call(t, env, http.MethodPost, "/api/v1/analyze-pose", map[string]any{
		"exercise":  "squat",
		"phase":     "airborne",
		"landmarks": p.Landmarks,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_phase", resp.Error.Code)

	w, resp = call(t, env, http.MethodPost, "/api/v1/analyze-pose", map[string]any{"exercise": "squat"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", resp.Error.Code)
}

func TestAPI_AnalyzeFrame(t *testing.T) {
	env := newTestEnv(t)

	w, resp := call(t, env, http.MethodPost, "/api/v1/analyze-frame", map[string]any{
		"exercise":   "squat",
		"image_data": "data:image/jpeg;base64,/9j/4AAQ",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "no_pose", resp.Error.Code)

	w, resp = call(t, env, http.MethodPost, "/api/v1/analyze-frame", map[string]any{
		"exercise":   "squat",
		"image_data": "not base64!",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_image", resp.Error.Code)
}

func TestAPI_RenderOverlay(t *testing.T) {
	env := newTestEnv(t)
	p := pose.Synthesize(pose.Standing())

	w, _ := call(t, env, http.MethodPost, "/api/v1/render-overlay", map[string]any{
		"landmarks": p.Landmarks,
		"width":     64,
		"height":    48,
		"mirror":    true,
		"label":     "squat",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w, resp := call(t, env, http.MethodPost, "/api/v1/render-overlay", map[string]any{"width": 64})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", resp.Error.Code)

	w, resp = call(t, env, http.MethodPost, "/api/v1/render-overlay", map[string]any{
		"landmarks": p.Landmarks,
		"width":     50000,
		"height":    50000,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "frame_too_large", resp.Error.Code)
}

func TestAPI_StatsAndAdmin(t *testing.T) {
	env := newTestEnv(t)
	p := pose.Synthesize(pose.Standing())

	for i := 0; i < 2; i++ {
		w, _ := call(t, env, http.MethodPost, "/api/v1/analyze-pose", map[string]any{
			"exercise":  "lunge",
			"landmarks": p.Landmarks,
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, resp := call(t, env, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		System struct {
			TotalRequests int64 `json:"total_requests"`
			ProcessedOK   int64 `json:"processed_ok"`
		} `json:"system"`
		Processor struct {
			CacheHits int64 `json:"cache_hits"`
		} `json:"processor"`
		Sessions int `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, int64(2), stats.System.TotalRequests)
	assert.Equal(t, int64(2), stats.System.ProcessedOK)
	assert.Equal(t, int64(1), stats.Processor.CacheHits)
	assert.Zero(t, stats.Sessions)

	w, resp = call(t, env, http.MethodGet, "/api/v1/admin/cache-stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), `"lunge":1`)
	assert.Contains(t, string(resp.Data), `"backend":"memory"`)

	w, resp = call(t, env, http.MethodGet, "/api/v1/admin/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))

	w, resp = call(t, env, http.MethodPost, "/api/v1/admin/templates/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"exercises":["lunge","pushup","squat"]}`, string(resp.Data))
}

func TestExtractImageData(t *testing.T) {
	data, err := extractImageData("data:image/png;base64,aGk=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)

	data, err = extractImageData("aGk=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)

	_, err = extractImageData("")
	assert.Error(t, err)

	_, err = extractImageData("image,aGk=")
	assert.Error(t, err)
}
