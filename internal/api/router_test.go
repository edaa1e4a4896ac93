package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydro-dispatch/internal/api/models"
	"hydro-dispatch/internal/logging"
	"hydro-dispatch/internal/store"
)

const caseDir = "../../examples/cases"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	st := store.NewMemory(time.Hour, time.Minute)
	t.Cleanup(func() { _ = st.Close() })
	return NewRouter(Deps{
		Store:       st,
		Log:         logging.Discard(),
		CaseDir:     caseDir,
		CORSOrigins: []string{"*"},
	})
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorDetail {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	w := do(newTestRouter(t), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListSolvers(t *testing.T) {
	w := do(newTestRouter(t), http.MethodGet, "/api/v1/solvers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Solvers []models.SolverInfo `json:"solvers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Solvers, 2)
	assert.Equal(t, "mindtpy", resp.Solvers[0].Name)
	assert.Equal(t, "simplex", resp.Solvers[1].Name)

	params := map[string]bool{}
	for _, p := range resp.Solvers[0].Parameters {
		params[p.Name] = true
	}
	assert.True(t, params["tol"])
	assert.True(t, params["mip_solver"])
	assert.True(t, params["nlp_solver"])
}

func TestListCasesSkipsInvalidFiles(t *testing.T) {
	w := do(newTestRouter(t), http.MethodGet, "/api/v1/cases", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Cases []models.CaseInfo `json:"cases"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	byID := map[string]models.CaseInfo{}
	for _, c := range resp.Cases {
		byID[c.ID] = c
	}
	require.Contains(t, byID, "toy")
	require.Contains(t, byID, "system")
	assert.NotContains(t, byID, "no-thermal")

	sys := byID["system"]
	assert.Equal(t, 4, sys.Horizon)
	assert.Equal(t, 2, sys.Units.Hydro)
	assert.Equal(t, 2, sys.Units.Thermal)
	assert.Equal(t, 1, sys.Units.Renewable)
	assert.Equal(t, 1, sys.Units.Storage)
}

func TestRunLifecycle(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/runs", models.RunRequest{CaseFile: "scarce.yaml"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, store.ValidID(created.ID))
	assert.Equal(t, "converged", created.Status)
	assert.Equal(t, "scarce", created.CaseName)
	assert.Equal(t, 2, created.Summary.Iterations)
	assert.True(t, created.Summary.Converged)
	assert.Equal(t, 1, created.Summary.Cuts)
	assert.InDelta(t, 1000, created.Summary.TotalCost, 1e-6)
	assert.InDelta(t, 0, created.Summary.Gap, 1e-6)
	assert.Empty(t, created.Ledger)
	require.NotNil(t, created.Summary.CMO)

	w = do(r, http.MethodGet, "/api/v1/runs/"+created.ID+"?include_ledger=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.NotEmpty(t, got.Ledger)

	w = do(r, http.MethodGet, "/api/v1/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list models.RunListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, created.ID, list.Runs[0].ID)

	w = do(r, http.MethodGet, "/api/v1/runs/"+created.ID+"/dispatch", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), created.ID)
	rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Greater(t, len(rows), 1)
	assert.Equal(t, "stage", rows[0][0])
	assert.Len(t, rows, len(got.Ledger)+1)
}

func TestCreateRunWithOptions(t *testing.T) {
	r := newTestRouter(t)
	w := do(r, http.MethodPost, "/api/v1/runs", models.RunRequest{
		CaseFile: "scarce.yaml",
		Options:  models.RunOptions{MaxIter: 1, IncludeLedger: true},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "max_iter", resp.Status)
	assert.False(t, resp.Summary.Converged)
	assert.Equal(t, 1, resp.Summary.Iterations)
	assert.Zero(t, resp.Summary.Cuts)
	assert.NotEmpty(t, resp.Ledger)
}

func TestCreateRunInlineInfeasibleIsStored(t *testing.T) {
	r := newTestRouter(t)
	inline := json.RawMessage(`{
		"meta": {"name": "short", "horizon": 1, "demand": [200]},
		"hydro": {"units": {"H1": {"v_max": 10, "v_ini": 0, "q_max": 10}}},
		"thermal": {"units": {"T1": {"g_max": 5, "cost": 10}}}
	}`)
	w := do(r, http.MethodPost, "/api/v1/runs", models.RunRequest{Case: inline})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	detail := decodeError(t, w)
	assert.Equal(t, "SOLVE_FAILED", detail.Code)
	id, ok := detail.Details["run_id"].(string)
	require.True(t, ok)

	w = do(r, http.MethodGet, "/api/v1/runs/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "short", got.CaseName)
	assert.NotEmpty(t, got.Error)

	w = do(r, http.MethodGet, "/api/v1/runs/"+id+"/dispatch", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "RUN_NOT_COMPLETE", decodeError(t, w).Code)
}

func TestCreateRunInlineSectionFiles(t *testing.T) {
	inline := func(file string) json.RawMessage {
		return json.RawMessage(`{
			"meta": {"name": "inline", "horizon": 1, "demand": [50]},
			"hydro": {"units": {"H1": {"v_max": 10, "v_ini": 0, "q_max": 10}}},
			"thermal": {"file": "` + file + `", "units": {}}
		}`)
	}
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/runs", models.RunRequest{Case: inline("fleets/thermal.yaml")})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	for _, file := range []string{"/etc/passwd", "../../go.mod", "fleets/../../../go.mod"} {
		t.Run(file, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/runs", models.RunRequest{Case: inline(file)})
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			detail := decodeError(t, w)
			assert.Equal(t, "INVALID_CASE", detail.Code)
			assert.Contains(t, detail.Message, "thermal.file")
			assert.NotContains(t, w.Body.String(), "root:")
			assert.NotContains(t, w.Body.String(), "module hydro-dispatch")
		})
	}
}

func TestCreateRunRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"no case", models.RunRequest{}, http.StatusBadRequest, "INVALID_CASE"},
		{"both", models.RunRequest{CaseFile: "toy.yaml", Case: json.RawMessage(`{}`)}, http.StatusBadRequest, "INVALID_CASE"},
		{"path escape", models.RunRequest{CaseFile: "../cases/toy.yaml"}, http.StatusBadRequest, "INVALID_CASE"},
		{"missing file", models.RunRequest{CaseFile: "nope.yaml"}, http.StatusNotFound, "CASE_NOT_FOUND"},
		{"invalid case", models.RunRequest{CaseFile: "no-thermal.yaml"}, http.StatusBadRequest, "INVALID_CASE"},
		{"bad option", models.RunRequest{CaseFile: "toy.yaml", Options: models.RunOptions{Tol: -1}}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"not json", "plain text", http.StatusBadRequest, "INVALID_REQUEST"},
	}
	r := newTestRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/runs", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestGetRunErrors(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/runs/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_RUN_ID", decodeError(t, w).Code)

	w = do(r, http.MethodGet, "/api/v1/runs/"+store.NewID(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RUN_NOT_FOUND", decodeError(t, w).Code)
}

func TestUnknownRoute(t *testing.T) {
	w := do(newTestRouter(t), http.MethodGet, "/api/v1/nothing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/runs", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t)
	do(r, http.MethodGet, "/health", nil)
	w := do(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",route="/health",status="200"}`)
}
