package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"hydro-dispatch/internal/analysis"
	"hydro-dispatch/internal/api/models"
	"hydro-dispatch/internal/config"
	"hydro-dispatch/internal/model"
	"hydro-dispatch/internal/pddd"
	"hydro-dispatch/internal/report"
	"hydro-dispatch/internal/solver"
	"hydro-dispatch/internal/store"

	"github.com/gin-gonic/gin"
)

var errCaseNotFound = errors.New("case file not found")

// RunHandler starts decomposition runs and serves their stored results.
type RunHandler struct {
	store    store.Store
	caseDir  string
	registry *solver.Registry
	log      *slog.Logger
	now      func() time.Time
}

// NewRunHandler creates a new run handler. Named case files resolve against caseDir.
func NewRunHandler(st store.Store, caseDir string, reg *solver.Registry, log *slog.Logger) *RunHandler {
	return &RunHandler{
		store:    st,
		caseDir:  caseDir,
		registry: reg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateRun handles POST /api/v1/runs. The run is solved synchronously and
// stored whatever its outcome, so failed runs can be inspected later.
func (h *RunHandler) CreateRun(c *gin.Context) {
	var req models.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	cs, err := h.loadCase(req)
	if err != nil {
		if errors.Is(err, errCaseNotFound) {
			respondError(c, http.StatusNotFound, "CASE_NOT_FOUND", err.Error(), nil)
			return
		}
		respondError(c, http.StatusBadRequest, "INVALID_CASE", err.Error(), nil)
		return
	}

	now := h.now()
	run := &store.Run{
		ID:        store.NewID(),
		CaseName:  cs.Meta.Name,
		Solver:    cs.Meta.Solver,
		Status:    store.StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
		MaxIter:   req.Options.MaxIter,
		Tol:       req.Options.Tol,
	}
	log := h.log.With("run_id", run.ID, "case", run.CaseName)
	log.Info("run started", "solver", run.Solver, "horizon", cs.Meta.Horizon)

	out, err := pddd.Solve(c.Request.Context(), cs, pddd.Options{
		MaxIter:  req.Options.MaxIter,
		Tol:      req.Options.Tol,
		Logger:   log,
		Registry: h.registry,
		Observer: func(it pddd.Iteration) {
			run.Iterations = append(run.Iterations, it)
		},
	})
	if err == nil {
		err = h.complete(run, out)
	}
	run.UpdatedAt = h.now()
	if err != nil {
		run.Status = store.StatusFailed
		run.Error = err.Error()
		log.Warn("run failed", "error", err)
	}
	if perr := h.store.Put(context.WithoutCancel(c.Request.Context()), run); perr != nil {
		log.Error("failed to store run", "error", perr)
		respondError(c, http.StatusInternalServerError, "STORE_ERROR", perr.Error(), nil)
		return
	}
	if err != nil {
		status, code, details := classify(err)
		details["run_id"] = run.ID
		respondError(c, status, code, err.Error(), details)
		return
	}

	log.Info("run finished",
		"status", run.Status,
		"iterations", len(run.Iterations),
		"total_cost", run.TotalCost,
	)
	c.JSON(http.StatusCreated, toResponse(run, req.Options.IncludeLedger))
}

// complete copies a finished outcome into the run record.
func (h *RunHandler) complete(run *store.Run, out *pddd.Outcome) error {
	rep, err := report.Build(out)
	if err != nil {
		return err
	}
	run.Status = store.StatusMaxIter
	if out.Converged {
		run.Status = store.StatusConverged
	}
	run.Bounds = out.Bounds
	run.Alpha = out.Alpha
	run.Cuts = len(out.Cuts)
	run.TotalCost = rep.TotalCost
	run.Ledger = rep.Ledger
	cmo := analysis.SummarizeCMO(out.Final, out.Case.Meta.PeriodHours)
	run.CMO = &cmo
	run.Ranking = analysis.RankByStoredValue(out.Final, out.Case)
	return nil
}

// loadCase resolves the request to exactly one case.
func (h *RunHandler) loadCase(req models.RunRequest) (*model.Case, error) {
	switch {
	case req.CaseFile != "" && len(req.Case) > 0:
		return nil, errors.New("set either case_file or case, not both")
	case req.CaseFile != "":
		// Only plain names: the request must not escape the case directory.
		if filepath.Base(req.CaseFile) != req.CaseFile || req.CaseFile == ".." {
			return nil, fmt.Errorf("case_file %q must be a file name", req.CaseFile)
		}
		path := filepath.Join(h.caseDir, req.CaseFile)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", errCaseNotFound, req.CaseFile)
			}
			return nil, err
		}
		return config.Load(path)
	case len(req.Case) > 0:
		// Inline JSON is valid YAML, so the case loader reads it as is.
		// Section files may only name files under the case directory.
		return config.ParseConfined(req.Case, h.caseDir)
	default:
		return nil, errors.New("one of case_file or case is required")
	}
}

// classify maps a run error to an HTTP status and error code.
func classify(err error) (int, string, map[string]interface{}) {
	details := map[string]interface{}{}
	var se *solver.StatusError
	switch {
	case errors.Is(err, solver.ErrUnavailable):
		return http.StatusBadRequest, "SOLVER_UNAVAILABLE", details
	case errors.Is(err, model.ErrMissingSection):
		return http.StatusBadRequest, "INVALID_CASE", details
	case errors.As(err, &se):
		details["solver"] = se.Solver
		details["status"] = se.Status
		return http.StatusUnprocessableEntity, "SOLVE_FAILED", details
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "RUN_CANCELLED", details
	default:
		return http.StatusInternalServerError, "RUN_ERROR", details
	}
}

// ListRuns handles GET /api/v1/runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	runs, err := h.store.List(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "STORE_ERROR", err.Error(), nil)
		return
	}
	resp := models.RunListResponse{Runs: make([]models.RunResponse, 0, len(runs))}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, toResponse(r, false))
	}
	c.JSON(http.StatusOK, resp)
}

// GetRun handles GET /api/v1/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	includeLedger := c.Query("include_ledger") == "true"
	c.JSON(http.StatusOK, toResponse(run, includeLedger))
}

// GetDispatch handles GET /api/v1/runs/:id/dispatch and streams the ledger as CSV.
func (h *RunHandler) GetDispatch(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	if run.Status == store.StatusFailed || run.Status == store.StatusRunning {
		respondError(c, http.StatusConflict, "RUN_NOT_COMPLETE",
			fmt.Sprintf("run %s has status %s and no dispatch", run.ID, run.Status), nil)
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=dispatch_%s.csv", run.ID))
	c.Status(http.StatusOK)
	if err := report.WriteDispatchCSV(c.Writer, run.Ledger); err != nil {
		// Headers are gone; all that is left is to record it.
		_ = c.Error(err)
	}
}

func (h *RunHandler) lookup(c *gin.Context) (*store.Run, bool) {
	id := c.Param("id")
	if !store.ValidID(id) {
		respondError(c, http.StatusBadRequest, "INVALID_RUN_ID", fmt.Sprintf("%q is not a run id", id), nil)
		return nil, false
	}
	run, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "RUN_NOT_FOUND", err.Error(), map[string]interface{}{"run_id": id})
		return nil, false
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "STORE_ERROR", err.Error(), nil)
		return nil, false
	}
	return run, true
}

func toResponse(r *store.Run, includeLedger bool) models.RunResponse {
	resp := models.RunResponse{
		ID:        r.ID,
		Status:    string(r.Status),
		CaseName:  r.CaseName,
		Solver:    r.Solver,
		CreatedAt: r.CreatedAt,
		Error:     r.Error,
		Summary: models.RunSummary{
			Iterations: len(r.Iterations),
			Converged:  r.Status == store.StatusConverged,
			Cuts:       r.Cuts,
			TotalCost:  r.TotalCost,
			Bounds:     r.Bounds,
			Alpha:      r.Alpha,
			CMO:        r.CMO,
			Ranking:    r.Ranking,
		},
	}
	if n := len(r.Iterations); n > 0 {
		resp.Summary.Gap = r.Iterations[n-1].Gap
	}
	if includeLedger {
		resp.Ledger = r.Ledger
	}
	return resp
}
