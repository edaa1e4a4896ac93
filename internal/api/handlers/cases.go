package handlers

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"hydro-dispatch/internal/api/models"
	"hydro-dispatch/internal/config"

	"github.com/gin-gonic/gin"
)

// CaseHandler lists the case files a run can name.
type CaseHandler struct {
	caseDir string
	log     *slog.Logger
}

// NewCaseHandler creates a new case handler
func NewCaseHandler(caseDir string, log *slog.Logger) *CaseHandler {
	if abs, err := filepath.Abs(caseDir); err == nil {
		caseDir = abs
	}
	log.Info("case directory", "path", caseDir)
	return &CaseHandler{caseDir: caseDir, log: log}
}

// CaseDir returns the resolved case directory.
func (h *CaseHandler) CaseDir() string {
	return h.caseDir
}

// ListCases handles GET /api/v1/cases. Files that do not load as a valid
// case are skipped.
func (h *CaseHandler) ListCases(c *gin.Context) {
	cases := []models.CaseInfo{}

	entries, err := os.ReadDir(h.caseDir)
	if err != nil {
		h.log.Warn("failed to read case directory", "path", h.caseDir, "error", err)
		c.JSON(http.StatusOK, gin.H{"cases": cases})
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		info, err := h.loadCaseInfo(filepath.Join(h.caseDir, name), name)
		if err != nil {
			h.log.Debug("skipping case file", "file", name, "error", err)
			continue
		}
		cases = append(cases, *info)
	}

	c.JSON(http.StatusOK, gin.H{"cases": cases})
}

func (h *CaseHandler) loadCaseInfo(path, filename string) (*models.CaseInfo, error) {
	cs, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	// "toy.yaml" -> "toy"
	id := strings.TrimSuffix(strings.TrimSuffix(filename, ".yaml"), ".yml")
	name := cs.Meta.Name
	if name == "" {
		name = id
	}

	return &models.CaseInfo{
		ID:      id,
		Name:    name,
		File:    filename,
		Horizon: cs.Meta.Horizon,
		Units: models.UnitCount{
			Hydro:     len(cs.HydroUnits()),
			Thermal:   len(cs.ThermalUnits()),
			Renewable: len(cs.RenewableUnits()),
			Storage:   len(cs.StorageUnits()),
		},
	}, nil
}
