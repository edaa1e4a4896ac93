package handlers

import (
	"net/http"

	"hydro-dispatch/internal/api/models"
	"hydro-dispatch/internal/solver"

	"github.com/gin-gonic/gin"
)

// SolverHandler lists the solvers a case can select with meta.solver.
type SolverHandler struct {
	registry *solver.Registry
}

// NewSolverHandler creates a new solver handler
func NewSolverHandler(reg *solver.Registry) *SolverHandler {
	return &SolverHandler{registry: reg}
}

var commonSolverParams = []models.ParameterInfo{
	{
		Name:        "tol",
		Type:        "float",
		Description: "Feasibility and optimality tolerance",
		Default:     1e-9,
	},
	{
		Name:        "time_limit",
		Type:        "float",
		Description: "Wall-clock limit per stage solve in seconds (0 = none)",
		Default:     0.0,
	},
}

var solverDescriptions = map[string]models.SolverInfo{
	"simplex": {
		Description: "Dense simplex LP solver. Reports primal values and constraint duals.",
	},
	"mindtpy": {
		Description: "Outer-approximation decomposition. Delegates to a MIP and an NLP sub-solver from the registry.",
		Parameters: []models.ParameterInfo{
			{
				Name:        "mip_solver",
				Type:        "string",
				Description: "Registered solver for the master problem",
				Default:     "simplex",
			},
			{
				Name:        "nlp_solver",
				Type:        "string",
				Description: "Registered solver for the fixed subproblems",
				Default:     "simplex",
			},
		},
	},
}

// ListSolvers handles GET /api/v1/solvers
func (h *SolverHandler) ListSolvers(c *gin.Context) {
	names := h.registry.Names()
	solvers := make([]models.SolverInfo, 0, len(names))
	for _, name := range names {
		info := solverDescriptions[name]
		info.Name = name
		info.Parameters = append(append([]models.ParameterInfo(nil), commonSolverParams...), info.Parameters...)
		solvers = append(solvers, info)
	}
	c.JSON(http.StatusOK, gin.H{"solvers": solvers})
}
