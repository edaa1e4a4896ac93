// Package api wires the HTTP routes of the dispatch service.
package api

import (
	"log/slog"
	"net/http"

	"hydro-dispatch/internal/api/handlers"
	"hydro-dispatch/internal/api/middleware"
	"hydro-dispatch/internal/solver"
	"hydro-dispatch/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Store       store.Store
	Registry    *solver.Registry
	Log         *slog.Logger
	CaseDir     string
	CORSOrigins []string
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(d Deps) *gin.Engine {
	if d.Registry == nil {
		d.Registry = solver.DefaultRegistry()
	}

	router := gin.New()
	router.Use(middleware.CORS(d.CORSOrigins))
	router.Use(middleware.Logger(d.Log))
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler(d.Log))
	router.NoRoute(middleware.NotFound)

	runHandler := handlers.NewRunHandler(d.Store, d.CaseDir, d.Registry, d.Log)
	caseHandler := handlers.NewCaseHandler(d.CaseDir, d.Log)
	solverHandler := handlers.NewSolverHandler(d.Registry)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/runs", runHandler.CreateRun)
		v1.GET("/runs", runHandler.ListRuns)
		v1.GET("/runs/:id", runHandler.GetRun)
		v1.GET("/runs/:id/dispatch", runHandler.GetDispatch)

		v1.GET("/cases", caseHandler.ListCases)
		v1.GET("/solvers", solverHandler.ListSolvers)
	}
	return router
}
