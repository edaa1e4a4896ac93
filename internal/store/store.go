// Package store keeps decomposition run records for the API.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"hydro-dispatch/internal/analysis"
	"hydro-dispatch/internal/pddd"
	"hydro-dispatch/internal/report"
)

// ErrNotFound is returned for unknown or expired run ids.
var ErrNotFound = errors.New("run not found")

type Status string

const (
	StatusRunning   Status = "running"
	StatusConverged Status = "converged"
	StatusMaxIter   Status = "max_iter"
	StatusFailed    Status = "failed"
)

// Run is the stored record of one decomposition run.
type Run struct {
	ID        string    `json:"id"`
	CaseName  string    `json:"case_name"`
	Solver    string    `json:"solver"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MaxIter int     `json:"max_iter"`
	Tol     float64 `json:"tol"`

	Iterations []pddd.Iteration `json:"iterations"`
	Bounds     pddd.Bounds      `json:"bounds"`
	Alpha      []float64        `json:"alpha,omitempty"`
	Cuts       int              `json:"cuts"`
	TotalCost  float64          `json:"total_cost"`

	Ledger  []report.LedgerRow     `json:"ledger,omitempty"`
	CMO     *analysis.MarginalCost `json:"cmo,omitempty"`
	Ranking []analysis.UnitValue   `json:"ranking,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Store persists run records. Implementations are safe for concurrent use.
type Store interface {
	Put(ctx context.Context, r *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	// List returns live runs, newest first.
	List(ctx context.Context) ([]*Run, error)
	Close() error
}

func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the shape NewID produces.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func sortNewestFirst(runs []*Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
}
