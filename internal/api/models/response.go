package models

import (
	"time"

	"hydro-dispatch/internal/analysis"
	"hydro-dispatch/internal/pddd"
	"hydro-dispatch/internal/report"
)

// RunResponse is a stored run as returned by the API.
type RunResponse struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	CaseName  string             `json:"case_name"`
	Solver    string             `json:"solver"`
	CreatedAt time.Time          `json:"created_at"`
	Summary   RunSummary         `json:"summary"`
	Ledger    []report.LedgerRow `json:"ledger,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// RunSummary contains the aggregated results of a run.
type RunSummary struct {
	Iterations int                    `json:"iterations"`
	Converged  bool                   `json:"converged"`
	Gap        float64                `json:"gap"`
	Cuts       int                    `json:"cuts"`
	TotalCost  float64                `json:"total_cost"`
	Bounds     pddd.Bounds            `json:"bounds"`
	Alpha      []float64              `json:"alpha,omitempty"`
	CMO        *analysis.MarginalCost `json:"cmo,omitempty"`
	Ranking    []analysis.UnitValue   `json:"ranking,omitempty"`
}

// RunListResponse lists stored runs, newest first.
type RunListResponse struct {
	Runs []RunResponse `json:"runs"`
}

// CaseInfo describes a case file available to POST /api/v1/runs.
type CaseInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	File    string    `json:"file"`
	Horizon int       `json:"horizon"`
	Units   UnitCount `json:"units"`
}

// UnitCount counts the units of each technology in a case.
type UnitCount struct {
	Hydro     int `json:"hydro"`
	Thermal   int `json:"thermal"`
	Renewable int `json:"renewable"`
	Storage   int `json:"storage"`
}

// SolverInfo describes a registered solver and the options it reads.
type SolverInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes a solver option.
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "float", "int", "string"
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
