package models

import "encoding/json"

// RunRequest starts a decomposition run. Exactly one of CaseFile and Case
// must be set.
type RunRequest struct {
	// CaseFile names a case under the server's case directory, e.g. "toy.yaml".
	CaseFile string `json:"case_file,omitempty"`
	// Case is an inline case document with the same layout as a case file.
	Case json.RawMessage `json:"case,omitempty"`

	Options RunOptions `json:"options,omitempty"`
}

// RunOptions overrides the driver defaults.
type RunOptions struct {
	MaxIter       int     `json:"max_iter,omitempty" binding:"omitempty,gte=1,lte=10000"`
	Tol           float64 `json:"tol,omitempty" binding:"omitempty,gt=0"`
	IncludeLedger bool    `json:"include_ledger,omitempty"` // default: false
}
