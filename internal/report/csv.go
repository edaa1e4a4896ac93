// Package report turns a decomposition run into tabular artifacts: the
// per-stage dispatch ledger, the cost-to-go series, the bound trajectory
// and the cut pool.
package report

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"hydro-dispatch/internal/model"
	"hydro-dispatch/internal/pddd"
)

func WriteDispatchCSV(w io.Writer, ledger []LedgerRow) error {
	cw := csv.NewWriter(w)
	header := []string{
		"stage",
		"period_start",
		"period_end",
		"technology",
		"unit",
		"action",
		"generation_mw",
		"turbined_volume",
		"spilled_volume",
		"state_start",
		"state_end",
		"cost",
		"cmo",
		"marginal_value",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range ledger {
		row := []string{
			strconv.Itoa(r.Stage),
			fmtTime(r.PeriodStart),
			fmtTime(r.PeriodEnd),
			r.Technology,
			r.Unit,
			string(r.Action),
			fmtFloat(r.GenerationMW),
			fmtFloat(r.TurbinedVolume),
			fmtFloat(r.SpilledVolume),
			fmtFloat(r.StateStart),
			fmtFloat(r.StateEnd),
			fmtFloat(r.Cost),
			fmtFloat(r.CMO),
			fmtFloat(r.MarginalValue),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAlphaCSV writes the cost-to-go of every stage.
func WriteAlphaCSV(w io.Writer, alpha []float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"stage", "alpha"}); err != nil {
		return err
	}
	for t, a := range alpha {
		if err := cw.Write([]string{strconv.Itoa(t), fmtFloat(a)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteBoundsCSV(w io.Writer, b pddd.Bounds) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"iteration", "zinf", "zsup", "gap"}); err != nil {
		return err
	}
	for i := range b.ZSUP {
		gap := b.ZSUP[i] - b.ZINF[i]
		if gap < 0 {
			gap = -gap
		}
		row := []string{strconv.Itoa(i + 1), fmtFloat(b.ZINF[i]), fmtFloat(b.ZSUP[i]), fmtFloat(gap)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCutsCSV writes the cut pool in long form, one row per coefficient.
func WriteCutsCSV(w io.Writer, cuts []model.Cut) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"cut", "stage", "rhs", "unit", "coef"}); err != nil {
		return err
	}
	for k, c := range cuts {
		for _, unit := range c.Units() {
			row := []string{strconv.Itoa(k), strconv.Itoa(c.Stage), fmtFloat(c.RHS), unit, fmtFloat(c.Coefs[unit])}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Artifact file names written by WriteFiles.
const (
	DispatchFile = "dispatch.csv"
	AlphaFile    = "alpha.csv"
	BoundsFile   = "bounds.csv"
	CutsFile     = "cuts.csv"
)

// WriteFiles writes every artifact of a run into dir.
func WriteFiles(dir string, out *pddd.Outcome, rep *Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{DispatchFile, func(w io.Writer) error { return WriteDispatchCSV(w, rep.Ledger) }},
		{AlphaFile, func(w io.Writer) error { return WriteAlphaCSV(w, out.Alpha) }},
		{BoundsFile, func(w io.Writer) error { return WriteBoundsCSV(w, out.Bounds) }},
		{CutsFile, func(w io.Writer) error { return WriteCutsCSV(w, out.Cuts) }},
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(dir, f.name), f.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
