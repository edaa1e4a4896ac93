package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydro-dispatch/internal/config"
	"hydro-dispatch/internal/model"
	"hydro-dispatch/internal/pddd"
)

func solve(t *testing.T, name string) *pddd.Outcome {
	t.Helper()
	c, err := config.Load(filepath.Join("../../examples/cases", name))
	require.NoError(t, err)
	out, err := pddd.Solve(context.Background(), c, pddd.Options{MaxIter: 60})
	require.NoError(t, err)
	return out
}

func TestBuildLedgerScarce(t *testing.T) {
	out := solve(t, "scarce.yaml")
	rep, err := Build(out)
	require.NoError(t, err)

	// hydro, thermal, deficit per stage
	assert.Len(t, rep.Ledger, 2*3)
	assert.InDelta(t, 1000, rep.TotalCost, 1e-6)
	assert.InDelta(t, out.Bounds.ZSUP[len(out.Bounds.ZSUP)-1], rep.TotalCost, 1e-6)
	require.Len(t, rep.CumCost, 2)
	assert.InDelta(t, rep.TotalCost, rep.CumCost[1], 1e-9)

	first := rep.Ledger[0]
	assert.Equal(t, TechHydro, first.Technology)
	assert.Equal(t, 10.0, first.StateStart)

	// The stage-1 hydro row starts where stage 0 ended.
	var hydro []LedgerRow
	for _, r := range rep.Ledger {
		if r.Technology == TechHydro {
			hydro = append(hydro, r)
		}
	}
	require.Len(t, hydro, 2)
	assert.Equal(t, hydro[0].StateEnd, hydro[1].StateStart)
	for _, r := range rep.Ledger {
		if r.Technology == TechDeficit {
			assert.Zero(t, r.GenerationMW)
		}
	}
}

func TestBuildLedgerSystemBalancesDemand(t *testing.T) {
	out := solve(t, "system.yaml")
	rep, err := Build(out)
	require.NoError(t, err)

	c := out.Case
	supply := make([]float64, c.Meta.Horizon)
	for _, r := range rep.Ledger {
		supply[r.Stage] += r.GenerationMW
		if r.Technology == TechStorage {
			assert.Contains(t, []model.Action{model.ActionCharging, model.ActionIdle, model.ActionDischarging}, r.Action)
		} else {
			assert.Empty(t, r.Action)
		}
	}
	for t2, d := range c.Meta.Demand {
		assert.InDelta(t, d, supply[t2], 1e-6, "stage %d", t2)
	}
	assert.False(t, rep.Ledger[0].PeriodStart.IsZero())
}

func TestBuildRequiresMaterializedOutcome(t *testing.T) {
	_, err := Build(&pddd.Outcome{})
	assert.Error(t, err)
}

func TestWriteCSVs(t *testing.T) {
	out := solve(t, "scarce.yaml")
	rep, err := Build(out)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteDispatchCSV(&buf, rep.Ledger))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, len(rep.Ledger)+1)
	assert.Equal(t, "stage", rows[0][0])

	buf.Reset()
	require.NoError(t, WriteBoundsCSV(&buf, out.Bounds))
	rows, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"iteration", "zinf", "zsup", "gap"}, rows[0])
	assert.Equal(t, "1000.000000", rows[1][3])

	buf.Reset()
	require.NoError(t, WriteCutsCSV(&buf, []model.Cut{{Stage: 0, RHS: 1000, Coefs: map[string]float64{"H1": -100}}}))
	assert.Equal(t, "cut,stage,rhs,unit,coef\n0,0,1000.000000,H1,-100.000000\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteAlphaCSV(&buf, []float64{1.5, 0}))
	assert.Equal(t, "stage,alpha\n0,1.500000\n1,0.000000\n", buf.String())
}

func TestWriteFiles(t *testing.T) {
	out := solve(t, "toy.yaml")
	rep, err := Build(out)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "run")
	require.NoError(t, WriteFiles(dir, out, rep))
	for _, name := range []string{DispatchFile, AlphaFile, BoundsFile, CutsFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size())
	}
}
