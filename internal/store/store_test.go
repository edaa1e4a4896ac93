package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydro-dispatch/internal/pddd"
)

func sampleRun(name string, created time.Time) *Run {
	return &Run{
		ID:        NewID(),
		CaseName:  name,
		Solver:    "simplex",
		Status:    StatusConverged,
		CreatedAt: created,
		UpdatedAt: created,
		Bounds:    pddd.Bounds{ZINF: []float64{0, 1000}, ZSUP: []float64{1000, 1000}},
		Cuts:      1,
		TotalCost: 1000,
	}
}

// exercise runs the shared contract against any Store.
func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	older := sampleRun("older", base)
	newer := sampleRun("newer", base.Add(time.Hour))
	require.NoError(t, s.Put(ctx, older))
	require.NoError(t, s.Put(ctx, newer))

	got, err := s.Get(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "older", got.CaseName)
	assert.Equal(t, StatusConverged, got.Status)
	assert.Equal(t, []float64{0, 1000}, got.Bounds.ZINF)
	assert.True(t, got.CreatedAt.Equal(base))

	// Returned records are copies.
	got.CaseName = "mutated"
	again, err := s.Get(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "older", again.CaseName)

	runs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].CaseName)
	assert.Equal(t, "older", runs[1].CaseName)

	// Put overwrites by id.
	older.Status = StatusFailed
	older.Error = "boom"
	require.NoError(t, s.Put(ctx, older))
	got, err = s.Get(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	_, err = s.Get(ctx, NewID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory(time.Hour, time.Minute)
	defer m.Close()
	exercise(t, m)
}

func TestMemoryStoreExpiry(t *testing.T) {
	m := NewMemory(time.Minute, time.Hour)
	defer m.Close()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	r := sampleRun("short", now)
	require.NoError(t, m.Put(ctx, r))

	now = now.Add(2 * time.Minute)
	_, err := m.Get(ctx, r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	runs, err := m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	assert.Equal(t, 1, m.len())
	m.sweep()
	assert.Equal(t, 0, m.len())
}

func TestMemoryCloseIsIdempotent(t *testing.T) {
	m := NewMemory(time.Hour, time.Millisecond)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestBadgerStoreInMemory(t *testing.T) {
	b, err := OpenBadger("", time.Hour, nil)
	require.NoError(t, err)
	defer b.Close()
	exercise(t, b)
}

func TestBadgerStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := OpenBadger(dir, 0, nil)
	require.NoError(t, err)
	r := sampleRun("persisted", time.Now().UTC())
	require.NoError(t, b.Put(ctx, r))
	require.NoError(t, b.Close())

	reopened, err := OpenBadger(dir, 0, nil)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.CaseName)
}

func TestBadgerCloseIsIdempotent(t *testing.T) {
	b, err := OpenBadger("", time.Hour, nil)
	require.NoError(t, err)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	disk, err := OpenBadger(t.TempDir(), 0, nil)
	require.NoError(t, err)
	require.NoError(t, disk.Close())
	require.NoError(t, disk.Close())
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID(NewID()))
	assert.False(t, ValidID("not-a-run"))
	assert.False(t, ValidID(""))
}
