package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nurseroute/internal/config"
	"nurseroute/internal/model"
)

func stores(t *testing.T) map[string]Store {
	d, err := NewDir(filepath.Join(t.TempDir(), "solutions"))
	require.NoError(t, err)
	return map[string]Store{"memory": NewMemory(), "dir": d}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.BestSolution(ctx, "train_0")
			assert.ErrorIs(t, err, ErrNotFound)

			infeasible, err := st.SaveSolution(ctx, model.Solution{Instance: "train_0", Fitness: 700, Routes: [][]int{{1, 2, 3}}, CreatedAt: base})
			require.NoError(t, err)
			assert.NotEmpty(t, infeasible.ID)

			worse, err := st.SaveSolution(ctx, model.Solution{Instance: "train_0", Fitness: 900, Feasible: true, Routes: [][]int{{1}, {2, 3}}, CreatedAt: base.Add(time.Second)})
			require.NoError(t, err)
			better, err := st.SaveSolution(ctx, model.Solution{RunID: "r1", Instance: "train_0", Island: 2, Generation: 40, Fitness: 850, Feasible: true, Routes: [][]int{{3, 1}, {2}}})
			require.NoError(t, err)
			assert.False(t, better.CreatedAt.IsZero())
			_, err = st.SaveSolution(ctx, model.Solution{Instance: "train_1", Fitness: 1, Feasible: true, Routes: [][]int{{1}}})
			require.NoError(t, err)

			best, err := st.BestSolution(ctx, "train_0")
			require.NoError(t, err)
			assert.Equal(t, better.ID, best.ID)
			assert.Equal(t, "r1", best.RunID)
			assert.Equal(t, 2, best.Island)
			assert.Equal(t, 40, best.Generation)
			assert.Equal(t, [][]int{{3, 1}, {2}}, best.Routes)

			all, err := st.ListSolutions(ctx, "train_0", 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{better.ID, worse.ID, infeasible.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

			top, err := st.ListSolutions(ctx, "train_0", 2)
			require.NoError(t, err)
			assert.Len(t, top, 2)

			// callers cannot reach into stored routes
			all[0].Routes[0][0] = 99
			again, err := st.BestSolution(ctx, "train_0")
			require.NoError(t, err)
			assert.Equal(t, 3, again.Routes[0][0])
		})
	}
}

func TestDirReadsBareRouteFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "827.5"), []byte("[[1, 3], [2]]"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0o644))
	d, err := NewDir(root)
	require.NoError(t, err)

	sols, err := d.ListSolutions(context.Background(), "any", 0)
	require.NoError(t, err)
	require.Len(t, sols, 1)
	assert.Equal(t, 827.5, sols[0].Fitness)
	assert.Equal(t, [][]int{{1, 3}, {2}}, sols[0].Routes)

	// bare files seed runs but never count as an instance's best
	_, err = d.BestSolution(context.Background(), "any")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, config.Store{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, st)

	st, err = Open(ctx, config.Store{Driver: "dir", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Dir{}, st)

	_, err = Open(ctx, config.Store{Driver: "mongo"})
	assert.Error(t, err)
}
