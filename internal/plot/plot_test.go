package plot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nurseroute/internal/model"
)

func TestRoutes(t *testing.T) {
	in := &model.Instance{
		Nurses: 3,
		Depot:  model.Depot{X: 40, Y: 50},
		Patients: []model.Patient{
			{X: 45, Y: 68}, {X: 45, Y: 70}, {X: 42, Y: 66}, {X: 10, Y: 12},
		},
	}
	ind := model.FromOneIndexed([][]int{{1, 2, 3}, {}, {4}})
	out := filepath.Join(t.TempDir(), "routes.png")
	require.NoError(t, Routes(in, ind, "train_0", out))
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestFitness(t *testing.T) {
	dir := t.TempDir()
	assert.ErrorIs(t, Fitness(nil, "empty", filepath.Join(dir, "x.png")), ErrNoData)

	hist := []model.Progress{
		{Generation: 100, Best: 900, Mean: 1400},
		{Generation: 0, Best: 1500, Mean: 2600},
		{Generation: 200, Best: 850, Mean: 1100},
	}
	out := filepath.Join(dir, "fitness.svg")
	require.NoError(t, Fitness(hist, "island 0", out))
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
	// input order is left alone
	assert.Equal(t, 100, hist[0].Generation)
}
