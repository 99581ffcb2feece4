package opt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nurseroute/internal/model"
)

func TestSlotExchange(t *testing.T) {
	ctx := context.Background()
	s := NewSlot()
	a := model.FromOneIndexed([][]int{{1, 2}, {3}})

	got, err := s.Exchange(ctx, 0, a)
	require.NoError(t, err)
	assert.Nil(t, got, "empty slot hands nothing back")

	// an island never receives its own migrant
	got, err = s.Exchange(ctx, 0, a)
	require.NoError(t, err)
	assert.Nil(t, got)

	a.Routes[0].Patients[0] = 2
	b := model.FromOneIndexed([][]int{{3}, {1, 2}})
	got, err = s.Exchange(ctx, 1, b)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotSame(t, a, got)
	assert.Equal(t, []int{0, 1}, got.Routes[0].Patients, "slot holds a copy")

	got, err = s.Exchange(ctx, 2, a)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.SameRoutes(b))
}

func TestRunIslands(t *testing.T) {
	in := toyInstance(t)
	cfg := testConfig()
	rec := &countingRecorder{}
	st := &memStore{}
	res, err := RunIslands(context.Background(), in, cfg, Deps{RunID: "islands", Store: st, Recorder: rec, Logger: testLogger()})
	require.NoError(t, err)

	require.Len(t, res.Islands, 3)
	require.NotNil(t, res.Best)
	assert.True(t, res.Best.Feasible)
	assert.GreaterOrEqual(t, res.Island, 0)
	for i, r := range res.Islands {
		assert.Equal(t, i, r.Island)
		assert.Equal(t, cfg.Run.Generations, r.Generations)
		assert.GreaterOrEqual(t, r.Best.Fitness, res.Best.Fitness)
	}

	// every island shares every 5 generations after the first
	assert.Equal(t, 3*9, rec.migrations)
	require.NotEmpty(t, st.saved)
	assert.Equal(t, len(st.saved), rec.persisted)
	for _, s := range st.saved {
		assert.Equal(t, "islands", s.RunID)
		require.NoError(t, CheckPartition(model.FromOneIndexed(s.Routes), 4, "persisted"))
	}
}

func TestRunIslandsPropagatesSetupErrors(t *testing.T) {
	in := toyInstance(t)
	cfg := testConfig()
	cfg.Selection.Parent = "roulette"
	_, err := RunIslands(context.Background(), in, cfg, Deps{Logger: testLogger()})
	assert.Error(t, err)
}
