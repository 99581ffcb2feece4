package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nurseroute/internal/config"
	"nurseroute/internal/model"
)

func TestTwoOptSwap(t *testing.T) {
	assert.Equal(t, []int{0, 3, 2, 1, 4}, twoOptSwap([]int{0, 1, 2, 3, 4}, 1, 3))
	assert.Equal(t, []int{1, 0}, twoOptSwap([]int{0, 1}, 0, 1))
}

func TestTwoOptRepairsWindowOrder(t *testing.T) {
	in := toyInstance(t)
	pen := PenaltiesFrom(config.Default().Penalty)
	ind := model.FromOneIndexed([][]int{{2, 1, 3, 4}, {}})

	before, ok := EvaluateRoute(in, ind.Routes[0].Patients, pen)
	require.False(t, ok)

	got := TwoOpt(in, ind, pen, 10)
	assert.True(t, got.Evaluated)
	assert.True(t, got.Feasible)
	assert.Equal(t, 10.0, got.Fitness)
	assert.Less(t, got.Fitness, before)
	assert.Equal(t, []int{0, 1, 2, 3}, got.Routes[0].Patients)
	require.NoError(t, CheckPartition(got, 4, "polished"))

	assert.Equal(t, []int{1, 0, 2, 3}, ind.Routes[0].Patients, "input untouched")
}

func TestTwoOptNeverWorsens(t *testing.T) {
	in := toyInstance(t)
	pen := PenaltiesFrom(config.Default().Penalty)
	ind := model.FromOneIndexed([][]int{{4, 3}, {1, 2}})
	ev := testEvaluator(in)
	ev.Evaluate(ind)

	got := TwoOpt(in, ind, pen, 3)
	assert.LessOrEqual(t, got.Fitness, ind.Fitness)
}
