package opt

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nurseroute/internal/model"
)

func TestLinearRankProbabilitySumsToOne(t *testing.T) {
	for _, mu := range []int{2, 3, 10, 57, 100} {
		for _, s := range []float64{1, 1.2, 1.5, 1.9, 2} {
			sum := 0.0
			for i := 0; i < mu; i++ {
				p := LinearRankProbability(mu, s, i)
				assert.GreaterOrEqual(t, p, 0.0)
				sum += p
			}
			assert.InDelta(t, 1.0, sum, 1e-9, "mu=%d s=%v", mu, s)
		}
	}
	// s=1 is uniform; s=2 gives the worst rank nothing
	assert.InDelta(t, 0.1, LinearRankProbability(10, 1, 3), 1e-12)
	assert.InDelta(t, 0.0, LinearRankProbability(10, 2, 0), 1e-12)
	assert.Equal(t, []float64{1}, linearRankWeights(1, 1.5))
}

func TestWeightedSampler(t *testing.T) {
	_, ok := newWeightedSampler(nil)
	assert.False(t, ok)
	_, ok = newWeightedSampler([]float64{0, 0})
	assert.False(t, ok)
	_, ok = newWeightedSampler([]float64{1, math.NaN()})
	assert.False(t, ok)
	_, ok = newWeightedSampler([]float64{1, -1})
	assert.False(t, ok)

	s, ok := newWeightedSampler([]float64{0, 3, 0, 1, 0})
	require.True(t, ok)
	rng := rand.New(rand.NewPCG(1, 2))
	counts := make([]int, 5)
	for range 4000 {
		counts[s.sample(rng)]++
	}
	assert.Zero(t, counts[0])
	assert.Zero(t, counts[2])
	assert.Zero(t, counts[4])
	assert.InDelta(t, 3000, counts[1], 200)
	assert.InDelta(t, 1000, counts[3], 200)
}

func TestSampleWeightedFallsBackToUniform(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	got := sampleWeighted([]float64{0, 0, 0}, 300, rng, testLogger(), "test")
	seen := map[int]bool{}
	for _, i := range got {
		require.True(t, i >= 0 && i < 3)
		seen[i] = true
	}
	assert.Len(t, seen, 3)
}

func population(fitness ...float64) []*model.Individual {
	pop := make([]*model.Individual, len(fitness))
	for i, f := range fitness {
		pop[i] = &model.Individual{Fitness: f, Feasible: true, Evaluated: true}
	}
	return pop
}

func TestParentSelectors(t *testing.T) {
	// sorted worst first
	pop := population(100, 50, 20, 10, 1)
	rng := rand.New(rand.NewPCG(4, 4))

	for _, kind := range []string{"linear_ranking", "probabilistic", "tournament"} {
		t.Run(kind, func(t *testing.T) {
			sel, err := newParentSelector(kind, 2, 3, testLogger())
			require.NoError(t, err)
			got := sel.Select(pop, 2000, rng)
			require.Len(t, got, 2000)
			counts := make([]int, len(pop))
			for _, i := range got {
				counts[i]++
			}
			assert.Greater(t, counts[4], counts[0], "best should breed more than worst")
		})
	}

	_, err := newParentSelector("roulette", 1.5, 3, testLogger())
	assert.Error(t, err)
}

func TestTournamentOfWholePopulationPicksBest(t *testing.T) {
	pop := population(9, 7, 3, 5)
	sel := &tournamentSelector{size: 10}
	for _, i := range sel.Select(pop, 20, rand.New(rand.NewPCG(1, 1))) {
		assert.Equal(t, 2, i)
	}
}

func TestParentCount(t *testing.T) {
	assert.Equal(t, 18, parentCount(18, 1))
	assert.Equal(t, 16, parentCount(17, 1))
	assert.Equal(t, 8, parentCount(18, 0.5))
	assert.Equal(t, 2, parentCount(3, 0.1))
	assert.Equal(t, 36, parentCount(18, 2))
}

func TestInverseFitness(t *testing.T) {
	assert.Equal(t, 1.0, InverseFitness(0))
	assert.Equal(t, 0.5, InverseFitness(1))
	assert.Zero(t, InverseFitness(-3))
	assert.Zero(t, InverseFitness(math.NaN()))
}
