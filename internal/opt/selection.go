package opt

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"

	"nurseroute/internal/model"
)

// LinearRankProbability is the selection probability of rank i (0 = worst)
// in a population of mu with selection pressure s in [1, 2].
func LinearRankProbability(mu int, s float64, i int) float64 {
	m := float64(mu)
	return (2-s)/m + 2*float64(i)*(s-1)/(m*(m-1))
}

func linearRankWeights(mu int, s float64) []float64 {
	w := make([]float64, mu)
	if mu == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = LinearRankProbability(mu, s, i)
	}
	return w
}

type weightedSampler struct {
	cum []float64
}

// newWeightedSampler reports false when the weights cannot form a
// distribution (empty, negative, NaN or zero total).
func newWeightedSampler(weights []float64) (weightedSampler, bool) {
	cum := make([]float64, len(weights))
	total := 0.0
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return weightedSampler{}, false
		}
		total += w
		cum[i] = total
	}
	if len(weights) == 0 || total <= 0 {
		return weightedSampler{}, false
	}
	return weightedSampler{cum: cum}, true
}

func (s weightedSampler) sample(rng *rand.Rand) int {
	x := rng.Float64() * s.cum[len(s.cum)-1]
	i := sort.SearchFloat64s(s.cum, x)
	// SearchFloat64s returns the first cum >= x; skip zero-weight slots
	for i < len(s.cum)-1 && s.cum[i] <= x {
		i++
	}
	return i
}

// ParentSelector picks n indices into a population sorted worst-first.
type ParentSelector interface {
	Select(pop []*model.Individual, n int, rng *rand.Rand) []int
}

func newParentSelector(kind string, pressure float64, tournament int, log *slog.Logger) (ParentSelector, error) {
	switch kind {
	case "linear_ranking", "":
		return &linearRanking{s: pressure, log: log}, nil
	case "probabilistic":
		return &probabilistic{log: log}, nil
	case "tournament":
		return &tournamentSelector{size: tournament}, nil
	}
	return nil, fmt.Errorf("unknown parent selection %q", kind)
}

// parentCount is len(working)*scaling trimmed to an even number, at least 2.
func parentCount(working int, scaling float64) int {
	n := int(float64(working) * scaling)
	n -= n % 2
	return max(n, 2)
}

func sampleWeighted(weights []float64, n int, rng *rand.Rand, log *slog.Logger, who string) []int {
	out := make([]int, n)
	s, ok := newWeightedSampler(weights)
	if !ok {
		log.Debug("degenerate selection weights, sampling uniformly", "selector", who, "size", len(weights))
		for i := range out {
			out[i] = rng.IntN(len(weights))
		}
		return out
	}
	for i := range out {
		out[i] = s.sample(rng)
	}
	return out
}

type linearRanking struct {
	s   float64
	log *slog.Logger
}

func (l *linearRanking) Select(pop []*model.Individual, n int, rng *rand.Rand) []int {
	return sampleWeighted(linearRankWeights(len(pop), l.s), n, rng, l.log, "linear_ranking")
}

// probabilistic weights each member by 1/(1+fitness) so cheaper schedules
// are more likely to breed.
type probabilistic struct {
	log *slog.Logger
}

func (p *probabilistic) Select(pop []*model.Individual, n int, rng *rand.Rand) []int {
	w := make([]float64, len(pop))
	for i, ind := range pop {
		w[i] = InverseFitness(ind.Fitness)
	}
	return sampleWeighted(w, n, rng, p.log, "probabilistic")
}

// InverseFitness maps a cost to a sampling weight.
func InverseFitness(f float64) float64 {
	if f < 0 || math.IsNaN(f) {
		return 0
	}
	return 1 / (1 + f)
}

type tournamentSelector struct {
	size int
}

func (t *tournamentSelector) Select(pop []*model.Individual, n int, rng *rand.Rand) []int {
	k := min(max(t.size, 1), len(pop))
	idx := make([]int, len(pop))
	for i := range idx {
		idx[i] = i
	}
	out := make([]int, n)
	for d := range out {
		// partial Fisher-Yates: the first k slots are a uniform sample
		for i := 0; i < k; i++ {
			j := i + rng.IntN(len(idx)-i)
			idx[i], idx[j] = idx[j], idx[i]
		}
		win := idx[0]
		for _, c := range idx[1:k] {
			if pop[c].Fitness < pop[win].Fitness {
				win = c
			}
		}
		out[d] = win
	}
	return out
}
