package opt

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/sourcegraph/conc/pool"

	"nurseroute/internal/config"
	"nurseroute/internal/model"
)

type mutationFunc func(ind *model.Individual, rng *rand.Rand)

type mutationStep struct {
	name string
	rate float64
	fn   mutationFunc
}

// Mutator applies its operators in a fixed order, each with its own rate.
type Mutator struct {
	eval      *Evaluator
	pressure  float64
	crossN    int
	insertN   int
	lnsMinLen int
	steps     []mutationStep
}

func NewMutator(eval *Evaluator, cfg config.Mutation, pressure float64) *Mutator {
	m := &Mutator{
		eval:      eval,
		pressure:  pressure,
		crossN:    max(cfg.CrossSwapSamples, 1),
		insertN:   max(cfg.InsertSamples, 1),
		lnsMinLen: max(cfg.LNSMinRouteLen, 3),
	}
	m.steps = []mutationStep{
		{"heuristic_cluster", cfg.Cluster, m.cluster},
		{"random_swap", cfg.RandomSwap, m.randomSwap},
		{"heuristic_swap", cfg.Swap, m.heuristicSwap},
		{"heuristic_cross_swap", cfg.CrossSwap, m.crossSwap},
		{"heuristic_insert", cfg.Insert, m.insert},
		{"large_neighbourhood", cfg.LargeNeighbourhood, m.largeNeighbourhood},
	}
	return m
}

// Mutate perturbs ind in place and marks it stale when anything ran.
func (m *Mutator) Mutate(ind *model.Individual, rng *rand.Rand) {
	for _, s := range m.steps {
		if s.rate > 0 && rng.Float64() < s.rate {
			s.fn(ind, rng)
			ind.Invalidate()
		}
	}
}

// MutatePopulation mutates every individual. Each gets its own RNG stream
// seeded from rng before any work is dispatched, so results do not depend
// on scheduling.
func (m *Mutator) MutatePopulation(pop []*model.Individual, rng *rand.Rand, workers int) {
	streams := make([]*rand.Rand, len(pop))
	for i := range streams {
		streams[i] = rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))
	}
	if workers <= 1 {
		for i, ind := range pop {
			m.Mutate(ind, streams[i])
		}
		return
	}
	p := pool.New().WithMaxGoroutines(workers)
	for i, ind := range pop {
		p.Go(func() { m.Mutate(ind, streams[i]) })
	}
	p.Wait()
}

// cluster moves a random contiguous segment to its cheapest position.
func (m *Mutator) cluster(ind *model.Individual, rng *rand.Rand) {
	n := pickRoute(ind, 2, rng)
	if n < 0 {
		return
	}
	route := ind.Routes[n].Patients
	start := rng.IntN(len(route))
	end := start + 1 + rng.IntN(len(route)-start)
	block := slices.Clone(route[start:end])
	ind.Routes[n].Patients = slices.Concat(route[:start], route[end:])

	bestN, bestP := m.bestBlockPosition(ind, block, true)
	r := &ind.Routes[bestN]
	r.Patients = insertAt(r.Patients, bestP, block...)
}

// bestBlockPosition finds where block fits best. With delta set it ranks
// by fitness increase, otherwise by the absolute fitness of the new route.
func (m *Mutator) bestBlockPosition(ind *model.Individual, block []int, delta bool) (int, int) {
	bestN, bestP, best := 0, 0, math.Inf(1)
	var buf []int
	for n, r := range ind.Routes {
		base := 0.0
		if delta {
			base, _ = m.eval.Route(r.Patients)
		}
		for pos := 0; pos <= len(r.Patients); pos++ {
			buf = spliceInto(buf, r.Patients, pos, block...)
			f, _ := m.eval.Route(buf)
			if f-base < best {
				bestN, bestP, best = n, pos, f-base
			}
		}
	}
	return bestN, bestP
}

func (m *Mutator) randomSwap(ind *model.Individual, rng *rand.Rand) {
	n := pickRoute(ind, 2, rng)
	if n < 0 {
		return
	}
	route := ind.Routes[n].Patients
	i := rng.IntN(len(route))
	j := rng.IntN(len(route) - 1)
	if j >= i {
		j++
	}
	route[i], route[j] = route[j], route[i]
}

// heuristicSwap applies the best pairwise swap within one route.
func (m *Mutator) heuristicSwap(ind *model.Individual, rng *rand.Rand) {
	n := pickRoute(ind, 2, rng)
	if n < 0 {
		return
	}
	route := ind.Routes[n].Patients
	bi, bj, best := 0, 1, math.Inf(1)
	for i := 0; i < len(route); i++ {
		for j := i + 1; j < len(route); j++ {
			route[i], route[j] = route[j], route[i]
			f, _ := m.eval.Route(route)
			route[i], route[j] = route[j], route[i]
			if f < best {
				bi, bj, best = i, j, f
			}
		}
	}
	route[bi], route[bj] = route[bj], route[bi]
}

type swapCandidate struct {
	i, j    int
	fitness float64
}

// crossSwap samples swaps between two nurses and picks one by linear rank,
// keeping some diversity instead of always taking the best.
func (m *Mutator) crossSwap(ind *model.Individual, rng *rand.Rand) {
	var nonEmpty []int
	for n, r := range ind.Routes {
		if len(r.Patients) > 0 {
			nonEmpty = append(nonEmpty, n)
		}
	}
	if len(nonEmpty) < 2 {
		return
	}
	k := rng.IntN(len(nonEmpty))
	l := rng.IntN(len(nonEmpty) - 1)
	if l >= k {
		l++
	}
	a, b := ind.Routes[nonEmpty[k]].Patients, ind.Routes[nonEmpty[l]].Patients

	cands := make([]swapCandidate, 0, m.crossN)
	for range m.crossN {
		i, j := rng.IntN(len(a)), rng.IntN(len(b))
		a[i], b[j] = b[j], a[i]
		fa, _ := m.eval.Route(a)
		fb, _ := m.eval.Route(b)
		a[i], b[j] = b[j], a[i]
		cands = append(cands, swapCandidate{i: i, j: j, fitness: fa + fb})
	}
	// worst first, so the best candidate has the highest rank
	slices.SortStableFunc(cands, func(x, y swapCandidate) int { return cmp.Compare(y.fitness, x.fitness) })
	pick := len(cands) - 1
	if len(cands) > 1 {
		if s, ok := newWeightedSampler(linearRankWeights(len(cands), m.pressure)); ok {
			pick = s.sample(rng)
		}
	}
	c := cands[pick]
	a[c.i], b[c.j] = b[c.j], a[c.i]
}

// insert moves one random patient to the best of a few sampled slots.
func (m *Mutator) insert(ind *model.Individual, rng *rand.Rand) {
	n := pickRoute(ind, 1, rng)
	if n < 0 {
		return
	}
	from := ind.Routes[n].Patients
	at := rng.IntN(len(from))
	p := from[at]
	ind.Routes[n].Patients = removeAt(from, at)

	bestN, bestP, best := n, at, math.Inf(1)
	var buf []int
	for range m.insertN {
		t := rng.IntN(len(ind.Routes))
		route := ind.Routes[t].Patients
		pos := rng.IntN(len(route) + 1)
		base, _ := m.eval.Route(route)
		buf = spliceInto(buf, route, pos, p)
		f, _ := m.eval.Route(buf)
		if f-base < best {
			bestN, bestP, best = t, pos, f-base
		}
	}
	r := &ind.Routes[bestN]
	r.Patients = insertAt(r.Patients, bestP, p)
}

// largeNeighbourhood cuts a random tail off a long route and re-inserts it
// as one block where the receiving route ends up cheapest.
func (m *Mutator) largeNeighbourhood(ind *model.Individual, rng *rand.Rand) {
	n := -1
	for range 3 {
		i := rng.IntN(len(ind.Routes))
		if len(ind.Routes[i].Patients) >= m.lnsMinLen {
			n = i
			break
		}
	}
	if n < 0 {
		return
	}
	route := ind.Routes[n].Patients
	k := 2 + rng.IntN(len(route)-2)
	cut := len(route) - k
	block := slices.Clone(route[cut:])
	ind.Routes[n].Patients = route[:cut:cut]

	bestN, bestP := m.bestBlockPosition(ind, block, false)
	r := &ind.Routes[bestN]
	r.Patients = insertAt(r.Patients, bestP, block...)
}
