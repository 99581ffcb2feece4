package opt

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"nurseroute/internal/config"
	"nurseroute/internal/model"
)

// Crossover exchanges one route between two parents and repairs each child
// by re-inserting the displaced patients at their cheapest positions.
type Crossover struct {
	inst      *model.Instance
	eval      *Evaluator
	rate      float64
	tries     int
	neighbors int
	nearest   bool
}

func NewCrossover(inst *model.Instance, eval *Evaluator, cfg config.Crossover) (*Crossover, error) {
	c := &Crossover{inst: inst, eval: eval, rate: cfg.Rate, tries: cfg.Tries, neighbors: cfg.RepairNeighbors}
	switch cfg.Strategy {
	case "nearest", "":
		c.nearest = true
	case "exhaustive":
	default:
		return nil, fmt.Errorf("unknown crossover strategy %q", cfg.Strategy)
	}
	if c.tries < 1 {
		c.tries = 1
	}
	if c.neighbors < 1 {
		c.neighbors = 1
	}
	return c, nil
}

// Apply returns two children that share no storage with the parents.
func (c *Crossover) Apply(p1, p2 *model.Individual, rng *rand.Rand) (*model.Individual, *model.Individual) {
	if rng.Float64() >= c.rate {
		return p1.Clone(), p2.Clone()
	}
	r1 := c.pickNonEmpty(p1, rng)
	r2 := c.pickNonEmpty(p2, rng)
	if r1 < 0 || r2 < 0 {
		return p1.Clone(), p2.Clone()
	}
	c1 := c.child(p1, p2.Routes[r2].Patients)
	c2 := c.child(p2, p1.Routes[r1].Patients)
	return c1, c2
}

func (c *Crossover) pickNonEmpty(ind *model.Individual, rng *rand.Rand) int {
	for range c.tries {
		i := rng.IntN(len(ind.Routes))
		if len(ind.Routes[i].Patients) > 0 {
			return i
		}
	}
	return -1
}

// child clones base, strips the patients of donor and repairs the gaps.
func (c *Crossover) child(base *model.Individual, donor []int) *model.Individual {
	ch := base.Clone()
	ch.Invalidate()
	drop := make(map[int]struct{}, len(donor))
	for _, p := range donor {
		drop[p] = struct{}{}
	}
	focus, most := 0, -1
	for n := range ch.Routes {
		kept := ch.Routes[n].Patients[:0]
		lost := 0
		for _, p := range ch.Routes[n].Patients {
			if _, ok := drop[p]; ok {
				lost++
				continue
			}
			kept = append(kept, p)
		}
		ch.Routes[n].Patients = kept
		if lost > most {
			focus, most = n, lost
		}
	}

	removed := slices.Clone(donor)
	slices.SortStableFunc(removed, func(a, b int) int {
		pa, pb := c.inst.Patients[a], c.inst.Patients[b]
		if r := cmp.Compare(pa.Start, pb.Start); r != 0 {
			return r
		}
		return cmp.Compare(pa.End, pb.End)
	})
	var buf []int
	for _, p := range removed {
		nurse, pos := -1, -1
		if c.nearest {
			nurse, pos = c.nearestInsertion(ch, p, &buf)
		}
		if nurse < 0 {
			nurse, pos = c.bestInsertion(ch, p, focus, &buf)
		}
		r := &ch.Routes[nurse]
		r.Patients = insertAt(r.Patients, pos, p)
	}
	return ch
}

// bestInsertion scans every position of every nurse; focus goes first so it
// wins ties.
func (c *Crossover) bestInsertion(ch *model.Individual, p, focus int, buf *[]int) (int, int) {
	bestN, bestP, bestD := focus, 0, math.Inf(1)
	try := func(n int) {
		route := ch.Routes[n].Patients
		base, _ := c.eval.Route(route)
		for pos := 0; pos <= len(route); pos++ {
			*buf = spliceInto(*buf, route, pos, p)
			f, _ := c.eval.Route(*buf)
			if d := f - base; d < bestD {
				bestN, bestP, bestD = n, pos, d
			}
		}
	}
	try(focus)
	for n := range ch.Routes {
		if n != focus {
			try(n)
		}
	}
	return bestN, bestP
}

// nearestInsertion only tries the slots right before and after the closest
// patients already routed in ch. It returns -1 when none of them is placed.
func (c *Crossover) nearestInsertion(ch *model.Individual, p int, buf *[]int) (int, int) {
	bestN, bestP, bestD := -1, -1, math.Inf(1)
	tried := 0
	for _, q := range c.inst.Nearest[p] {
		if tried >= c.neighbors {
			break
		}
		n, at := locate(ch, q)
		if n < 0 {
			continue
		}
		tried++
		route := ch.Routes[n].Patients
		base, _ := c.eval.Route(route)
		for _, pos := range [2]int{at, at + 1} {
			*buf = spliceInto(*buf, route, pos, p)
			f, _ := c.eval.Route(*buf)
			if d := f - base; d < bestD {
				bestN, bestP, bestD = n, pos, d
			}
		}
	}
	return bestN, bestP
}
