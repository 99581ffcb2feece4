package opt

import (
	"fmt"
	"math/rand/v2"

	"nurseroute/internal/model"
)

// Acceptance is the probability that a child with cost c replaces a parent
// with cost p, given scaling factor k.
func Acceptance(c, p, k float64) float64 {
	switch {
	case c > p:
		return c / (c + k*p)
	case c == p:
		return 0.5
	default:
		return k * c / (k*c + p)
	}
}

// SurvivorSelector lets children compete for slots in the working
// population. children[2i] and children[2i+1] were bred from
// parents[2i] and parents[2i+1].
type SurvivorSelector interface {
	Select(working []*model.Individual, parents []int, children []*model.Individual, rng *rand.Rand)
}

func newSurvivorSelector(kind, pairing string, k float64) (SurvivorSelector, error) {
	var most bool
	switch pairing {
	case "least_similar", "":
	case "most_similar":
		most = true
	default:
		return nil, fmt.Errorf("unknown crowding pairing %q", pairing)
	}
	switch kind {
	case "crowding", "":
		return &crowding{k: k, mostSimilar: most}, nil
	case "crowding_global":
		return &globalCrowding{k: k}, nil
	}
	return nil, fmt.Errorf("unknown survivor selection %q", kind)
}

func compete(working []*model.Individual, slot int, child *model.Individual, k float64, rng *rand.Rand) {
	if rng.Float64() < Acceptance(child.Fitness, working[slot].Fitness, k) {
		working[slot] = child
	}
}

// crowding pairs each child with one of its own parents.
type crowding struct {
	k           float64
	mostSimilar bool
}

func (c *crowding) Select(working []*model.Individual, parents []int, children []*model.Individual, rng *rand.Rand) {
	mu := len(working)
	for i := 0; i+1 < len(parents) && i+1 < len(children); i += 2 {
		i1, i2 := parents[i], parents[i+1]
		c1, c2 := children[i], children[i+1]
		p1, p2 := working[i1], working[i2]
		straight := Similarity(c1, p1, mu) + Similarity(c2, p2, mu)
		crossed := Similarity(c1, p2, mu) + Similarity(c2, p1, mu)
		keep := straight < crossed
		if c.mostSimilar {
			keep = straight > crossed
		}
		if keep {
			compete(working, i1, c1, c.k, rng)
			compete(working, i2, c2, c.k, rng)
		} else {
			compete(working, i2, c1, c.k, rng)
			compete(working, i1, c2, c.k, rng)
		}
	}
}

// globalCrowding lets each child compete with the most similar member of
// the whole working population.
type globalCrowding struct {
	k float64
}

func (g *globalCrowding) Select(working []*model.Individual, _ []int, children []*model.Individual, rng *rand.Rand) {
	mu := len(working)
	for _, child := range children {
		slot, best := 0, -1.0
		for i, ind := range working {
			if s := Similarity(child, ind, mu); s > best {
				slot, best = i, s
			}
		}
		compete(working, slot, child, g.k, rng)
	}
}
