package opt

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"nurseroute/internal/model"
)

// Initializer builds a population of size n.
type Initializer interface {
	Initialize(ctx context.Context, n int, rng *rand.Rand) ([]*model.Individual, error)
}

func newInitializer(kind string, inst *model.Instance, retries int, store SolutionStore, log *slog.Logger) (Initializer, error) {
	switch kind {
	case "feasible", "":
		return &feasibleInit{inst: inst, retries: retries}, nil
	case "file":
		if store == nil {
			return nil, fmt.Errorf("file initializer needs a solution store")
		}
		return &fileInit{inst: inst, store: store, log: log}, nil
	case "start_time":
		return &startTimeInit{inst: inst}, nil
	}
	return nil, fmt.Errorf("unknown initializer %q", kind)
}

// feasibleInit inserts patients at random (nurse, position) pairs and keeps
// only insertions that leave the nurse's route feasible.
type feasibleInit struct {
	inst    *model.Instance
	retries int
}

func (f *feasibleInit) Initialize(ctx context.Context, n int, rng *rand.Rand) ([]*model.Individual, error) {
	pop := make([]*model.Individual, 0, n)
	for len(pop) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ind, err := f.build(rng)
		if err != nil {
			return nil, err
		}
		pop = append(pop, ind)
	}
	return pop, nil
}

func (f *feasibleInit) build(rng *rand.Rand) (*model.Individual, error) {
	in := f.inst
	ind := model.NewIndividual(in.Nurses)
	var buf []int
	for _, p := range rng.Perm(len(in.Patients)) {
		placed := false
		for a := 0; a < f.retries; a++ {
			nurse := rng.IntN(in.Nurses)
			route := ind.Routes[nurse].Patients
			pos := rng.IntN(len(route) + 1)
			buf = spliceInto(buf, route, pos, p)
			if RouteFeasible(in, buf) {
				ind.Routes[nurse].Patients = insertAt(route, pos, p)
				ind.Routes[nurse].Demand += in.Patients[p].Demand
				placed = true
				break
			}
		}
		if !placed {
			return nil, &ConstructionError{Patient: p, Attempts: f.retries, Partial: ind}
		}
	}
	return ind, nil
}

// startTimeInit deals patients round-robin in window-start order. Ties and
// the nurse order are shuffled per individual.
type startTimeInit struct {
	inst *model.Instance
}

func (s *startTimeInit) Initialize(ctx context.Context, n int, rng *rand.Rand) ([]*model.Individual, error) {
	in := s.inst
	pop := make([]*model.Individual, 0, n)
	for len(pop) < n {
		order := rng.Perm(len(in.Patients))
		slices.SortStableFunc(order, func(a, b int) int {
			return cmp.Compare(in.Patients[a].Start, in.Patients[b].Start)
		})
		nurses := rng.Perm(in.Nurses)
		ind := model.NewIndividual(in.Nurses)
		for i, p := range order {
			r := &ind.Routes[nurses[i%in.Nurses]]
			r.Patients = append(r.Patients, p)
			r.Demand += in.Patients[p].Demand
		}
		pop = append(pop, ind)
	}
	return pop, nil
}

// fileInit seeds the population from previously persisted solutions.
type fileInit struct {
	inst  *model.Instance
	store SolutionStore
	log   *slog.Logger
}

func (f *fileInit) Initialize(ctx context.Context, n int, rng *rand.Rand) ([]*model.Individual, error) {
	sols, err := f.store.ListSolutions(ctx, f.inst.Name, 0)
	if err != nil {
		return nil, fmt.Errorf("list stored solutions: %w", err)
	}
	var seeds []*model.Individual
	for _, s := range sols {
		ind := model.FromOneIndexed(s.Routes)
		if len(ind.Routes) != f.inst.Nurses {
			f.log.Warn("skipping stored solution with wrong nurse count", "id", s.ID, "nurses", len(ind.Routes))
			continue
		}
		if err := CheckPartition(ind, len(f.inst.Patients), "file"); err != nil {
			f.log.Warn("skipping stored solution", "id", s.ID, "error", err)
			continue
		}
		seeds = append(seeds, ind)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: instance %q", ErrNoSeedSolutions, f.inst.Name)
	}
	for len(seeds) < n {
		seeds = append(seeds, seeds[rng.IntN(len(seeds))].Clone())
	}
	for len(seeds) > n {
		i := rng.IntN(len(seeds))
		seeds = slices.Delete(seeds, i, i+1)
	}
	return seeds, nil
}
