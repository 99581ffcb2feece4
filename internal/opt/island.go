package opt

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"nurseroute/internal/config"
	"nurseroute/internal/model"
)

// Slot is the single shared migration buffer. Exchanges are lossy: a
// migrant nobody picks up is overwritten by the next deposit.
type Slot struct {
	mu   sync.Mutex
	held *model.Individual
	from int
}

func NewSlot() *Slot { return &Slot{from: -1} }

// Exchange deposits a copy of out. If the slot held a migrant from another
// island it is handed over; otherwise the caller keeps its own individual.
func (s *Slot) Exchange(_ context.Context, island int, out *model.Individual) (*model.Individual, error) {
	dep := out.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	in, from := s.held, s.from
	s.held, s.from = dep, island
	if in == nil || from == island {
		return nil, nil
	}
	return in, nil
}

type IslandResult struct {
	Best    *model.Individual
	Island  int
	Islands []Result
}

// RunIslands runs one serial engine per island and returns the best result.
// deps.Exchange defaults to an in-process Slot.
func RunIslands(ctx context.Context, inst *model.Instance, cfg *config.Config, deps Deps) (IslandResult, error) {
	n := cfg.IslandCount()
	if deps.Exchange == nil {
		deps.Exchange = NewSlot()
	}
	tracker := &bestTracker{}
	engines := make([]*Engine, n)
	for i := range engines {
		e, err := NewEngine(inst, cfg, deps, WithIsland(i), WithSeed(cfg.Seed+uint64(i)), WithWorkers(1), withTracker(tracker))
		if err != nil {
			return IslandResult{}, fmt.Errorf("island %d: %w", i, err)
		}
		engines[i] = e
	}

	results := make([]Result, n)
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range engines {
		g.Go(func() error {
			res, err := e.Run(gctx)
			results[i] = res
			return err
		})
	}
	err := g.Wait()

	out := IslandResult{Islands: results, Island: -1}
	for _, r := range results {
		if r.Best != nil && better(r.Best, out.Best) {
			out.Best, out.Island = r.Best, r.Island
		}
	}
	return out, err
}

// Solve runs a single engine using the configured worker pool.
func Solve(ctx context.Context, inst *model.Instance, cfg *config.Config, deps Deps) (Result, error) {
	e, err := NewEngine(inst, cfg, deps)
	if err != nil {
		return Result{}, err
	}
	return e.Run(ctx)
}
