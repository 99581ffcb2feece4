package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"nurseroute/internal/config"
	"nurseroute/internal/model"
)

// Store persists improving solutions and serves them back for seeding and
// the status server.
type Store interface {
	// SaveSolution assigns an ID and timestamp when missing and returns
	// the stored record.
	SaveSolution(ctx context.Context, s model.Solution) (model.Solution, error)
	// ListSolutions returns solutions for instance, cheapest first. A
	// limit of 0 or less means no limit.
	ListSolutions(ctx context.Context, instance string, limit int) ([]model.Solution, error)
	// BestSolution returns the cheapest feasible solution, falling back to
	// the cheapest infeasible one, or ErrNotFound.
	BestSolution(ctx context.Context, instance string) (model.Solution, error)
	Close() error
}

var ErrNotFound = errors.New("not found")

// Open builds the configured store. Postgres stores are migrated.
func Open(ctx context.Context, cfg config.Store) (Store, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemory(), nil
	case "dir":
		return NewDir(cfg.Dir)
	case "postgres":
		p, err := NewPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := p.Migrate(ctx); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func sortSolutions(sols []model.Solution) {
	slices.SortStableFunc(sols, func(a, b model.Solution) int {
		if a.Feasible != b.Feasible {
			if a.Feasible {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.Fitness, b.Fitness); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

func limitSolutions(sols []model.Solution, limit int) []model.Solution {
	if limit > 0 && len(sols) > limit {
		return sols[:limit]
	}
	return sols
}
