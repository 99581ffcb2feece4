package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"nurseroute/internal/model"
)

// Memory keeps solutions in process. It is the default when no persistent
// driver is configured.
type Memory struct {
	mu     sync.Mutex
	byInst map[string][]model.Solution // instance -> solutions
}

func NewMemory() *Memory {
	return &Memory{byInst: map[string][]model.Solution{}}
}

func (m *Memory) SaveSolution(_ context.Context, s model.Solution) (model.Solution, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	s.Routes = copyRoutes(s.Routes)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byInst[s.Instance] = append(m.byInst[s.Instance], s)
	return s, nil
}

func (m *Memory) ListSolutions(_ context.Context, instance string, limit int) ([]model.Solution, error) {
	m.mu.Lock()
	out := make([]model.Solution, len(m.byInst[instance]))
	for i, s := range m.byInst[instance] {
		s.Routes = copyRoutes(s.Routes)
		out[i] = s
	}
	m.mu.Unlock()
	sortSolutions(out)
	return limitSolutions(out, limit), nil
}

func (m *Memory) BestSolution(ctx context.Context, instance string) (model.Solution, error) {
	sols, _ := m.ListSolutions(ctx, instance, 1)
	if len(sols) == 0 {
		return model.Solution{}, ErrNotFound
	}
	return sols[0], nil
}

func (m *Memory) Close() error { return nil }

func copyRoutes(routes [][]int) [][]int {
	out := make([][]int, len(routes))
	for i, r := range routes {
		out[i] = append([]int{}, r...)
	}
	return out
}
