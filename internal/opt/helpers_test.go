package opt

import (
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nurseroute/internal/config"
	"nurseroute/internal/model"
)

// toyInstance has 4 patients with back-to-back windows and 2 nurses. The
// optimum visits everyone with one nurse in window order for a cost of 10.
func toyInstance(t testing.TB) *model.Instance {
	t.Helper()
	in := &model.Instance{
		Name:     "toy",
		Nurses:   2,
		Capacity: 10,
		Depot:    model.Depot{ReturnTime: 200},
		Patients: []model.Patient{
			{Demand: 1, Start: 0, End: 30, Care: 5},
			{Demand: 1, Start: 30, End: 60, Care: 5},
			{Demand: 1, Start: 60, End: 90, Care: 5},
			{Demand: 1, Start: 90, End: 120, Care: 5},
		},
		Travel: [][]float64{
			{0, 2, 3, 4, 5},
			{2, 0, 1, 2, 3},
			{3, 1, 0, 1, 2},
			{4, 2, 1, 0, 1},
			{5, 3, 2, 1, 0},
		},
	}
	require.NoError(t, in.Prepare())
	return in
}

// randomInstance scatters n patients on a grid with loose windows.
func randomInstance(t testing.TB, rng *rand.Rand, n, nurses int) *model.Instance {
	t.Helper()
	type pt struct{ x, y float64 }
	pts := make([]pt, n+1)
	for i := range pts {
		pts[i] = pt{rng.Float64() * 100, rng.Float64() * 100}
	}
	in := &model.Instance{
		Name:     "random",
		Nurses:   nurses,
		Capacity: 50,
		Depot:    model.Depot{X: pts[0].x, Y: pts[0].y, ReturnTime: 1000},
		Patients: make([]model.Patient, n),
		Travel:   make([][]float64, n+1),
	}
	for i := range in.Patients {
		start := rng.Float64() * 600
		in.Patients[i] = model.Patient{
			X: pts[i+1].x, Y: pts[i+1].y,
			Demand: 1 + rng.IntN(10),
			Start:  start,
			End:    start + 50 + rng.Float64()*300,
			Care:   5 + rng.Float64()*10,
		}
	}
	for i := range in.Travel {
		in.Travel[i] = make([]float64, n+1)
		for j := range in.Travel[i] {
			in.Travel[i][j] = math.Round(math.Hypot(pts[i].x-pts[j].x, pts[i].y-pts[j].y))
		}
	}
	require.NoError(t, in.Prepare())
	return in
}

// randomIndividual deals every patient to a random nurse in random order.
func randomIndividual(in *model.Instance, rng *rand.Rand) *model.Individual {
	ind := model.NewIndividual(in.Nurses)
	for _, p := range rng.Perm(len(in.Patients)) {
		r := &ind.Routes[rng.IntN(in.Nurses)]
		r.Patients = append(r.Patients, p)
	}
	return ind
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Problem = "toy.json"
	cfg.Seed = 7
	cfg.Run.Generations = 50
	cfg.Run.LogFrequency = 10
	cfg.Run.Workers = 1
	cfg.Run.VerifyInvariants = true
	cfg.Population.Size = 20
	cfg.Population.ConstructionRetries = 5000
	cfg.Stagnation.Threshold = 20
	cfg.Islands.Count = 3
	cfg.Islands.ShareFrequency = 5
	return &cfg
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testEvaluator(in *model.Instance) *Evaluator {
	return NewEvaluator(in, PenaltiesFrom(config.Default().Penalty), nil, 1, nil, 0)
}

type memStore struct {
	mu    sync.Mutex
	saved []model.Solution
}

func (m *memStore) SaveSolution(_ context.Context, s model.Solution) (model.Solution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.CreatedAt = time.Now()
	m.saved = append(m.saved, s)
	return s, nil
}

func (m *memStore) ListSolutions(_ context.Context, instance string, _ int) ([]model.Solution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Solution
	for _, s := range m.saved {
		if s.Instance == instance {
			out = append(out, s)
		}
	}
	return out, nil
}

type countingRecorder struct {
	nopRecorder
	mu         sync.Mutex
	restarts   int
	migrations int
	received   int
	persisted  int
}

func (c *countingRecorder) Restart(int) {
	c.mu.Lock()
	c.restarts++
	c.mu.Unlock()
}

func (c *countingRecorder) Migration(_ int, received bool) {
	c.mu.Lock()
	c.migrations++
	if received {
		c.received++
	}
	c.mu.Unlock()
}

func (c *countingRecorder) SolutionPersisted(int) {
	c.mu.Lock()
	c.persisted++
	c.mu.Unlock()
}
