package opt

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync"
	"time"

	"nurseroute/internal/config"
	"nurseroute/internal/model"
	"nurseroute/internal/report"
)

// Deps are the collaborators an engine talks to. Every field is optional.
type Deps struct {
	RunID    string
	Store    SolutionStore
	Reporter report.Reporter
	Recorder Recorder
	Exchange Exchanger
	Logger   *slog.Logger
}

type Result struct {
	Island      int
	Best        *model.Individual
	Generations int
	Restarts    int
	Elapsed     time.Duration
}

type Option func(*Engine)

func WithIsland(i int) Option     { return func(e *Engine) { e.island = i } }
func WithSeed(seed uint64) Option { return func(e *Engine) { e.seed = seed } }

// WithWorkers bounds the evaluation and mutation pools; 1 runs serially.
func WithWorkers(n int) Option { return func(e *Engine) { e.workers = n } }

func withTracker(t *bestTracker) Option { return func(e *Engine) { e.tracker = t } }

// bestTracker holds the best persisted fitness, shared by all islands of a run.
type bestTracker struct {
	mu   sync.Mutex
	best float64
	set  bool
}

func (t *bestTracker) offer(f float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.set && f >= t.best {
		return false
	}
	t.best, t.set = f, true
	return true
}

// Engine runs one generational loop. It is not safe for concurrent use;
// the island coordinator gives each goroutine its own.
type Engine struct {
	inst *model.Instance
	cfg  *config.Config
	deps Deps
	log  *slog.Logger
	rec  Recorder

	island  int
	seed    uint64
	workers int
	tracker *bestTracker
	rng     *rand.Rand

	eval      *Evaluator
	init      Initializer
	cross     *Crossover
	mut       *Mutator
	parents   ParentSelector
	survivors SurvivorSelector
	restart   RestartStrategy
	stag      *StagnationController

	pop      []*model.Individual
	best     *model.Individual
	restarts int
}

// NewEngine resolves every configured strategy up front so the loop never
// re-dispatches on strings.
func NewEngine(inst *model.Instance, cfg *config.Config, deps Deps, opts ...Option) (*Engine, error) {
	e := &Engine{inst: inst, cfg: cfg, deps: deps, seed: cfg.Seed, workers: cfg.Run.Workers}
	for _, o := range opts {
		o(e)
	}
	if e.workers <= 0 {
		e.workers = runtime.NumCPU()
	}
	if e.tracker == nil {
		e.tracker = &bestTracker{}
	}
	e.rec = deps.Recorder
	if e.rec == nil {
		e.rec = nopRecorder{}
	}
	e.log = deps.Logger
	if e.log == nil {
		e.log = slog.Default()
	}
	e.log = e.log.With("island", e.island)
	e.rng = rand.New(rand.NewPCG(e.seed, uint64(e.island)+1))

	var cache *FitnessCache
	if cfg.Run.Cache {
		cache = NewFitnessCache(cfg.Run.CacheLimit)
	}
	e.eval = NewEvaluator(inst, PenaltiesFrom(cfg.Penalty), cache, e.workers, e.rec, e.island)

	var err error
	if e.init, err = newInitializer(cfg.Population.Init, inst, cfg.Population.ConstructionRetries, deps.Store, e.log); err != nil {
		return nil, err
	}
	if e.cross, err = NewCrossover(inst, e.eval, cfg.Crossover); err != nil {
		return nil, err
	}
	e.mut = NewMutator(e.eval, cfg.Mutation, cfg.Selection.Pressure)
	if e.parents, err = newParentSelector(cfg.Selection.Parent, cfg.Selection.Pressure, cfg.Selection.TournamentSize, e.log); err != nil {
		return nil, err
	}
	if e.survivors, err = newSurvivorSelector(cfg.Selection.Survivor, cfg.Selection.Pairing, cfg.Selection.ScalingFactor); err != nil {
		return nil, err
	}
	if e.restart, err = ParseRestartStrategy(cfg.Stagnation.Restart); err != nil {
		return nil, err
	}
	e.stag = NewStagnationController(cfg.Stagnation.Threshold)
	return e, nil
}

// Population returns the current population, worst first after each sort.
func (e *Engine) Population() []*model.Individual { return e.pop }

// Run evolves the population until the generation or time limit is reached
// or ctx is cancelled. Cancellation is checked at the top of each
// generation and is not an error.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{Island: e.island}
	if err := e.seedPopulation(ctx); err != nil {
		return res, err
	}

	gen := 0
	for ; gen < e.cfg.Run.Generations; gen++ {
		if ctx.Err() != nil {
			e.log.Info("stopping early", "generation", gen, "reason", context.Cause(ctx))
			break
		}
		if e.cfg.Run.TimeLimit > 0 && time.Since(start) >= e.cfg.Run.TimeLimit {
			e.log.Info("time limit reached", "generation", gen)
			break
		}
		if err := e.generation(ctx, gen, start); err != nil {
			res.Generations, res.Restarts, res.Elapsed, res.Best = gen, e.restarts, time.Since(start), e.best
			return res, err
		}
	}
	sortWorstFirst(e.pop)
	e.observeBest(e.pop[len(e.pop)-1])
	e.report(ctx, gen, start)

	res.Best = e.best
	res.Generations = gen
	res.Restarts = e.restarts
	res.Elapsed = time.Since(start)
	return res, nil
}

func (e *Engine) seedPopulation(ctx context.Context) error {
	pop, err := e.init.Initialize(ctx, e.cfg.Population.Size, e.rng)
	if err != nil {
		return fmt.Errorf("island %d: initialize population: %w", e.island, err)
	}
	if err := e.verify(pop, "initialize"); err != nil {
		return err
	}
	e.eval.EvaluatePopulation(pop)
	e.pop = pop
	return nil
}

func (e *Engine) generation(ctx context.Context, gen int, start time.Time) error {
	if e.deps.Exchange != nil && gen > 0 && gen%e.cfg.Islands.ShareFrequency == 0 {
		if err := e.migrate(ctx); err != nil {
			e.log.Warn("migration failed", "generation", gen, "error", err)
		}
	}

	sortWorstFirst(e.pop)
	top := e.pop[len(e.pop)-1]
	e.observeBest(top)
	e.rec.Generation(e.island, top.Fitness)
	if gen%e.cfg.Run.LogFrequency == 0 {
		e.report(ctx, gen, start)
	}

	switch e.stag.Observe(top.Fitness) {
	case Improved:
		e.persist(ctx, gen)
	case Restart:
		if err := e.restartPopulation(ctx, gen); err != nil {
			return err
		}
	}
	return e.breed(gen)
}

// breed runs one selection, variation and replacement pass on the
// non-elite part of the sorted population.
func (e *Engine) breed(gen int) error {
	n := len(e.pop)
	k := min(e.cfg.Population.Elitism, n-2)
	elites := slices.Clone(e.pop[n-k:])
	working := slices.Clone(e.pop[:n-k])

	parents := e.parents.Select(working, parentCount(len(working), e.cfg.Selection.ParentsScaling), e.rng)
	children := make([]*model.Individual, 0, len(parents))
	for i := 0; i+1 < len(parents); i += 2 {
		c1, c2 := e.cross.Apply(working[parents[i]], working[parents[i+1]], e.rng)
		children = append(children, c1, c2)
	}
	e.mut.MutatePopulation(children, e.rng, e.workers)
	if err := e.verify(children, fmt.Sprintf("generation %d variation", gen)); err != nil {
		return err
	}
	e.eval.EvaluatePopulation(children)
	e.survivors.Select(working, parents, children, e.rng)

	e.pop = append(working, elites...)
	return nil
}

func (e *Engine) verify(pop []*model.Individual, stage string) error {
	if !e.cfg.Run.VerifyInvariants {
		return nil
	}
	for _, ind := range pop {
		if err := CheckPartition(ind, len(e.inst.Patients), stage); err != nil {
			e.log.Error("invariant violated", "error", err)
			return fmt.Errorf("island %d: %w", e.island, err)
		}
	}
	return nil
}

// restartPopulation replaces everything but the retained best individuals
// with a freshly initialized population. A restart always completes: the
// run only stops at the top of a generation.
func (e *Engine) restartPopulation(ctx context.Context, gen int) error {
	ctx = context.WithoutCancel(ctx)
	keep := e.restart.retained(e.cfg.Population.Elitism, len(e.pop))
	survivors := slices.Clone(e.pop[len(e.pop)-keep:])
	prevBest := e.stag.Best()
	fresh, err := e.init.Initialize(ctx, len(e.pop)-keep, e.rng)
	if err != nil {
		return fmt.Errorf("island %d: restart: %w", e.island, err)
	}
	if err := e.verify(fresh, "restart"); err != nil {
		return err
	}
	e.eval.EvaluatePopulation(fresh)
	e.pop = append(fresh, survivors...)
	sortWorstFirst(e.pop)
	newBest := e.pop[len(e.pop)-1].Fitness
	e.stag.Reset(newBest)
	e.restarts++
	e.rec.Restart(e.island)
	e.log.Info("population restarted", "generation", gen, "kept", keep, "restarts", e.restarts)
	if newBest < prevBest {
		e.observeBest(e.pop[len(e.pop)-1])
		e.persist(ctx, gen)
	}
	return nil
}

// persist writes the best feasible individual when it beats every
// solution persisted so far in this run.
func (e *Engine) persist(ctx context.Context, gen int) {
	ctx = context.WithoutCancel(ctx)
	var cand *model.Individual
	for i := len(e.pop) - 1; i >= 0; i-- {
		if e.pop[i].Feasible {
			cand = e.pop[i]
			break
		}
	}
	if cand == nil || !e.tracker.offer(cand.Fitness) {
		return
	}
	e.log.Info("new global best", "generation", gen, "fitness", cand.Fitness)
	if e.deps.Store == nil {
		return
	}
	sol := model.Solution{
		RunID:      e.deps.RunID,
		Instance:   e.inst.Name,
		Island:     e.island,
		Generation: gen,
		Fitness:    cand.Fitness,
		Feasible:   cand.Feasible,
		Routes:     cand.OneIndexed(),
	}
	if _, err := e.deps.Store.SaveSolution(ctx, sol); err != nil {
		e.log.Warn("persist solution failed", "error", err)
		return
	}
	e.rec.SolutionPersisted(e.island)
}

// migrate donates one individual, sampled by inverse fitness, and takes in
// whatever migrant is waiting.
func (e *Engine) migrate(ctx context.Context) error {
	weights := make([]float64, len(e.pop))
	for i, ind := range e.pop {
		weights[i] = InverseFitness(ind.Fitness)
	}
	idx := sampleWeighted(weights, 1, e.rng, e.log, "migration")[0]
	in, err := e.deps.Exchange.Exchange(ctx, e.island, e.pop[idx])
	if err != nil {
		return err
	}
	e.rec.Migration(e.island, in != nil)
	if in == nil {
		return nil
	}
	if len(in.Routes) != e.inst.Nurses {
		return fmt.Errorf("migrant has %d routes, want %d", len(in.Routes), e.inst.Nurses)
	}
	if err := CheckPartition(in, len(e.inst.Patients), "migration"); err != nil {
		return err
	}
	if !in.Evaluated {
		e.eval.Evaluate(in)
	}
	e.pop[idx] = in
	e.log.Debug("migrant received", "fitness", in.Fitness, "replaced", idx)
	return nil
}

func (e *Engine) report(ctx context.Context, gen int, start time.Time) {
	if e.deps.Reporter == nil || len(e.pop) == 0 {
		return
	}
	fs := make([]float64, len(e.pop))
	feasible := false
	bestF := e.pop[0].Fitness
	for i, ind := range e.pop {
		fs[i] = ind.Fitness
		if ind.Fitness <= bestF {
			bestF, feasible = ind.Fitness, ind.Feasible
		}
	}
	st := report.Summarize(fs)
	e.deps.Reporter.Report(ctx, model.Progress{
		RunID:      e.deps.RunID,
		Island:     e.island,
		Generation: gen,
		Best:       st.Best,
		Worst:      st.Worst,
		Mean:       st.Mean,
		StdDev:     st.StdDev,
		Feasible:   feasible,
		Restarts:   e.restarts,
		Elapsed:    time.Since(start),
	})
}

// observeBest keeps a private copy of the best individual seen so far.
// Feasible individuals always beat infeasible ones.
func (e *Engine) observeBest(ind *model.Individual) {
	if better(ind, e.best) {
		e.best = ind.Clone()
	}
	// the population best may be infeasible while a feasible one exists
	if e.best != nil && !e.best.Feasible {
		for _, cand := range e.pop {
			if cand.Feasible && better(cand, e.best) {
				e.best = cand.Clone()
			}
		}
	}
}

func better(a, b *model.Individual) bool {
	if b == nil {
		return true
	}
	if a.Feasible != b.Feasible {
		return a.Feasible
	}
	return a.Fitness < b.Fitness
}

func sortWorstFirst(pop []*model.Individual) {
	slices.SortStableFunc(pop, func(a, b *model.Individual) int { return cmp.Compare(b.Fitness, a.Fitness) })
}
