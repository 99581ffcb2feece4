package opt

import (
	"time"

	"github.com/sourcegraph/conc/pool"

	"nurseroute/internal/config"
	"nurseroute/internal/model"
)

// Penalties are the additive costs for constraint violations.
type Penalties struct {
	// Punishment multiplies the travel time of a leg that misses its window.
	Punishment float64
	Capacity   float64
	Return     float64
}

func PenaltiesFrom(p config.Penalty) Penalties {
	return Penalties{Punishment: p.Punishment, Capacity: p.Capacity, Return: p.Return}
}

// EvaluateRoute scores one nurse route. Lower is better.
func EvaluateRoute(in *model.Instance, route []int, pen Penalties) (float64, bool) {
	if len(route) == 0 {
		return 0, true
	}
	feasible := true
	fitness, elapsed := 0.0, 0.0
	demand := 0
	prev := 0
	for _, p := range route {
		pt := &in.Patients[p]
		travel := in.Travel[prev][p+1]
		fitness += travel
		elapsed += travel
		if elapsed < pt.Start {
			elapsed = pt.Start
		}
		elapsed += pt.Care
		if elapsed > pt.End {
			fitness += travel * pen.Punishment
			feasible = false
		}
		demand += pt.Demand
		prev = p + 1
	}
	if demand > in.Capacity {
		fitness += pen.Capacity
		feasible = false
	}
	back := in.Travel[prev][0]
	fitness += back
	elapsed += back
	if elapsed > in.Depot.ReturnTime {
		fitness += pen.Return
		feasible = false
	}
	return fitness, feasible
}

// RouteFeasible is the penalty-free check used during construction.
func RouteFeasible(in *model.Instance, route []int) bool {
	elapsed := 0.0
	demand := 0
	prev := 0
	for _, p := range route {
		pt := &in.Patients[p]
		elapsed += in.Travel[prev][p+1]
		if elapsed < pt.Start {
			elapsed = pt.Start
		}
		elapsed += pt.Care
		if elapsed > pt.End {
			return false
		}
		demand += pt.Demand
		prev = p + 1
	}
	if demand > in.Capacity {
		return false
	}
	return elapsed+in.Travel[prev][0] <= in.Depot.ReturnTime
}

func routeDemand(in *model.Instance, route []int) int {
	d := 0
	for _, p := range route {
		d += in.Patients[p].Demand
	}
	return d
}

// Evaluator scores individuals, optionally through a FitnessCache, either
// serially or over a bounded goroutine pool.
type Evaluator struct {
	inst    *model.Instance
	pen     Penalties
	cache   *FitnessCache
	workers int
	rec     Recorder
	island  int
}

func NewEvaluator(inst *model.Instance, pen Penalties, cache *FitnessCache, workers int, rec Recorder, island int) *Evaluator {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Evaluator{inst: inst, pen: pen, cache: cache, workers: workers, rec: rec, island: island}
}

func (e *Evaluator) Route(route []int) (float64, bool) {
	return EvaluateRoute(e.inst, route, e.pen)
}

// Evaluate refreshes fitness, feasibility and route demands of ind.
func (e *Evaluator) Evaluate(ind *model.Individual) {
	for i := range ind.Routes {
		ind.Routes[i].Demand = routeDemand(e.inst, ind.Routes[i].Patients)
	}
	if e.cache != nil {
		if f, ok, hit := e.cache.Lookup(ind); hit {
			e.rec.CacheLookup(e.island, true)
			ind.Fitness, ind.Feasible, ind.Evaluated = f, ok, true
			return
		}
		e.rec.CacheLookup(e.island, false)
	}
	total := 0.0
	feasible := true
	for _, r := range ind.Routes {
		f, ok := EvaluateRoute(e.inst, r.Patients, e.pen)
		total += f
		feasible = feasible && ok
	}
	ind.Fitness, ind.Feasible, ind.Evaluated = total, feasible, true
	if e.cache != nil {
		e.cache.Store(ind)
	}
}

// EvaluatePopulation evaluates every individual whose fitness is stale.
func (e *Evaluator) EvaluatePopulation(pop []*model.Individual) {
	start := time.Now()
	defer func() { e.rec.EvaluationDuration(time.Since(start)) }()

	if e.workers <= 1 {
		for _, ind := range pop {
			if !ind.Evaluated {
				e.Evaluate(ind)
			}
		}
		return
	}
	p := pool.New().WithMaxGoroutines(e.workers)
	for _, ind := range pop {
		if ind.Evaluated {
			continue
		}
		p.Go(func() { e.Evaluate(ind) })
	}
	p.Wait()
}
