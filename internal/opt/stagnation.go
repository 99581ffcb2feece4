package opt

import (
	"fmt"
	"math"
)

type Outcome int

const (
	Improved Outcome = iota
	Stagnating
	Restart
)

func (o Outcome) String() string {
	switch o {
	case Improved:
		return "improved"
	case Stagnating:
		return "stagnating"
	case Restart:
		return "restart"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// StagnationController counts generations without a new best fitness.
// Each engine owns one.
type StagnationController struct {
	threshold int
	counter   int
	best      float64
}

func NewStagnationController(threshold int) *StagnationController {
	return &StagnationController{threshold: threshold, best: math.Inf(1)}
}

// Observe records the best fitness of the current generation.
func (s *StagnationController) Observe(best float64) Outcome {
	if best < s.best {
		s.best = best
		s.counter = 0
		return Improved
	}
	if s.counter > s.threshold {
		s.counter = 0
		return Restart
	}
	s.counter++
	return Stagnating
}

// Reset is called after a restart with the best fitness of the new population.
func (s *StagnationController) Reset(best float64) {
	s.best = best
	s.counter = 0
}

func (s *StagnationController) Counter() int  { return s.counter }
func (s *StagnationController) Best() float64 { return s.best }

// RestartStrategy decides how much of a stagnated population survives.
type RestartStrategy int

const (
	// RestartDelete keeps only the elites.
	RestartDelete RestartStrategy = iota
	// RestartKeep also keeps the best non-elite individual.
	RestartKeep
)

func ParseRestartStrategy(s string) (RestartStrategy, error) {
	switch s {
	case "delete", "":
		return RestartDelete, nil
	case "keep":
		return RestartKeep, nil
	}
	return 0, fmt.Errorf("unknown restart strategy %q", s)
}

// retained returns how many of the best individuals survive a restart.
func (r RestartStrategy) retained(elitism, size int) int {
	n := elitism
	if r == RestartKeep {
		n++
	}
	return min(n, size)
}
