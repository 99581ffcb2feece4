package opt

import (
	"context"
	"time"

	"nurseroute/internal/model"
)

// Recorder receives engine counters. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	Generation(island int, best float64)
	Restart(island int)
	Migration(island int, received bool)
	CacheLookup(island int, hit bool)
	EvaluationDuration(d time.Duration)
	SolutionPersisted(island int)
}

type nopRecorder struct{}

func (nopRecorder) Generation(int, float64)          {}
func (nopRecorder) Restart(int)                      {}
func (nopRecorder) Migration(int, bool)              {}
func (nopRecorder) CacheLookup(int, bool)            {}
func (nopRecorder) EvaluationDuration(time.Duration) {}
func (nopRecorder) SolutionPersisted(int)            {}

// SolutionStore is the persistence sink and the source of the file
// initializer.
type SolutionStore interface {
	SaveSolution(ctx context.Context, s model.Solution) (model.Solution, error)
	ListSolutions(ctx context.Context, instance string, limit int) ([]model.Solution, error)
}

// Exchanger swaps one outgoing individual for an incoming migrant. A nil
// migrant means nothing was waiting and the island keeps its own.
type Exchanger interface {
	Exchange(ctx context.Context, island int, out *model.Individual) (*model.Individual, error)
}
