package report

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"gonum.org/v1/gonum/stat"

	"nurseroute/internal/metrics"
	"nurseroute/internal/model"
)

// Reporter receives periodic progress summaries. Implementations must be
// safe for concurrent use; every island reports through the same sink.
type Reporter interface {
	Report(ctx context.Context, p model.Progress)
}

// Stats summarizes one population's fitness values.
type Stats struct {
	Best, Worst, Mean, StdDev float64
}

func Summarize(fitness []float64) Stats {
	if len(fitness) == 0 {
		return Stats{}
	}
	s := Stats{Best: fitness[0], Worst: fitness[0]}
	for _, f := range fitness[1:] {
		s.Best = min(s.Best, f)
		s.Worst = max(s.Worst, f)
	}
	if len(fitness) == 1 {
		s.Mean = fitness[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(fitness, nil)
	return s
}

// Multi fans a summary out to every non-nil reporter.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, p model.Progress) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, p)
		}
	}
}

// LogReporter writes one structured line per summary.
type LogReporter struct {
	Log       *slog.Logger
	Benchmark float64
}

func (l LogReporter) Report(ctx context.Context, p model.Progress) {
	attrs := []any{
		"island", p.Island,
		"generation", p.Generation,
		"best", p.Best,
		"worst", p.Worst,
		"mean", p.Mean,
		"std", p.StdDev,
		"feasible", p.Feasible,
		"restarts", p.Restarts,
		"elapsed", p.Elapsed,
	}
	if l.Benchmark > 0 {
		attrs = append(attrs, "gap_pct", 100*(p.Best-l.Benchmark)/l.Benchmark)
	}
	l.Log.InfoContext(ctx, "progress", attrs...)
}

// MetricsReporter mirrors summaries into the Prometheus gauges.
type MetricsReporter struct{}

func (MetricsReporter) Report(_ context.Context, p model.Progress) {
	metrics.ObserveProgress(p.Island, p.Best, p.Mean)
}

// History keeps every summary for later plotting.
type History struct {
	mu    sync.Mutex
	items []model.Progress
}

func (h *History) Report(_ context.Context, p model.Progress) {
	h.mu.Lock()
	h.items = append(h.items, p)
	h.mu.Unlock()
}

// Island returns the summaries of one island in generation order.
func (h *History) Island(island int) []model.Progress {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []model.Progress
	for _, p := range h.items {
		if p.Island == island {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Progress) int { return a.Generation - b.Generation })
	return out
}

// Latest returns the most recent summary of each island.
func (h *History) Latest() []model.Progress {
	h.mu.Lock()
	defer h.mu.Unlock()
	byIsland := map[int]model.Progress{}
	for _, p := range h.items {
		if cur, ok := byIsland[p.Island]; !ok || p.Generation >= cur.Generation {
			byIsland[p.Island] = p
		}
	}
	out := make([]model.Progress, 0, len(byIsland))
	for _, p := range byIsland {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b model.Progress) int { return a.Island - b.Island })
	return out
}
