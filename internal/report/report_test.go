package report

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nurseroute/internal/model"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{4, 2, 6, 8})
	assert.Equal(t, 2.0, s.Best)
	assert.Equal(t, 8.0, s.Worst)
	assert.InDelta(t, 5.0, s.Mean, 1e-9)
	// sample standard deviation of {2,4,6,8}
	assert.InDelta(t, math.Sqrt(20.0/3.0), s.StdDev, 1e-9)

	one := Summarize([]float64{3})
	assert.Equal(t, Stats{Best: 3, Worst: 3, Mean: 3}, one)
	assert.Equal(t, Stats{}, Summarize(nil))
}

func TestMultiAndHistory(t *testing.T) {
	h := &History{}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m := Multi{h, nil, LogReporter{Log: logger, Benchmark: 100}}

	ctx := context.Background()
	m.Report(ctx, model.Progress{Island: 1, Generation: 10, Best: 120})
	m.Report(ctx, model.Progress{Island: 0, Generation: 0, Best: 150})
	m.Report(ctx, model.Progress{Island: 1, Generation: 0, Best: 130})

	got := h.Island(1)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Generation)
	assert.Equal(t, 10, got[1].Generation)

	latest := h.Latest()
	require.Len(t, latest, 2)
	assert.Equal(t, 0, latest[0].Island)
	assert.Equal(t, 10, latest[1].Generation)

	assert.Contains(t, buf.String(), "gap_pct=20")
}
