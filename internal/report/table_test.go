package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nurseroute/internal/model"
)

func TestWriteRouteTable(t *testing.T) {
	in := &model.Instance{
		Nurses:   2,
		Capacity: 10,
		Depot:    model.Depot{ReturnTime: 100},
		Patients: []model.Patient{
			{Demand: 2, Start: 0, End: 30, Care: 5},
			{Demand: 3, Start: 20, End: 60, Care: 5},
		},
		Travel: [][]float64{
			{0, 2, 3},
			{2, 0, 1},
			{3, 1, 0},
		},
	}
	ind := model.FromOneIndexed([][]int{{1, 2}, {}})
	ind.Fitness, ind.Feasible = 6, true

	var sb strings.Builder
	require.NoError(t, WriteRouteTable(&sb, in, ind))
	out := sb.String()
	assert.Contains(t, out, "Nurse capacity: 10")
	assert.Contains(t, out, "D(0) -> 1(2.00-7.00)[0-30] -> 2(20.00-25.00)[20-60] -> D(28.00)")
	assert.Contains(t, out, "Objective: 6.00 (feasible: true)")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[4], "2 "))
	assert.Contains(t, lines[4], "D(0) -> D(0.00)")
}
