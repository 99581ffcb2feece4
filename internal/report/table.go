package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"nurseroute/internal/model"
)

// WriteRouteTable prints one line per nurse: route duration, demand and
// every visit as "id(arrival-departure)[window]". Ids are 1-based.
func WriteRouteTable(w io.Writer, in *model.Instance, ind *model.Individual) error {
	fmt.Fprintf(w, "Nurse capacity: %d\n", in.Capacity)
	fmt.Fprintf(w, "Depot return time: %g\n", in.Depot.ReturnTime)
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Nurse\tDuration\tDemand\tRoute")
	for n, r := range ind.Routes {
		var sb strings.Builder
		sb.WriteString("D(0)")
		elapsed, demand, prev := 0.0, 0, 0
		for _, p := range r.Patients {
			pt := in.Patients[p]
			elapsed += in.Travel[prev][p+1]
			if elapsed < pt.Start {
				elapsed = pt.Start
			}
			arrive := elapsed
			elapsed += pt.Care
			demand += pt.Demand
			fmt.Fprintf(&sb, " -> %d(%.2f-%.2f)[%g-%g]", p+1, arrive, elapsed, pt.Start, pt.End)
			prev = p + 1
		}
		if len(r.Patients) > 0 {
			elapsed += in.Travel[prev][0]
		}
		fmt.Fprintf(&sb, " -> D(%.2f)", elapsed)
		fmt.Fprintf(tw, "%d\t%.2f\t%d\t%s\n", n+1, elapsed, demand, sb.String())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Objective: %.2f (feasible: %t)\n", ind.Fitness, ind.Feasible)
	return err
}
