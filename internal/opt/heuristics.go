package opt

import "nurseroute/internal/model"

// TwoOpt polishes every route of ind with segment reversals, keeping a
// reversal only when it lowers the route's penalized fitness. It returns
// an evaluated copy; ind is not modified.
func TwoOpt(in *model.Instance, ind *model.Individual, pen Penalties, iterations int) *model.Individual {
	out := ind.Clone()
	total, feasible := 0.0, true
	for i := range out.Routes {
		out.Routes[i].Patients = improveOrder2Opt(in, out.Routes[i].Patients, pen, iterations)
		f, ok := EvaluateRoute(in, out.Routes[i].Patients, pen)
		total += f
		feasible = feasible && ok
	}
	out.Fitness, out.Feasible, out.Evaluated = total, feasible, true
	return out
}

func improveOrder2Opt(in *model.Instance, order []int, pen Penalties, iterations int) []int {
	if iterations <= 0 {
		iterations = 1
	}
	best := append([]int(nil), order...)
	bestFit, _ := EvaluateRoute(in, best, pen)
	n := len(order)
	for it := 0; it < iterations; it++ {
		improved := false
		for i := 0; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				cand := twoOptSwap(best, i, k)
				f, _ := EvaluateRoute(in, cand, pen)
				if f+1e-9 < bestFit {
					best, bestFit = cand, f
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
}

// twoOptSwap returns a copy of ord with ord[i..k] reversed.
func twoOptSwap(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}
