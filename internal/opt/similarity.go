package opt

import "nurseroute/internal/model"

// Similarity counts the directed route edges shared by a and b, normalized
// by the population size. Depot legs are not edges.
func Similarity(a, b *model.Individual, popSize int) float64 {
	if popSize <= 0 {
		popSize = 1
	}
	n := maxPatient(a, b) + 1
	succ := make([]int, n)
	for i := range succ {
		succ[i] = -1
	}
	for _, r := range b.Routes {
		for i := 0; i+1 < len(r.Patients); i++ {
			succ[r.Patients[i]] = r.Patients[i+1]
		}
	}
	shared := 0
	for _, r := range a.Routes {
		for i := 0; i+1 < len(r.Patients); i++ {
			if succ[r.Patients[i]] == r.Patients[i+1] {
				shared++
			}
		}
	}
	return float64(shared) / float64(popSize)
}

func maxPatient(inds ...*model.Individual) int {
	m := 0
	for _, ind := range inds {
		for _, r := range ind.Routes {
			for _, p := range r.Patients {
				if p > m {
					m = p
				}
			}
		}
	}
	return m
}
