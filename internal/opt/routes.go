package opt

import (
	"math/rand/v2"

	"nurseroute/internal/model"
)

// spliceInto writes route with block inserted at pos into buf and returns it.
// route itself is never modified, so scans need no restore step.
func spliceInto(buf, route []int, pos int, block ...int) []int {
	buf = append(buf[:0], route[:pos]...)
	buf = append(buf, block...)
	return append(buf, route[pos:]...)
}

func insertAt(route []int, pos int, block ...int) []int {
	out := make([]int, 0, len(route)+len(block))
	out = append(out, route[:pos]...)
	out = append(out, block...)
	return append(out, route[pos:]...)
}

func removeAt(route []int, pos int) []int {
	return append(route[:pos:pos], route[pos+1:]...)
}

// pickRoute returns a random route index whose length is at least minLen,
// or -1 when no route qualifies.
func pickRoute(ind *model.Individual, minLen int, rng *rand.Rand) int {
	var eligible []int
	for i, r := range ind.Routes {
		if len(r.Patients) >= minLen {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return -1
	}
	return eligible[rng.IntN(len(eligible))]
}

// locate returns the nurse and position of patient p, or -1, -1.
func locate(ind *model.Individual, p int) (int, int) {
	for n, r := range ind.Routes {
		for i, q := range r.Patients {
			if q == p {
				return n, i
			}
		}
	}
	return -1, -1
}
