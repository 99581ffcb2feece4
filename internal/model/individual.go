package model

import "time"

// Route is one nurse's ordered visits with the cached cumulative demand.
type Route struct {
	Patients []int `json:"patients"`
	Demand   int   `json:"demand"`
}

func (r Route) Len() int { return len(r.Patients) }

// Individual is one candidate assignment of every patient to a nurse route.
// Fitness and Feasible are only meaningful while Evaluated is true.
type Individual struct {
	Routes    []Route `json:"routes"`
	Fitness   float64 `json:"fitness"`
	Feasible  bool    `json:"feasible"`
	Evaluated bool    `json:"-"`
}

// NewIndividual returns an individual with the given number of empty routes.
func NewIndividual(nurses int) *Individual {
	return &Individual{Routes: make([]Route, nurses)}
}

// Clone returns a deep copy sharing no route storage with ind.
func (ind *Individual) Clone() *Individual {
	out := &Individual{
		Routes:    make([]Route, len(ind.Routes)),
		Fitness:   ind.Fitness,
		Feasible:  ind.Feasible,
		Evaluated: ind.Evaluated,
	}
	for i, r := range ind.Routes {
		out.Routes[i] = Route{Patients: append([]int(nil), r.Patients...), Demand: r.Demand}
	}
	return out
}

// Invalidate marks the cached fitness stale after a structural change.
func (ind *Individual) Invalidate() { ind.Evaluated = false }

// SameRoutes reports whether both individuals visit the same patients in
// the same order per nurse.
func (ind *Individual) SameRoutes(other *Individual) bool {
	if len(ind.Routes) != len(other.Routes) {
		return false
	}
	for i := range ind.Routes {
		a, b := ind.Routes[i].Patients, other.Routes[i].Patients
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if a[j] != b[j] {
				return false
			}
		}
	}
	return true
}

// PatientCount returns the number of visits across all routes.
func (ind *Individual) PatientCount() int {
	n := 0
	for _, r := range ind.Routes {
		n += len(r.Patients)
	}
	return n
}

// OneIndexed returns the route lists with 1-based patient ids.
func (ind *Individual) OneIndexed() [][]int {
	out := make([][]int, len(ind.Routes))
	for i, r := range ind.Routes {
		row := make([]int, len(r.Patients))
		for j, p := range r.Patients {
			row[j] = p + 1
		}
		out[i] = row
	}
	return out
}

// FromOneIndexed builds an unevaluated individual from 1-based route lists.
func FromOneIndexed(routes [][]int) *Individual {
	ind := NewIndividual(len(routes))
	for i, row := range routes {
		ps := make([]int, len(row))
		for j, p := range row {
			ps[j] = p - 1
		}
		ind.Routes[i].Patients = ps
	}
	return ind
}

// Solution is a persisted best individual.
type Solution struct {
	ID         string    `json:"id"`
	RunID      string    `json:"runId"`
	Instance   string    `json:"instance"`
	Island     int       `json:"island"`
	Generation int       `json:"generation"`
	Fitness    float64   `json:"fitness"`
	Feasible   bool      `json:"feasible"`
	Routes     [][]int   `json:"routes"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Progress is the periodic summary handed to reporting sinks.
type Progress struct {
	RunID      string        `json:"runId"`
	Island     int           `json:"island"`
	Generation int           `json:"generation"`
	Best       float64       `json:"best"`
	Worst      float64       `json:"worst"`
	Mean       float64       `json:"mean"`
	StdDev     float64       `json:"stdDev"`
	Feasible   bool          `json:"feasible"`
	Restarts   int           `json:"restarts"`
	Elapsed    time.Duration `json:"elapsed"`
}
