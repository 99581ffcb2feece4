package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// ErrInvalidInstance is returned when a problem instance cannot be used.
var ErrInvalidInstance = errors.New("invalid instance")

type Depot struct {
	X          float64 `json:"x_coord"`
	Y          float64 `json:"y_coord"`
	ReturnTime float64 `json:"return_time"`
}

type Patient struct {
	X      float64 `json:"x_coord"`
	Y      float64 `json:"y_coord"`
	Demand int     `json:"demand"`
	Start  float64 `json:"start_time"`
	End    float64 `json:"end_time"`
	Care   float64 `json:"care_time"`
}

// Instance is the immutable problem shared by every worker of a run.
// Patient ids are 0-based; Travel row/column 0 is the depot and patient p
// lives at index p+1.
type Instance struct {
	Name      string
	Nurses    int
	Capacity  int
	Benchmark float64
	Depot     Depot
	Patients  []Patient
	Travel    [][]float64
	// Nearest[p] lists the other patients ordered by travel time from p.
	Nearest [][]int
}

// TravelTime returns the travel time between two patients; -1 is the depot.
func (in *Instance) TravelTime(from, to int) float64 {
	return in.Travel[from+1][to+1]
}

type rawInstance struct {
	Name      string             `json:"instance_name"`
	Nurses    int                `json:"nbr_nurses"`
	Capacity  int                `json:"capacity_nurse"`
	Benchmark float64            `json:"benchmark"`
	Depot     Depot              `json:"depot"`
	Patients  map[string]Patient `json:"patients"`
	Travel    [][]float64        `json:"travel_times"`
}

// LoadInstance reads a JSON problem file.
func LoadInstance(path string) (*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instance: %w", err)
	}
	return ParseInstance(data)
}

// ParseInstance decodes the JSON instance format where patients are keyed
// "1".."n" and the travel matrix includes the depot at index 0.
func ParseInstance(data []byte) (*Instance, error) {
	var raw rawInstance
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInstance, err)
	}
	patients := make([]Patient, len(raw.Patients))
	seen := make([]bool, len(raw.Patients))
	for key, p := range raw.Patients {
		n, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid patient key %q", ErrInvalidInstance, key)
		}
		if n < 1 || n > len(patients) || seen[n-1] {
			return nil, fmt.Errorf("%w: patient keys are not sequential (got %d)", ErrInvalidInstance, n)
		}
		seen[n-1] = true
		patients[n-1] = p
	}
	in := &Instance{
		Name:      raw.Name,
		Nurses:    raw.Nurses,
		Capacity:  raw.Capacity,
		Benchmark: raw.Benchmark,
		Depot:     raw.Depot,
		Patients:  patients,
		Travel:    raw.Travel,
	}
	if err := in.Prepare(); err != nil {
		return nil, err
	}
	return in, nil
}

// Prepare validates the instance and fills the nearest-neighbor ranking.
// It must be called before the instance is shared between workers.
func (in *Instance) Prepare() error {
	if err := in.Validate(); err != nil {
		return err
	}
	n := len(in.Patients)
	in.Nearest = make([][]int, n)
	for p := 0; p < n; p++ {
		others := make([]int, 0, n-1)
		for q := 0; q < n; q++ {
			if q != p {
				others = append(others, q)
			}
		}
		row := in.Travel[p+1]
		sort.SliceStable(others, func(i, j int) bool { return row[others[i]+1] < row[others[j]+1] })
		in.Nearest[p] = others
	}
	return nil
}

func (in *Instance) Validate() error {
	if in.Nurses <= 0 {
		return fmt.Errorf("%w: nurse count must be positive", ErrInvalidInstance)
	}
	if len(in.Patients) == 0 {
		return fmt.Errorf("%w: no patients", ErrInvalidInstance)
	}
	size := len(in.Patients) + 1
	if len(in.Travel) != size {
		return fmt.Errorf("%w: travel matrix has %d rows, want %d", ErrInvalidInstance, len(in.Travel), size)
	}
	for i, row := range in.Travel {
		if len(row) != size {
			return fmt.Errorf("%w: travel row %d has %d columns, want %d", ErrInvalidInstance, i, len(row), size)
		}
	}
	for i, p := range in.Patients {
		if p.End < p.Start {
			return fmt.Errorf("%w: patient %d window ends before it starts", ErrInvalidInstance, i+1)
		}
	}
	return nil
}
