package opt

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"nurseroute/internal/model"
)

type cacheEntry struct {
	routes   [][]int
	fitness  float64
	feasible bool
}

// FitnessCache memoizes fitness by route structure. The instance never
// changes during a run, so entries are never invalidated. Hash collisions
// are resolved by comparing the stored routes.
type FitnessCache struct {
	mu      sync.RWMutex
	entries map[uint64][]cacheEntry
	size    int
	limit   int

	hits   atomic.Int64
	misses atomic.Int64
}

// NewFitnessCache returns a cache holding at most limit entries; 0 means
// unbounded. Once full, new structures are simply not stored.
func NewFitnessCache(limit int) *FitnessCache {
	return &FitnessCache{entries: make(map[uint64][]cacheEntry), limit: limit}
}

func structureKey(ind *model.Individual) uint64 {
	buf := make([]byte, 0, 4*(ind.PatientCount()+len(ind.Routes)))
	for _, r := range ind.Routes {
		for _, p := range r.Patients {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(p))
		}
		buf = binary.LittleEndian.AppendUint32(buf, ^uint32(0))
	}
	return xxhash.Sum64(buf)
}

func sameStructure(routes [][]int, ind *model.Individual) bool {
	if len(routes) != len(ind.Routes) {
		return false
	}
	for i, r := range routes {
		ps := ind.Routes[i].Patients
		if len(r) != len(ps) {
			return false
		}
		for j := range r {
			if r[j] != ps[j] {
				return false
			}
		}
	}
	return true
}

// Lookup returns the cached fitness and feasibility of ind's structure.
func (c *FitnessCache) Lookup(ind *model.Individual) (fitness float64, feasible bool, ok bool) {
	key := structureKey(ind)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries[key] {
		if sameStructure(e.routes, ind) {
			c.hits.Add(1)
			return e.fitness, e.feasible, true
		}
	}
	c.misses.Add(1)
	return 0, false, false
}

// Store records an evaluated individual.
func (c *FitnessCache) Store(ind *model.Individual) {
	key := structureKey(ind)
	routes := make([][]int, len(ind.Routes))
	for i, r := range ind.Routes {
		routes[i] = append([]int(nil), r.Patients...)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limit > 0 && c.size >= c.limit {
		return
	}
	for _, e := range c.entries[key] {
		if sameStructure(e.routes, ind) {
			return
		}
	}
	c.entries[key] = append(c.entries[key], cacheEntry{routes: routes, fitness: ind.Fitness, feasible: ind.Feasible})
	c.size++
}

func (c *FitnessCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// Stats returns the number of hits and misses so far.
func (c *FitnessCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
