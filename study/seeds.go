package study

import (
	"encoding/binary"
	"hash/fnv"
	"sync"
)

// SeedManager derives stable 64-bit seeds from one global seed, so every
// random stream in a study is reproducible from a single integer. Derived
// seeds are remembered for the run manifest.
type SeedManager struct {
	mu      sync.Mutex
	global  int64
	derived map[string]uint64
}

// NewSeedManager creates a seed manager around the global seed.
func NewSeedManager(global int64) *SeedManager {
	return &SeedManager{
		global:  global,
		derived: make(map[string]uint64),
	}
}

// Global returns the global seed.
func (m *SeedManager) Global() int64 { return m.global }

// ComponentSeed derives the seed for a named component. The same name under
// the same global seed always yields the same value.
func (m *SeedManager) ComponentSeed(name string) uint64 {
	return m.derive("component/" + name)
}

// TrialSeed derives the seed for a trial id.
func (m *SeedManager) TrialSeed(id string) uint64 {
	return m.derive("trial/" + id)
}

// Manifest returns a copy of every seed derived so far, keyed by name.
func (m *SeedManager) Manifest() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.derived))
	for k, v := range m.derived {
		out[k] = v
	}
	return out
}

// derive hashes the global seed and the name with FNV-1a.
func (m *SeedManager) derive(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.derived[name]; ok {
		return s
	}
	h := fnv.New64a()
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(m.global))
	h.Write(b[:])
	h.Write([]byte(name))
	s := h.Sum64()
	m.derived[name] = s
	return s
}
