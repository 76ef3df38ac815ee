// services/random.go
package services

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
	"sync"
)

// Source is the randomness the engine draws from. Every draw goes through it,
// so tests can seed it or count calls.
type Source interface {
	Float64() float64
	IntN(n int) int
}

type lockedSource struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSource returns a goroutine-safe PCG source for the given seed.
func NewSource(seed uint64) Source {
	return &lockedSource{rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandomSource seeds from crypto/rand.
func NewRandomSource() Source {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return NewSource(0x5eed)
	}
	return NewSource(binary.LittleEndian.Uint64(b[:]))
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// intBetween draws uniformly from [lo, hi].
func intBetween(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.IntN(hi-lo+1)
}

func bernoulli(src Source, p float64) bool {
	return src.Float64() < p
}
