package draw

import (
	"math/rand/v2"
	"sync"
	"time"
)

// RandomSource supplies uniform variates to the drawer.
type RandomSource interface {
	Float64() float64 // [0, 1)
	IntN(n int) int   // [0, n)
}

// pcgRNG is a PCG-backed source safe for concurrent use.
type pcgRNG struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededRNG returns a reproducible source, for tests and Monte Carlo runs.
func NewSeededRNG(seed uint64) RandomSource {
	return &pcgRNG{r: rand.New(rand.NewPCG(seed, 0))} //nolint:gosec // simulation, not security
}

// DefaultRNG returns a source seeded from the wall clock.
func DefaultRNG() RandomSource {
	now := uint64(time.Now().UnixNano()) //nolint:gosec // nanoseconds are non-negative
	return &pcgRNG{r: rand.New(rand.NewPCG(now, now>>17))} //nolint:gosec // simulation, not security
}

func (p *pcgRNG) Float64() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.Float64()
}

func (p *pcgRNG) IntN(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.IntN(n)
}
