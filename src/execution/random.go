package execution

import (
	"math/rand"
	"sync"
	"time"
)

// RandomSource yields uniform draws in [0, 1). Every stochastic part of a
// fill (slippage, DEX failures, delays, MEV, rug pulls) reads from it.
type RandomSource interface {
	Float64() float64
}

type lockedSource struct {
	rng   *rand.Rand
	mutex sync.Mutex
}

// NewRandomSource returns a goroutine-safe source. A zero seed seeds from the
// clock.
func NewRandomSource(seed int64) RandomSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.rng.Float64()
}

// FixedSource replays the given draws in order and then repeats the last one.
type FixedSource struct {
	values []float64
	next   int
}

func NewFixedSource(values ...float64) *FixedSource {
	if len(values) == 0 {
		values = []float64{0.5}
	}
	return &FixedSource{values: values}
}

func (s *FixedSource) Float64() float64 {
	v := s.values[min(s.next, len(s.values)-1)]
	s.next++
	return v
}
