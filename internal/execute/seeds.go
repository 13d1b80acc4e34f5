package execute

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// pcgStream is the fixed PCG increment for sub-seed streams.
const pcgStream = 0x9e3779b97f4a7c15

// SeedSource hands out distinct positive seeds for sub-runs. A caller seed
// makes the sequence reproducible; it is never itself reused for a sub-run.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SeedSource struct {
	mu   sync.Mutex
	rng  *rand.Rand
	used map[int64]bool
}

// NewSeedSource creates a source. A nil seed draws from the clock.
func NewSeedSource(seed *int64) *SeedSource {
	var s uint64
	if seed != nil {
		s = uint64(*seed)
	} else {
		s = uint64(time.Now().UnixNano()) ^ rand.Uint64()
	}
	used := make(map[int64]bool)
	if seed != nil {
		used[*seed] = true
	}
	return &SeedSource{rng: rand.New(rand.NewPCG(s, pcgStream)), used: used}
}

// Next returns a seed in [1, MaxInt32] not returned before.
func (s *SeedSource) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		v := s.rng.Int64N(math.MaxInt32) + 1
		if !s.used[v] {
			s.used[v] = true
			return v
		}
	}
}
