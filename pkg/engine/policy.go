package engine

import (
	"math/rand/v2"
)

// UniformSampling draws actions uniformly at random, with replacement.
type UniformSampling struct {
	rng *rand.Rand
}

// NewUniformSampling creates a uniform sampler over the given random source.
func NewUniformSampling(rng *rand.Rand) *UniformSampling {
	return &UniformSampling{rng: rng}
}

// Next returns a uniform index in [0, n).
func (u *UniformSampling) Next(n int) int {
	return u.rng.IntN(n)
}

// ProbabilisticRestart restarts with a fixed probability on every try.
type ProbabilisticRestart struct {
	probability float64
	rng         *rand.Rand
}

// NewProbabilisticRestart creates a restart policy firing with probability p.
func NewProbabilisticRestart(p float64, rng *rand.Rand) *ProbabilisticRestart {
	return &ProbabilisticRestart{probability: p, rng: rng}
}

// Restart draws r in [0,1) and reports r < p.
func (r *ProbabilisticRestart) Restart() bool {
	return r.rng.Float64() < r.probability
}

// newRand builds the shared random source of the default policies.
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
