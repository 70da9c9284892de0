package ring

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"github.com/tuneinsight/hetile/utils/sampling"
)

// Sampler is an interface for random ring element samplers.
type Sampler interface {
	// Read overwrites d with a fresh sample over its index set.
	Read(d *DoubleCRT)
	// ReadNew returns a fresh sample over the given index set.
	ReadNew(set IndexSet) *DoubleCRT
}

// NewSampler instantiates the sampler of the given distribution.
func NewSampler(prng sampling.PRNG, r *Ring, X DistributionParameters) (Sampler, error) {
	switch X := X.(type) {
	case DiscreteGaussian:
		if X.Sigma <= 0 || X.Bound < X.Sigma {
			return nil, fmt.Errorf("invalid discrete gaussian: Sigma=%f, Bound=%f", X.Sigma, X.Bound)
		}
		return &GaussianSampler{baseSampler: newBaseSampler(prng, r), X: X}, nil
	case Ternary:
		if (X.P != 0) == (X.H != 0) || X.P < 0 || X.P > 1 || X.H < 0 || X.H > r.n {
			return nil, fmt.Errorf("invalid ternary distribution: P=%f, H=%d", X.P, X.H)
		}
		return &TernarySampler{baseSampler: newBaseSampler(prng, r), X: X}, nil
	case Uniform:
		return &UniformSampler{baseSampler: newBaseSampler(prng, r)}, nil
	default:
		return nil, fmt.Errorf("invalid distribution: want ring.DiscreteGaussian, ring.Ternary or ring.Uniform but have %T", X)
	}
}

type baseSampler struct {
	prng sampling.PRNG
	ring *Ring
	buf  []byte
	ptr  int
}

func newBaseSampler(prng sampling.PRNG, r *Ring) baseSampler {
	return baseSampler{prng: prng, ring: r, buf: make([]byte, 1024), ptr: 1024}
}

func (b *baseSampler) uint64() uint64 {
	if b.ptr+8 > len(b.buf) {
		if _, err := b.prng.Read(b.buf); err != nil {
			// Sanity check, this error should not happen.
			panic(err)
		}
		b.ptr = 0
	}
	x := binary.LittleEndian.Uint64(b.buf[b.ptr:])
	b.ptr += 8
	return x
}

// float64 returns a uniform float in [0, 1).
func (b *baseSampler) float64() float64 {
	return float64(b.uint64()>>11) / (1 << 53)
}

// uniform returns a uniform integer in [0, n).
func (b *baseSampler) uniform(n uint64) uint64 {
	mask := uint64(1)<<bits.Len64(n) - 1
	for {
		if x := b.uint64() & mask; x < n {
			return x
		}
	}
}

// GaussianSampler samples coefficients from a rounded Gaussian
// distribution truncated to [-Bound, Bound].
type GaussianSampler struct {
	baseSampler
	X DiscreteGaussian
}

// ReadInt64 returns N fresh coefficients.
func (s *GaussianSampler) ReadInt64() (coeffs []int64) {
	coeffs = make([]int64, s.ring.n)
	for i := 0; i < len(coeffs); {
		// Box-Muller, two samples per draw
		u1, u2 := s.float64(), s.float64()
		if u1 == 0 {
			continue
		}
		rad := s.X.Sigma * math.Sqrt(-2*math.Log(u1))
		for _, g := range [2]float64{rad * math.Cos(2*math.Pi*u2), rad * math.Sin(2*math.Pi*u2)} {
			if g = math.Round(g); math.Abs(g) <= s.X.Bound && i < len(coeffs) {
				coeffs[i] = int64(g)
				i++
			}
		}
	}
	return
}

func (s *GaussianSampler) Read(d *DoubleCRT) {
	d.SetInt64(s.ReadInt64())
}

func (s *GaussianSampler) ReadNew(set IndexSet) *DoubleCRT {
	return NewDoubleCRTFromInt64(s.ring, set, s.ReadInt64())
}

// TernarySampler samples coefficients in {-1, 0, 1}.
type TernarySampler struct {
	baseSampler
	X Ternary
}

// ReadInt64 returns N fresh coefficients.
func (s *TernarySampler) ReadInt64() (coeffs []int64) {

	N := s.ring.n
	coeffs = make([]int64, N)

	if s.X.P != 0 {
		for i := range coeffs {
			if u := s.float64(); u < s.X.P*0.5 {
				coeffs[i] = -1
			} else if u < s.X.P {
				coeffs[i] = 1
			}
		}
		return
	}

	// fixed hamming weight: partial Fisher-Yates over the positions
	perm := make([]int, N)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < s.X.H; i++ {
		j := i + int(s.uniform(uint64(N-i)))
		perm[i], perm[j] = perm[j], perm[i]
		coeffs[perm[i]] = 1 - 2*int64(s.uint64()&1)
	}

	return
}

func (s *TernarySampler) Read(d *DoubleCRT) {
	d.SetInt64(s.ReadInt64())
}

func (s *TernarySampler) ReadNew(set IndexSet) *DoubleCRT {
	return NewDoubleCRTFromInt64(s.ring, set, s.ReadInt64())
}

// UniformSampler samples elements with uniform residues. Since the NTT is a
// bijection, the residues are sampled directly in evaluation form.
type UniformSampler struct {
	baseSampler
}

func (s *UniformSampler) Read(d *DoubleCRT) {
	for k, i := range d.set.idx {
		q := s.ring.moduli[i].Q
		row := d.eval[k]
		for j := range row {
			row[j] = s.uniform(q)
		}
	}
	d.invalidate()
}

func (s *UniformSampler) ReadNew(set IndexSet) *DoubleCRT {
	d := NewDoubleCRT(s.ring, set)
	s.Read(d)
	return d
}
