package rlwe

import (
	"fmt"
	"math"

	"github.com/tuneinsight/hetile/ring"
)

// CtxtPart is a part of a ciphertext, multiplied by the secret key
// designated by its handle during decryption.
type CtxtPart struct {
	Value  *ring.DoubleCRT
	Handle SKHandle
}

// Ciphertext is a generic type for RLWE ciphertexts. It decrypts to the sum
// over its parts of Value * s_Handle modulo the product of its chain primes.
//
// For BGV, the decryption is Factor * m + PtxtSpace * e; for CKKS, it is
// Scale * m + e. NoiseBound is an estimate of log2 of the infinity norm of
// the decryption, message included.
type Ciphertext struct {
	Parts      []CtxtPart
	NoiseBound float64
	PtxtSpace  uint64
	Factor     uint64
	Scale      float64
}

// NewCiphertext returns a new zero ciphertext of two parts under the key keyID at the given level.
func NewCiphertext(ctx *Context, keyID, level int) *Ciphertext {
	set := ctx.LevelSet(level)
	return &Ciphertext{
		Parts: []CtxtPart{
			{Value: ring.NewDoubleCRT(ctx.ring, set), Handle: OneHandle()},
			{Value: ring.NewDoubleCRT(ctx.ring, set), Handle: BaseHandle(keyID)},
		},
		PtxtSpace: ctx.t,
		Factor:    1,
		Scale:     1,
	}
}

// Degree returns the number of parts minus one.
func (ct *Ciphertext) Degree() int {
	return len(ct.Parts) - 1
}

// IndexSet returns the primes of the ciphertext.
func (ct *Ciphertext) IndexSet() ring.IndexSet {
	return ct.Parts[0].Value.IndexSet()
}

// Level returns the level of the ciphertext, its number of chain primes minus one.
func (ct *Ciphertext) Level() int {
	return ct.IndexSet().Len() - 1
}

// KeyIDs returns the distinct keys referenced by the parts of the ciphertext.
func (ct *Ciphertext) KeyIDs() (ids []int) {
	seen := map[int]bool{}
	for _, p := range ct.Parts {
		if !p.Handle.IsOne() && !seen[p.Handle.KeyID] {
			seen[p.Handle.KeyID] = true
			ids = append(ids, p.Handle.KeyID)
		}
	}
	return
}

// IsCanonical returns true if the ciphertext has the form (c0, c1) under 1 and s_KeyID.
func (ct *Ciphertext) IsCanonical() bool {
	return len(ct.Parts) == 2 && ct.Parts[0].Handle.IsOne() && ct.Parts[1].Handle.IsBase()
}

// Capacity returns an estimate of the number of bits left before decryption fails,
// log2(Q_level) - NoiseBound.
func (ct *Ciphertext) Capacity(ctx *Context) float64 {
	return ctx.LogQ(ct.IndexSet()) - ct.NoiseBound
}

// CopyNew returns a deep copy of the ciphertext.
func (ct *Ciphertext) CopyNew() *Ciphertext {
	c := &Ciphertext{}
	c.Copy(ct)
	return c
}

// Copy sets ct to a deep copy of other.
func (ct *Ciphertext) Copy(other *Ciphertext) {
	if ct == other {
		return
	}
	parts := make([]CtxtPart, len(other.Parts))
	for i, p := range other.Parts {
		parts[i] = CtxtPart{Value: p.Value.CopyNew(), Handle: p.Handle}
	}
	*ct = *other
	ct.Parts = parts
}

// Equal returns true if both ciphertexts have the same parts and metadata.
func (ct *Ciphertext) Equal(other *Ciphertext) bool {
	if len(ct.Parts) != len(other.Parts) || ct.PtxtSpace != other.PtxtSpace || ct.Factor != other.Factor {
		return false
	}
	if ct.Scale != other.Scale || ct.NoiseBound != other.NoiseBound {
		return false
	}
	for i := range ct.Parts {
		if ct.Parts[i].Handle != other.Parts[i].Handle || !ct.Parts[i].Value.Equal(other.Parts[i].Value) {
			return false
		}
	}
	return true
}

// part returns the position of the part with the given handle, or -1.
func (ct *Ciphertext) part(h SKHandle) int {
	for i, p := range ct.Parts {
		if p.Handle == h {
			return i
		}
	}
	return -1
}

func (ct *Ciphertext) check() (err error) {
	if len(ct.Parts) == 0 {
		return fmt.Errorf("ciphertext has no parts")
	}
	set := ct.IndexSet()
	for i, p := range ct.Parts {
		if p.Value == nil {
			return fmt.Errorf("part #%d is nil", i)
		}
		if !p.Value.IndexSet().Equal(set) {
			return fmt.Errorf("%w: part #%d is over %v and part #0 over %v", ErrIndexSetMismatch, i, p.Value.IndexSet(), set)
		}
	}
	return
}

func (ct *Ciphertext) String() string {
	return fmt.Sprintf("Ciphertext{level=%d, parts=%d, noise=%.1f, factor=%d, scale=2^%.2f}", ct.Level(), len(ct.Parts), ct.NoiseBound, ct.Factor, math.Log2(ct.Scale))
}

// Plaintext is a ring element encoding a message over a set of chain primes.
// BGV plaintexts have coefficients in [-t/2, t/2), CKKS plaintexts the
// rounded coefficients of the message multiplied by Scale.
type Plaintext struct {
	Value *ring.DoubleCRT
	Scale float64
	// LogBound is log2 of the infinity norm of the coefficients.
	LogBound float64
}

// NewPlaintext returns a zero plaintext at the given level.
func NewPlaintext(ctx *Context, level int) *Plaintext {
	return &Plaintext{Value: ring.NewDoubleCRT(ctx.ring, ctx.LevelSet(level)), Scale: 1}
}

// Level returns the level of the plaintext.
func (pt *Plaintext) Level() int {
	return pt.Value.IndexSet().Len() - 1
}

// CopyNew returns a deep copy of the plaintext.
func (pt *Plaintext) CopyNew() *Plaintext {
	return &Plaintext{Value: pt.Value.CopyNew(), Scale: pt.Scale, LogBound: pt.LogBound}
}

// over returns a view of the plaintext over set.
func (pt *Plaintext) over(set ring.IndexSet) (*ring.DoubleCRT, error) {
	v, err := pt.Value.View(set)
	if err != nil {
		return nil, fmt.Errorf("%w: plaintext at level %d: %w", ErrLevelMismatch, pt.Level(), err)
	}
	return v, nil
}
