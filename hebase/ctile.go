package hebase

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/tuneinsight/hetile/core/rlwe"
)

// ErrEmptyTile is returned by operations on tiles that hold no value.
var ErrEmptyTile = errors.New("empty tile")

// CTile is a ciphertext bound to an HeContext.
//
// The methods of a CTile operate in place on the receiver. Binary operations
// first bring both operands to the same level (and, for CKKS, the same
// scale); the Raw variants skip the relinearization and rescaling that
// normally follow products.
type CTile struct {
	he *HeContext
	ct *rlwe.Ciphertext
}

// NewCTile returns an empty CTile of the context.
func NewCTile(he *HeContext) *CTile {
	return &CTile{he: he}
}

// NewCTileFromCiphertext returns a CTile holding ct.
func NewCTileFromCiphertext(he *HeContext, ct *rlwe.Ciphertext) *CTile {
	return &CTile{he: he, ct: ct}
}

// HeContext returns the context of the tile.
func (c *CTile) HeContext() *HeContext {
	return c.he
}

// Ciphertext returns the ciphertext of the tile.
func (c *CTile) Ciphertext() *rlwe.Ciphertext {
	return c.ct
}

// IsEmpty returns true if the tile holds no ciphertext.
func (c *CTile) IsEmpty() bool {
	return c.ct == nil
}

// CopyNew returns a deep copy of the tile.
func (c *CTile) CopyNew() *CTile {
	cp := &CTile{he: c.he}
	if c.ct != nil {
		cp.ct = c.ct.CopyNew()
	}
	return cp
}

// Copy sets the receiver to a deep copy of other.
func (c *CTile) Copy(other *CTile) {
	if c == other {
		return
	}
	c.he = other.he
	c.ct = nil
	if other.ct != nil {
		c.ct = other.ct.CopyNew()
	}
}

func (c *CTile) check() error {
	if c.ct == nil {
		return ErrEmptyTile
	}
	return nil
}

func (c *CTile) checkBinary(other *CTile) (err error) {
	if err = c.check(); err != nil {
		return
	}
	if err = other.check(); err != nil {
		return
	}
	if c.he.ctx != other.he.ctx && !c.he.ctx.Equal(other.he.ctx) {
		return fmt.Errorf("tiles belong to different contexts")
	}
	return
}

// ChainIndex returns the level of the tile.
func (c *CTile) ChainIndex() int {
	if c.ct == nil {
		return -1
	}
	return c.ct.Level()
}

// SlotCount returns the number of slots of the tile.
func (c *CTile) SlotCount() int {
	return c.he.SlotCount()
}

// Scale returns the scale of the tile, 1 for BGV.
func (c *CTile) Scale() float64 {
	if c.ct == nil || c.he.Scheme() != rlwe.CKKS {
		return 1
	}
	return c.ct.Scale
}

// SetScale sets the scale of a CKKS tile without changing its ciphertext,
// which multiplies its values by the ratio of the old scale to the new one.
func (c *CTile) SetScale(scale float64) (err error) {
	if err = c.check(); err != nil {
		return fmt.Errorf("cannot SetScale: %w", err)
	}
	if c.he.Scheme() != rlwe.CKKS {
		return fmt.Errorf("cannot SetScale: %v tiles have no scale", c.he.Scheme())
	}
	if scale <= 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		return fmt.Errorf("cannot SetScale: invalid scale %v", scale)
	}
	c.ct.Scale = scale
	return
}

// Capacity returns the estimated number of bits left before the decryption fails.
func (c *CTile) Capacity() float64 {
	if c.ct == nil {
		return 0
	}
	return c.he.be.evaluator().Capacity(c.ct)
}

func (c *CTile) align(other *CTile) (a, b *rlwe.Ciphertext, err error) {
	if err = c.checkBinary(other); err != nil {
		return
	}
	return c.he.be.align(c.ct, other.ct)
}

// Add adds other to the tile.
func (c *CTile) Add(other *CTile) (err error) {
	var a, b *rlwe.Ciphertext
	if a, b, err = c.align(other); err != nil {
		return fmt.Errorf("cannot Add: %w", err)
	}
	return c.he.be.evaluator().Add(a, b, c.ct)
}

// AddRaw adds other, which must be at the same level, to the tile.
func (c *CTile) AddRaw(other *CTile) (err error) {
	if err = c.checkBinary(other); err != nil {
		return fmt.Errorf("cannot AddRaw: %w", err)
	}
	return c.he.be.evaluator().Add(c.ct, other.ct, c.ct)
}

// Sub subtracts other from the tile.
func (c *CTile) Sub(other *CTile) (err error) {
	var a, b *rlwe.Ciphertext
	if a, b, err = c.align(other); err != nil {
		return fmt.Errorf("cannot Sub: %w", err)
	}
	return c.he.be.evaluator().Sub(a, b, c.ct)
}

// SubRaw subtracts other, which must be at the same level, from the tile.
func (c *CTile) SubRaw(other *CTile) (err error) {
	if err = c.checkBinary(other); err != nil {
		return fmt.Errorf("cannot SubRaw: %w", err)
	}
	return c.he.be.evaluator().Sub(c.ct, other.ct, c.ct)
}

// Multiply multiplies the tile by other, relinearizes and rescales. BGV tiles
// at level 0 are not rescaled; CKKS tiles at level 0 cannot be multiplied.
func (c *CTile) Multiply(other *CTile) (err error) {
	var a, b *rlwe.Ciphertext
	if a, b, err = c.align(other); err != nil {
		return fmt.Errorf("cannot Multiply: %w", err)
	}
	if err = c.he.be.mulRelinRescale(a, b, c.ct); err != nil {
		return fmt.Errorf("cannot Multiply: %w", err)
	}
	return
}

// MultiplyRaw multiplies the tile by other without relinearization nor rescaling.
func (c *CTile) MultiplyRaw(other *CTile) (err error) {
	var a, b *rlwe.Ciphertext
	if a, b, err = c.align(other); err != nil {
		return fmt.Errorf("cannot MultiplyRaw: %w", err)
	}
	return c.he.be.evaluator().Mul(a, b, c.ct)
}

// Square squares the tile, relinearizes and rescales.
func (c *CTile) Square() (err error) {
	if err = c.check(); err != nil {
		return fmt.Errorf("cannot Square: %w", err)
	}
	if err = c.he.be.mulRelinRescale(c.ct, c.ct, c.ct); err != nil {
		return fmt.Errorf("cannot Square: %w", err)
	}
	return
}

// SquareRaw squares the tile without relinearization nor rescaling.
func (c *CTile) SquareRaw() (err error) {
	if err = c.check(); err != nil {
		return fmt.Errorf("cannot SquareRaw: %w", err)
	}
	return c.he.be.evaluator().Mul(c.ct, c.ct, c.ct)
}

func (c *CTile) checkPlain(p *PTile) (err error) {
	if err = c.check(); err != nil {
		return
	}
	if p.pt == nil {
		return ErrEmptyTile
	}
	if p.ChainIndex() < c.ChainIndex() {
		return fmt.Errorf("%w: plaintext at level %d below ciphertext at level %d", rlwe.ErrLevelMismatch, p.ChainIndex(), c.ChainIndex())
	}
	return
}

// AddPlain adds the plaintext to the tile. For CKKS, the plaintext must have the scale of the tile.
func (c *CTile) AddPlain(p *PTile) (err error) {
	if err = c.checkPlain(p); err != nil {
		return fmt.Errorf("cannot AddPlain: %w", err)
	}
	return c.he.be.evaluator().AddPlain(c.ct, p.pt, c.ct)
}

// AddPlainRaw adds the plaintext to the tile.
func (c *CTile) AddPlainRaw(p *PTile) error {
	return c.AddPlain(p)
}

// SubPlain subtracts the plaintext from the tile.
func (c *CTile) SubPlain(p *PTile) (err error) {
	if err = c.checkPlain(p); err != nil {
		return fmt.Errorf("cannot SubPlain: %w", err)
	}
	return c.he.be.evaluator().SubPlain(c.ct, p.pt, c.ct)
}

// SubPlainRaw subtracts the plaintext from the tile.
func (c *CTile) SubPlainRaw(p *PTile) error {
	return c.SubPlain(p)
}

// MultiplyPlain multiplies the tile by the plaintext. CKKS tiles are rescaled.
func (c *CTile) MultiplyPlain(p *PTile) (err error) {
	if err = c.MultiplyPlainRaw(p); err != nil {
		return
	}
	if c.he.Scheme() == rlwe.CKKS {
		if err = c.he.be.evaluator().Rescale(c.ct, c.ct); err != nil {
			return fmt.Errorf("cannot MultiplyPlain: %w", err)
		}
	}
	return
}

// MultiplyPlainRaw multiplies the tile by the plaintext without rescaling.
func (c *CTile) MultiplyPlainRaw(p *PTile) (err error) {
	if err = c.checkPlain(p); err != nil {
		return fmt.Errorf("cannot MultiplyPlainRaw: %w", err)
	}
	return c.he.be.evaluator().MulPlain(c.ct, p.pt, c.ct)
}

// AddScalar adds v to every slot. BGV tiles take integers only.
func (c *CTile) AddScalar(v float64) (err error) {
	if err = c.check(); err != nil {
		return fmt.Errorf("cannot AddScalar: %w", err)
	}
	if err = c.he.be.addScalar(c.ct, complex(v, 0), c.ct); err != nil {
		return fmt.Errorf("cannot AddScalar: %w", err)
	}
	return
}

// AddScalarInt adds v to every slot.
func (c *CTile) AddScalarInt(v int) error {
	return c.AddScalar(float64(v))
}

// MultiplyScalar multiplies every slot by v. BGV tiles take integers only;
// CKKS tiles lose a level unless v is an integer.
func (c *CTile) MultiplyScalar(v float64) (err error) {
	if err = c.check(); err != nil {
		return fmt.Errorf("cannot MultiplyScalar: %w", err)
	}
	if err = c.he.be.multiplyScalar(c.ct, complex(v, 0), c.ct); err != nil {
		return fmt.Errorf("cannot MultiplyScalar: %w", err)
	}
	return
}

// MultiplyScalarInt multiplies every slot by v.
func (c *CTile) MultiplyScalarInt(v int) error {
	return c.MultiplyScalar(float64(v))
}

// Negate negates the tile.
func (c *CTile) Negate() (err error) {
	if err = c.check(); err != nil {
		return fmt.Errorf("cannot Negate: %w", err)
	}
	return c.he.be.evaluator().Neg(c.ct, c.ct)
}

// MultiplyByChangingScale multiplies the values of a CKKS tile by factor by dividing its scale.
func (c *CTile) MultiplyByChangingScale(factor float64) (err error) {
	if err = c.check(); err != nil {
		return fmt.Errorf("cannot MultiplyByChangingScale: %w", err)
	}
	eval := c.he.CKKS()
	if eval == nil {
		return fmt.Errorf("cannot MultiplyByChangingScale: %v tiles have no scale", c.he.Scheme())
	}
	return eval.MultiplyByChangingScale(c.ct, factor, c.ct)
}

// Relinearize brings the tile back to two parts under the secret key.
func (c *CTile) Relinearize() (err error) {
	if err = c.check(); err != nil {
		return fmt.Errorf("cannot Relinearize: %w", err)
	}
	return c.he.be.evaluator().Relinearize(c.ct, c.ct)
}

// Rescale divides the tile by its last chain prime.
func (c *CTile) Rescale() (err error) {
	if err = c.check(); err != nil {
		return fmt.Errorf("cannot Rescale: %w", err)
	}
	return c.he.be.evaluator().Rescale(c.ct, c.ct)
}

// RescaleRaw divides the tile by its last chain prime without updating its metadata.
func (c *CTile) RescaleRaw() (err error) {
	if err = c.check(); err != nil {
		return fmt.Errorf("cannot RescaleRaw: %w", err)
	}
	return c.he.be.evaluator().RescaleRaw(c.ct, c.ct)
}

// ReduceChainIndex drops the last chain prime of the tile.
func (c *CTile) ReduceChainIndex() (err error) {
	if err = c.check(); err != nil {
		return fmt.Errorf("cannot ReduceChainIndex: %w", err)
	}
	return c.he.be.evaluator().ReduceChainIndex(c.ct, c.ct.Level()-1, c.ct)
}

// SetChainIndex drops the chain primes of the tile down to the level of other.
func (c *CTile) SetChainIndex(other *CTile) (err error) {
	if err = c.checkBinary(other); err != nil {
		return fmt.Errorf("cannot SetChainIndex: %w", err)
	}
	return c.he.be.evaluator().SetChainIndex(c.ct, other.ct, c.ct)
}

// SetChainIndexTo drops the chain primes of the tile down to the given level.
func (c *CTile) SetChainIndexTo(level int) (err error) {
	if err = c.check(); err != nil {
		return fmt.Errorf("cannot SetChainIndexTo: %w", err)
	}
	return c.he.be.evaluator().ReduceChainIndex(c.ct, level, c.ct)
}

// Conjugate conjugates the slots of a CKKS tile and swaps the rows of a BGV tile.
func (c *CTile) Conjugate() (err error) {
	if err = c.check(); err != nil {
		return fmt.Errorf("cannot Conjugate: %w", err)
	}
	return c.he.be.evaluator().Conjugate(c.ct, c.ct)
}

// Rotate rotates the slots of the tile k positions to the left; negative k
// rotate to the right. Without the Galois keys of k, the rotation is composed
// of rotations by powers of two.
func (c *CTile) Rotate(k int) (err error) {

	if err = c.check(); err != nil {
		return fmt.Errorf("cannot Rotate: %w", err)
	}

	n := c.SlotCount()
	if k = ((k % n) + n) % n; k == 0 {
		return
	}

	if c.he.hasRotationKeys(k) {
		return c.he.be.rotate(c.ct, k, c.ct)
	}

	// the tile is unchanged if one of the steps fails
	ct := c.ct.CopyNew()
	for step := 1; k != 0; step <<= 1 {
		if k&step == 0 {
			continue
		}
		if err = c.he.be.rotate(ct, step, ct); err != nil {
			return fmt.Errorf("cannot Rotate: %w", err)
		}
		k &^= step
	}
	c.ct = ct

	return
}

// InnerSum adds to the tile its rotations by rot1, 2*rot1, 4*rot1, ...
// up to and excluding rot2. If reverse is true, it rotates to the right.
func (c *CTile) InnerSum(rot1, rot2 int, reverse bool) (err error) {

	if rot1 <= 0 {
		return fmt.Errorf("cannot InnerSum: rot1=%d must be positive", rot1)
	}

	for rot := rot1; rot < rot2; rot <<= 1 {

		tmp := c.CopyNew()

		k := rot
		if reverse {
			k = -rot
		}

		if err = tmp.Rotate(k); err != nil {
			return fmt.Errorf("cannot InnerSum: %w", err)
		}

		if err = c.Add(tmp); err != nil {
			return fmt.Errorf("cannot InnerSum: %w", err)
		}
	}

	return
}

// SumExpBySquaringLeftToRight sets slot i of the tile to the sum of slots
// i, i+1, ..., i+n-1 (cyclic), scanning the bits of n from the most significant.
func (c *CTile) SumExpBySquaringLeftToRight(n int) (err error) {

	if n <= 0 {
		return fmt.Errorf("cannot SumExpBySquaringLeftToRight: n=%d must be positive", n)
	}

	if err = c.check(); err != nil {
		return fmt.Errorf("cannot SumExpBySquaringLeftToRight: %w", err)
	}

	orig := c.CopyNew()

	// c holds the sums of k consecutive slots
	k := 1
	for bit := bitLen(n) - 2; bit >= 0; bit-- {

		tmp := c.CopyNew()
		if err = tmp.Rotate(k); err != nil {
			return fmt.Errorf("cannot SumExpBySquaringLeftToRight: %w", err)
		}
		if err = c.Add(tmp); err != nil {
			return fmt.Errorf("cannot SumExpBySquaringLeftToRight: %w", err)
		}
		k <<= 1

		if n>>bit&1 == 1 {
			if err = c.Rotate(1); err != nil {
				return fmt.Errorf("cannot SumExpBySquaringLeftToRight: %w", err)
			}
			if err = c.Add(orig); err != nil {
				return fmt.Errorf("cannot SumExpBySquaringLeftToRight: %w", err)
			}
			k++
		}
	}

	return
}

// SumExpBySquaringRightToLeft computes the same sums as SumExpBySquaringLeftToRight,
// scanning the bits of n from the least significant.
func (c *CTile) SumExpBySquaringRightToLeft(n int) (err error) {

	if n <= 0 {
		return fmt.Errorf("cannot SumExpBySquaringRightToLeft: n=%d must be positive", n)
	}

	if err = c.check(); err != nil {
		return fmt.Errorf("cannot SumExpBySquaringRightToLeft: %w", err)
	}

	// power holds the sums of k consecutive slots
	power := c.CopyNew()
	var res *CTile
	shift, k := 0, 1

	for n > 0 {

		if n&1 == 1 {
			tmp := power.CopyNew()
			if err = tmp.Rotate(shift); err != nil {
				return fmt.Errorf("cannot SumExpBySquaringRightToLeft: %w", err)
			}
			if res == nil {
				res = tmp
			} else if err = res.Add(tmp); err != nil {
				return fmt.Errorf("cannot SumExpBySquaringRightToLeft: %w", err)
			}
			shift += k
		}

		if n >>= 1; n > 0 {
			tmp := power.CopyNew()
			if err = tmp.Rotate(k); err != nil {
				return fmt.Errorf("cannot SumExpBySquaringRightToLeft: %w", err)
			}
			if err = power.Add(tmp); err != nil {
				return fmt.Errorf("cannot SumExpBySquaringRightToLeft: %w", err)
			}
			k <<= 1
		}
	}

	c.ct = res.ct

	return
}

func bitLen(n int) (l int) {
	for ; n > 0; n >>= 1 {
		l++
	}
	return
}

// DebugPrint writes the metadata of the tile on w and, if the context has
// the secret key, its first maxElements slots (all of them if maxElements < 0).
func (c *CTile) DebugPrint(w io.Writer, title string, maxElements int) (err error) {

	if c.ct == nil {
		_, err = fmt.Fprintf(w, "CTile %s: empty\n", title)
		return
	}

	if _, err = fmt.Fprintf(w, "CTile %s: %v capacity=%.1f\n", title, c.ct, c.Capacity()); err != nil {
		return
	}

	if !c.he.HasSecretKey() {
		return
	}

	var values []complex128
	if values, err = NewEncoder(c.he).DecryptDecodeComplex(c); err != nil {
		return
	}

	if maxElements >= 0 && maxElements < len(values) {
		values = values[:maxElements]
	}

	for i, v := range values {
		if c.he.Scheme() == rlwe.BGV {
			_, err = fmt.Fprintf(w, "[%d] %d\n", i, int64(real(v)))
		} else {
			_, err = fmt.Fprintf(w, "[%d] %.6f%+.6fi\n", i, real(v), imag(v))
		}
		if err != nil {
			return
		}
	}

	return
}

// Save writes the ciphertext of the tile on w.
func (c *CTile) Save(w io.Writer) (err error) {
	if err = c.check(); err != nil {
		return fmt.Errorf("cannot Save: %w", err)
	}
	_, err = rlwe.WriteCiphertextBinary(w, c.he.ctx, c.ct)
	return
}

// Load reads a ciphertext of the context of the tile written by Save.
// The tile is unchanged on error.
func (c *CTile) Load(r io.Reader) (err error) {
	var ct *rlwe.Ciphertext
	if ct, err = rlwe.ReadCiphertextBinary(r, c.he.ctx); err != nil {
		return fmt.Errorf("cannot Load: %w", err)
	}
	c.ct = ct
	return
}

// MarshalBinary encodes the tile on a newly allocated slice of bytes.
func (c *CTile) MarshalBinary() (p []byte, err error) {
	var buf bytes.Buffer
	if err = c.Save(&buf); err != nil {
		return
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a slice of bytes generated by MarshalBinary.
func (c *CTile) UnmarshalBinary(p []byte) error {
	return c.Load(bytes.NewReader(p))
}
