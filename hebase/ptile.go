package hebase

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tuneinsight/hetile/core/rlwe"
)

// PTile is a plaintext bound to an HeContext.
type PTile struct {
	he *HeContext
	pt *rlwe.Plaintext
}

// NewPTile returns an empty PTile of the context.
func NewPTile(he *HeContext) *PTile {
	return &PTile{he: he}
}

// Plaintext returns the plaintext of the tile.
func (p *PTile) Plaintext() *rlwe.Plaintext {
	return p.pt
}

// IsEmpty returns true if the tile holds no plaintext.
func (p *PTile) IsEmpty() bool {
	return p.pt == nil
}

// ChainIndex returns the level of the tile.
func (p *PTile) ChainIndex() int {
	if p.pt == nil {
		return -1
	}
	return p.pt.Level()
}

// Scale returns the scale of the tile.
func (p *PTile) Scale() float64 {
	if p.pt == nil {
		return 1
	}
	return p.pt.Scale
}

// CopyNew returns a deep copy of the tile.
func (p *PTile) CopyNew() *PTile {
	cp := &PTile{he: p.he}
	if p.pt != nil {
		cp.pt = p.pt.CopyNew()
	}
	return cp
}

// ReduceChainIndex drops the primes of the tile down to the given level.
func (p *PTile) ReduceChainIndex(level int) (err error) {

	if p.pt == nil {
		return fmt.Errorf("cannot ReduceChainIndex: %w", ErrEmptyTile)
	}

	if level < 0 || level > p.pt.Level() {
		return fmt.Errorf("cannot ReduceChainIndex: %w: level %d not in [0, %d]", rlwe.ErrLevelMismatch, level, p.pt.Level())
	}

	v, err := p.pt.Value.View(p.he.ctx.LevelSet(level))
	if err != nil {
		return fmt.Errorf("cannot ReduceChainIndex: %w", err)
	}

	p.pt = &rlwe.Plaintext{Value: v.CopyNew(), Scale: p.pt.Scale, LogBound: p.pt.LogBound}

	return
}

// MarshalBinary encodes the tile on a newly allocated slice of bytes.
func (p *PTile) MarshalBinary() ([]byte, error) {
	if p.pt == nil {
		return nil, fmt.Errorf("cannot MarshalBinary: %w", ErrEmptyTile)
	}
	return p.pt.MarshalBinary()
}

// UnmarshalBinary decodes a slice of bytes generated by MarshalBinary.
func (p *PTile) UnmarshalBinary(data []byte) (err error) {
	return p.Load(bytes.NewReader(data))
}

// Save writes the plaintext of the tile on w.
func (p *PTile) Save(w io.Writer) (err error) {
	if p.pt == nil {
		return fmt.Errorf("cannot Save: %w", ErrEmptyTile)
	}
	_, err = p.pt.WriteTo(w)
	return
}

// Load reads a plaintext written by Save. The tile is unchanged on error.
func (p *PTile) Load(r io.Reader) (err error) {
	// the plaintext is read in the context of the tile
	pt := rlwe.NewPlaintext(p.he.ctx, 0)
	if _, err = pt.ReadFrom(r); err != nil {
		return fmt.Errorf("cannot Load: %w", err)
	}
	p.pt = pt
	return
}
