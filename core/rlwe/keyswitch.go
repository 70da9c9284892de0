package rlwe

import (
	"fmt"

	"github.com/tuneinsight/hetile/ring"
)

// keySwitchPart returns (u0, u1) over the primes of c such that
// u0 + u1*s_to = c*s_from + e, where ksm switches s_from to s_to.
//
// The element c is decomposed along the digits of the context restricted to
// its primes, each digit is extended to the special primes, multiplied with
// the corresponding column of ksm and accumulated; the sum is divided by the
// product P of the special primes. For BGV the rounding is corrected to a
// multiple of t, which leaves the plaintext unchanged.
func (ctx *Context) keySwitchPart(c *ring.DoubleCRT, ksm *KeySwitchMatrix) (u0, u1 *ring.DoubleCRT, err error) {

	if len(ksm.Value) != len(ctx.digits) {
		return nil, nil, fmt.Errorf("%w: key-switching matrix has %d columns but the context has %d digits", ErrKeyMaterial, len(ksm.Value), len(ctx.digits))
	}

	set := c.IndexSet()
	ext := set.Union(ctx.special)

	u0 = ring.NewDoubleCRT(ctx.ring, ext)
	u1 = ring.NewDoubleCRT(ctx.ring, ext)

	for j, digit := range ctx.digits {

		g := digit.Intersection(set)
		if g.IsEmpty() {
			continue
		}

		var d *ring.DoubleCRT
		if d, err = c.View(g); err != nil {
			return
		}

		// the extension must not alias the residues of c
		d = d.CopyNew()
		if err = d.Extend(ext); err != nil {
			return
		}

		var k0, k1 *ring.DoubleCRT
		if k0, err = ksm.Value[j][0].View(ext); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrKeyMaterial, err)
		}
		if k1, err = ksm.Value[j][1].View(ext); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrKeyMaterial, err)
		}

		if err = u0.MulThenAdd(d, k0); err != nil {
			return
		}
		if err = u1.MulThenAdd(d, k1); err != nil {
			return
		}
	}

	if err = u0.ScaleDown(ctx.special, ctx.t); err != nil {
		return
	}

	err = u1.ScaleDown(ctx.special, ctx.t)

	return
}

// keySwitch returns a canonical ciphertext under toKeyID from the parts of ct.
// Parts under 1 or s_toKeyID are kept, the others are key-switched with the
// matrices of evk.
func (ctx *Context) keySwitch(ct *Ciphertext, toKeyID int, evk *EvaluationKeySet) (parts []CtxtPart, switched bool, err error) {

	set := ct.IndexSet()

	c0 := ring.NewDoubleCRT(ctx.ring, set)
	c1 := ring.NewDoubleCRT(ctx.ring, set)

	for _, p := range ct.Parts {

		switch {
		case p.Handle.IsOne():
			err = c0.Add(c0, p.Value, false)
		case p.Handle == BaseHandle(toKeyID):
			err = c1.Add(c1, p.Value, false)
		default:

			var ksm *KeySwitchMatrix
			if ksm, err = evk.Get(p.Handle, toKeyID); err != nil {
				return
			}

			var u0, u1 *ring.DoubleCRT
			if u0, u1, err = ctx.keySwitchPart(p.Value, ksm); err != nil {
				return
			}

			if err = c0.Add(c0, u0, false); err != nil {
				return
			}

			err = c1.Add(c1, u1, false)
			switched = true
		}

		if err != nil {
			return
		}
	}

	return []CtxtPart{{Value: c0, Handle: OneHandle()}, {Value: c1, Handle: BaseHandle(toKeyID)}}, switched, nil
}
