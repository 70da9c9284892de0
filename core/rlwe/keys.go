package rlwe

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/exp/slices"

	"github.com/tuneinsight/hetile/ring"
)

// SKHandle identifies the secret key s_KeyID(X^Galois)^Power by which a
// ciphertext part is multiplied during decryption. Power 0 is the constant 1.
type SKHandle struct {
	Power  int
	Galois uint64
	KeyID  int
}

// OneHandle returns the handle of the constant part of a ciphertext.
func OneHandle() SKHandle {
	return SKHandle{Power: 0, Galois: 1}
}

// BaseHandle returns the handle of the secret key keyID itself.
func BaseHandle(keyID int) SKHandle {
	return SKHandle{Power: 1, Galois: 1, KeyID: keyID}
}

// IsOne returns true for the handle of the constant part.
func (h SKHandle) IsOne() bool {
	return h.Power == 0
}

// IsBase returns true if the handle is s_KeyID for some key.
func (h SKHandle) IsBase() bool {
	return h.Power == 1 && h.Galois == 1
}

// Mul returns the handle of the product of two parts. It returns false if
// the product cannot be expressed as a single handle.
func (h SKHandle) Mul(other SKHandle) (SKHandle, bool) {
	switch {
	case h.IsOne():
		return other, true
	case other.IsOne():
		return h, true
	case h.Galois == other.Galois && h.KeyID == other.KeyID:
		return SKHandle{Power: h.Power + other.Power, Galois: h.Galois, KeyID: h.KeyID}, true
	default:
		return SKHandle{}, false
	}
}

// Compose returns the handle of the part after the automorphism X -> X^galEl.
func (h SKHandle) Compose(galEl, M uint64) SKHandle {
	if h.IsOne() {
		return h
	}
	h.Galois = (h.Galois * galEl) % M
	return h
}

func (h SKHandle) String() string {
	if h.IsOne() {
		return "1"
	}
	return fmt.Sprintf("s%d(X^%d)^%d", h.KeyID, h.Galois, h.Power)
}

func (h SKHandle) less(other SKHandle) bool {
	switch {
	case h.Power != other.Power:
		return h.Power < other.Power
	case h.Galois != other.Galois:
		return h.Galois < other.Galois
	default:
		return h.KeyID < other.KeyID
	}
}

// SecretKey is a ternary secret s over all the primes of a context.
type SecretKey struct {
	KeyID int
	Value *ring.DoubleCRT
}

// CopyNew returns a deep copy of the key.
func (sk *SecretKey) CopyNew() *SecretKey {
	return &SecretKey{KeyID: sk.KeyID, Value: sk.Value.CopyNew()}
}

// Equal returns true if both keys are equal.
func (sk *SecretKey) Equal(other *SecretKey) bool {
	return sk.KeyID == other.KeyID && sk.Value.Equal(other.Value)
}

// handleValue returns s(X^Galois)^Power over set.
func (sk *SecretKey) handleValue(h SKHandle, set ring.IndexSet) (v *ring.DoubleCRT, err error) {

	if h.IsOne() {
		v = ring.NewDoubleCRT(sk.Value.Ring(), set)
		v.AddScalar(v, 1)
		return
	}

	if h.KeyID != sk.KeyID {
		return nil, fmt.Errorf("%w: handle %v is not under key %d", ErrKeyMaterial, h, sk.KeyID)
	}

	var s *ring.DoubleCRT
	if s, err = sk.Value.View(set); err != nil {
		return
	}

	base := ring.NewDoubleCRT(s.Ring(), set)
	if h.Galois != 1 {
		base.Automorphism(s, h.Galois)
	} else {
		base.Copy(s)
	}

	v = base.CopyNew()
	for i := 1; i < h.Power; i++ {
		if err = v.Mul(v, base, false); err != nil {
			return
		}
	}

	return
}

// PublicKey is an encryption (b, a) = (-a*s + t*e, a) of zero over the chain primes.
type PublicKey struct {
	KeyID int
	Value [2]*ring.DoubleCRT
}

// CopyNew returns a deep copy of the key.
func (pk *PublicKey) CopyNew() *PublicKey {
	return &PublicKey{KeyID: pk.KeyID, Value: [2]*ring.DoubleCRT{pk.Value[0].CopyNew(), pk.Value[1].CopyNew()}}
}

// Equal returns true if both keys are equal.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	return pk.KeyID == other.KeyID && pk.Value[0].Equal(other.Value[0]) && pk.Value[1].Equal(other.Value[1])
}

// KeySwitchMatrix is a key-switching key from the handle From to the key ToKeyID.
// Its j-th column is an encryption under s_ToKeyID over all the primes of the
// context of P * s_From on the primes of the j-th digit and of 0 on the others,
// where P is the product of the special primes.
type KeySwitchMatrix struct {
	From    SKHandle
	ToKeyID int
	Value   [][2]*ring.DoubleCRT
}

// CopyNew returns a deep copy of the matrix.
func (ksm *KeySwitchMatrix) CopyNew() *KeySwitchMatrix {
	c := &KeySwitchMatrix{From: ksm.From, ToKeyID: ksm.ToKeyID, Value: make([][2]*ring.DoubleCRT, len(ksm.Value))}
	for j := range ksm.Value {
		c.Value[j] = [2]*ring.DoubleCRT{ksm.Value[j][0].CopyNew(), ksm.Value[j][1].CopyNew()}
	}
	return c
}

// Equal returns true if both matrices are equal.
func (ksm *KeySwitchMatrix) Equal(other *KeySwitchMatrix) bool {
	if ksm.From != other.From || ksm.ToKeyID != other.ToKeyID || len(ksm.Value) != len(other.Value) {
		return false
	}
	for j := range ksm.Value {
		if !ksm.Value[j][0].Equal(other.Value[j][0]) || !ksm.Value[j][1].Equal(other.Value[j][1]) {
			return false
		}
	}
	return true
}

type switchingKeyIndex struct {
	From    SKHandle
	ToKeyID int
}

// EvaluationKeySet is a set of key-switching matrices indexed by source handle and target key.
type EvaluationKeySet struct {
	matrices map[switchingKeyIndex]*KeySwitchMatrix
}

// NewEvaluationKeySet returns a set holding the given matrices.
func NewEvaluationKeySet(ksm ...*KeySwitchMatrix) *EvaluationKeySet {
	evk := &EvaluationKeySet{matrices: map[switchingKeyIndex]*KeySwitchMatrix{}}
	for _, k := range ksm {
		evk.Add(k)
	}
	return evk
}

// Add inserts a matrix in the set, replacing any matrix with the same source and target.
func (evk *EvaluationKeySet) Add(ksm *KeySwitchMatrix) {
	evk.matrices[switchingKeyIndex{From: ksm.From, ToKeyID: ksm.ToKeyID}] = ksm
}

// Get returns the matrix switching from the handle to the key toKeyID.
func (evk *EvaluationKeySet) Get(from SKHandle, toKeyID int) (ksm *KeySwitchMatrix, err error) {
	if evk != nil {
		if ksm, ok := evk.matrices[switchingKeyIndex{From: from, ToKeyID: toKeyID}]; ok {
			return ksm, nil
		}
	}
	return nil, fmt.Errorf("%w: no key-switching matrix from %v to key %d", ErrKeyMaterial, from, toKeyID)
}

// Has returns true if the set contains a matrix from the handle to the key toKeyID.
func (evk *EvaluationKeySet) Has(from SKHandle, toKeyID int) bool {
	_, err := evk.Get(from, toKeyID)
	return err == nil
}

// Len returns the number of matrices of the set.
func (evk *EvaluationKeySet) Len() int {
	if evk == nil {
		return 0
	}
	return len(evk.matrices)
}

// Matrices returns the matrices of the set in a deterministic order.
func (evk *EvaluationKeySet) Matrices() (ksm []*KeySwitchMatrix) {
	if evk == nil {
		return nil
	}
	keys := make([]switchingKeyIndex, 0, len(evk.matrices))
	for k := range evk.matrices {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b switchingKeyIndex) bool {
		if a.ToKeyID != b.ToKeyID {
			return a.ToKeyID < b.ToKeyID
		}
		return a.From.less(b.From)
	})
	for _, k := range keys {
		ksm = append(ksm, evk.matrices[k])
	}
	return
}

// GaloisElements returns the sorted Galois elements for which the set holds
// an automorphism key back to the same secret.
func (evk *EvaluationKeySet) GaloisElements() (galEls []uint64) {
	for _, ksm := range evk.Matrices() {
		if ksm.From.Power == 1 && ksm.From.Galois != 1 && ksm.From.KeyID == ksm.ToKeyID {
			galEls = append(galEls, ksm.From.Galois)
		}
	}
	slices.Sort(galEls)
	return slices.Compact(galEls)
}

// Equal returns true if both sets hold the same matrices.
func (evk *EvaluationKeySet) Equal(other *EvaluationKeySet) bool {
	a, b := evk.Matrices(), other.Matrices()
	if len(a) != len(b) {
		return false
	}
	handles := func(ksm []*KeySwitchMatrix) (idx []switchingKeyIndex) {
		for _, k := range ksm {
			idx = append(idx, switchingKeyIndex{From: k.From, ToKeyID: k.ToKeyID})
		}
		return
	}
	if !cmp.Equal(handles(a), handles(b)) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
