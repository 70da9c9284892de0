package hebase

// Traits is a set of flags characterizing the scheme of an HeContext.
type Traits struct {
	SupportsExplicitRescale      bool
	SupportsExplicitChainIndices bool
	SupportsComplexNumbers       bool
	SupportsScaledEncoding       bool
	IsModularArithmetic          bool

	// ArithmeticModulus is the plaintext modulus of modular schemes, 0 otherwise.
	ArithmeticModulus uint64
}

// Intersect keeps the flags set in both t and other.
func (t *Traits) Intersect(other Traits) {
	t.SupportsExplicitRescale = t.SupportsExplicitRescale && other.SupportsExplicitRescale
	t.SupportsExplicitChainIndices = t.SupportsExplicitChainIndices && other.SupportsExplicitChainIndices
	t.SupportsComplexNumbers = t.SupportsComplexNumbers && other.SupportsComplexNumbers
	t.SupportsScaledEncoding = t.SupportsScaledEncoding && other.SupportsScaledEncoding
	t.IsModularArithmetic = t.IsModularArithmetic && other.IsModularArithmetic
	if t.ArithmeticModulus != other.ArithmeticModulus {
		t.ArithmeticModulus = 0
	}
}
