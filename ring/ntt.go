package ring

// NTT computes in place the negacyclic NTT of p in Z_q[X]/(X^N+1).
// The output is in bit-reversed order: p[i] = P(psi^(2*bitrev(i)+1)).
// Input coefficients must be in [0, q).
func (m *Modulus) NTT(p []uint64) {

	q, qInv := m.Q, m.MRedConstant
	roots := m.RootsForward

	N := len(p)

	var U, V, W uint64

	for m2, t := 1, N>>1; m2 < N; m2, t = m2<<1, t>>1 {
		for i := 0; i < m2; i++ {
			j1 := 2 * i * t
			W = roots[m2+i]
			x, y := p[j1:j1+t], p[j1+t:j1+2*t]
			for j := range x {
				U = x[j]
				V = MRed(y[j], W, q, qInv)
				x[j] = CRed(U+V, q)
				y[j] = CRed(U+q-V, q)
			}
		}
	}
}

// INTT computes in place the inverse of NTT.
func (m *Modulus) INTT(p []uint64) {

	q, qInv := m.Q, m.MRedConstant
	roots := m.RootsBackward

	N := len(p)

	var U, V, W uint64

	for h, t := N>>1, 1; h > 0; h, t = h>>1, t<<1 {
		for i := 0; i < h; i++ {
			j1 := 2 * i * t
			W = roots[h+i]
			x, y := p[j1:j1+t], p[j1+t:j1+2*t]
			for j := range x {
				U, V = x[j], y[j]
				x[j] = CRed(U+V, q)
				y[j] = MRed(U+q-V, W, q, qInv)
			}
		}
	}

	nInv := m.NInv
	for i := range p {
		p[i] = MRed(p[i], nInv, q, qInv)
	}
}
