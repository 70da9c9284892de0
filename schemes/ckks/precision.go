package ckks

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/montanaflynn/stats"
)

// PrecisionStats is a struct storing statistics about the precision of
// decoded CKKS slots, in bits, with respect to reference values.
type PrecisionStats struct {
	MINLog2Prec Stats
	MAXLog2Prec Stats
	AVGLog2Prec Stats
	MEDLog2Prec Stats
	STDLog2Prec Stats

	MAXAbsErr float64
}

// Stats is a struct storing the real, imaginary and L2 norm (modulus)
// statistics of the precision of complex values.
type Stats struct {
	Real, Imag, L2 float64
}

func (prec PrecisionStats) String() string {
	return fmt.Sprintf(`
┌─────────┬───────┬───────┬───────┐
│    Log2 │ REAL  │ IMAG  │ L2    │
├─────────┼───────┼───────┼───────┤
│MIN Prec │ %5.2f │ %5.2f │ %5.2f │
│MAX Prec │ %5.2f │ %5.2f │ %5.2f │
│AVG Prec │ %5.2f │ %5.2f │ %5.2f │
│MED Prec │ %5.2f │ %5.2f │ %5.2f │
│STD Prec │ %5.2f │ %5.2f │ %5.2f │
└─────────┴───────┴───────┴───────┘
MAX |err| = %g
`,
		prec.MINLog2Prec.Real, prec.MINLog2Prec.Imag, prec.MINLog2Prec.L2,
		prec.MAXLog2Prec.Real, prec.MAXLog2Prec.Imag, prec.MAXLog2Prec.L2,
		prec.AVGLog2Prec.Real, prec.AVGLog2Prec.Imag, prec.AVGLog2Prec.L2,
		prec.MEDLog2Prec.Real, prec.MEDLog2Prec.Imag, prec.MEDLog2Prec.L2,
		prec.STDLog2Prec.Real, prec.STDLog2Prec.Imag, prec.STDLog2Prec.L2,
		prec.MAXAbsErr)
}

// maxLog2Prec caps the precision of exact slots.
const maxLog2Prec = 64

func log2Prec(err float64) float64 {
	if err == 0 {
		return maxLog2Prec
	}
	return math.Min(-math.Log2(err), maxLog2Prec)
}

// GetPrecisionStats returns the precision statistics of have with respect to want.
// Both slices must have the same length.
func GetPrecisionStats(want, have []complex128) (prec PrecisionStats, err error) {

	if len(want) != len(have) {
		return prec, fmt.Errorf("cannot GetPrecisionStats: %d reference values for %d values", len(want), len(have))
	}

	if len(want) == 0 {
		return prec, fmt.Errorf("cannot GetPrecisionStats: no values")
	}

	re := make(stats.Float64Data, len(want))
	im := make(stats.Float64Data, len(want))
	l2 := make(stats.Float64Data, len(want))

	for i := range want {
		d := have[i] - want[i]
		re[i] = log2Prec(math.Abs(real(d)))
		im[i] = log2Prec(math.Abs(imag(d)))
		l2[i] = log2Prec(cmplx.Abs(d))
		prec.MAXAbsErr = math.Max(prec.MAXAbsErr, cmplx.Abs(d))
	}

	for _, s := range []struct {
		f   func(stats.Float64Data) (float64, error)
		out *Stats
	}{
		{stats.Min, &prec.MINLog2Prec},
		{stats.Max, &prec.MAXLog2Prec},
		{stats.Mean, &prec.AVGLog2Prec},
		{stats.Median, &prec.MEDLog2Prec},
		{stats.StandardDeviation, &prec.STDLog2Prec},
	} {
		if s.out.Real, err = s.f(re); err != nil {
			return
		}
		if s.out.Imag, err = s.f(im); err != nil {
			return
		}
		if s.out.L2, err = s.f(l2); err != nil {
			return
		}
	}

	return
}
