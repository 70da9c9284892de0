package bignum

import (
	"fmt"
	"math/big"

	"github.com/ALTree/bigfloat"
)

// NewFloat creates a new big.Float element with "prec" bits of precision.
// Valid types for x are: int, int64, uint, uint64, float64, *big.Int or *big.Float.
func NewFloat(x interface{}, prec uint) (y *big.Float) {

	y = new(big.Float)
	y.SetPrec(prec)

	if x == nil {
		return
	}

	switch x := x.(type) {
	case int:
		y.SetInt64(int64(x))
	case int64:
		y.SetInt64(x)
	case uint:
		y.SetUint64(uint64(x))
	case uint64:
		y.SetUint64(x)
	case float64:
		y.SetFloat64(x)
	case *big.Int:
		y.SetInt(x)
	case *big.Float:
		y.Set(x)
	default:
		panic(fmt.Errorf("invalid x.(type): valid types are int, int64, uint, uint64, float64, *big.Int or *big.Float but is %T", x))
	}

	return
}

// Log returns ln(x) with the precision of x.
func Log(x *big.Float) *big.Float {
	return bigfloat.Log(x)
}

// Log2 returns log2(x) for x > 0, computed with 128 bits of precision.
// Unlike math.Log2(float64), it is accurate for integers wider than 2^1024.
func Log2(x *big.Int) float64 {
	if x.Sign() <= 0 {
		panic(fmt.Errorf("cannot Log2: x must be positive"))
	}
	const prec = 128
	num := bigfloat.Log(NewFloat(x, prec))
	den := bigfloat.Log(NewFloat(2, prec))
	f, _ := num.Quo(num, den).Float64()
	return f
}

// Pow returns x^y.
func Pow(x, y *big.Float) *big.Float {
	return bigfloat.Pow(x, y)
}

// Round returns round(x) as a *big.Int, rounding half away from zero.
func Round(x *big.Float) (r *big.Int) {
	t := new(big.Float).SetPrec(x.Prec()).Set(x)
	half := new(big.Float).SetFloat64(0.5)
	if t.Sign() >= 0 {
		t.Add(t, half)
	} else {
		t.Sub(t, half)
	}
	r, _ = t.Int(nil)
	return
}
