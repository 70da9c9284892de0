package ring

import (
	"encoding/json"
	"fmt"
	"math"
)

const (
	discreteGaussianName = "DiscreteGaussian"
	ternaryDistName      = "Ternary"
	uniformDistName      = "Uniform"
)

// DistributionParameters is an interface for distribution
// parameters in the ring.
// There are three implementation of this interface:
//   - DiscreteGaussian for sampling polynomials with discretized
//     gaussian coefficient of given standard deviation and bound.
//   - Ternary for sampling polynomials with coefficients in [-1, 1].
//   - Uniform for sampling polynomial with uniformly random
//     coefficients in the ring.
type DistributionParameters interface {
	// Type returns a string representation of the distribution name.
	Type() string
	// StandardDeviation returns the standard deviation of a coefficient.
	StandardDeviation(N int) float64
	mustBeDist()
}

// DiscreteGaussian represents the parameters of a
// discrete Gaussian distribution with standard
// deviation Sigma and bounds [-Bound, Bound].
type DiscreteGaussian struct {
	Sigma float64
	Bound float64
}

// Ternary represent the parameters of a distribution with coefficients
// in [-1, 0, 1]. Only one of its field must be set to a non-zero value:
//
//   - If P is set, each coefficient in the polynomial is sampled in [-1, 0, 1]
//     with probabilities [0.5*P, 1-P, 0.5*P].
//   - if H is set, the coefficients are sampled uniformly in the set of ternary
//     polynomials with H non-zero coefficients (i.e., of hamming weight H).
type Ternary struct {
	P float64
	H int
}

// Uniform represents the parameters of a uniform distribution
// i.e., with coefficients uniformly distributed in the given ring.
type Uniform struct{}

func (d DiscreteGaussian) Type() string {
	return discreteGaussianName
}

func (d DiscreteGaussian) StandardDeviation(N int) float64 {
	return d.Sigma
}

func (d DiscreteGaussian) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type         string
		Sigma, Bound float64 `json:",omitempty"`
	}{d.Type(), d.Sigma, d.Bound})
}

func (d DiscreteGaussian) mustBeDist() {}

func (d Ternary) Type() string {
	return ternaryDistName
}

func (d Ternary) StandardDeviation(N int) float64 {
	if d.P != 0 {
		return math.Sqrt(d.P)
	}
	return math.Sqrt(float64(d.H) / float64(N))
}

func (d Ternary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string
		P    float64 `json:",omitempty"`
		H    int     `json:",omitempty"`
	}{Type: d.Type(), P: d.P, H: d.H})
}

func (d Ternary) mustBeDist() {}

func (d Uniform) Type() string {
	return uniformDistName
}

func (d Uniform) StandardDeviation(N int) float64 {
	return 0
}

func (d Uniform) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string
	}{Type: d.Type()})
}

func (d Uniform) mustBeDist() {}

func getFloatFromMap(distDef map[string]interface{}, key string) (float64, bool, error) {
	val, hasVal := distDef[key]
	if !hasVal {
		return 0, false, nil
	}
	f, isFloat := val.(float64)
	if !isFloat {
		return 0, true, fmt.Errorf("value for key %s in map should be a number", key)
	}
	return f, true, nil
}

// ParametersFromMap parses a DistributionParameters from its
// JSON map representation, as produced by the MarshalJSON methods.
func ParametersFromMap(distDef map[string]interface{}) (DistributionParameters, error) {

	distTypeVal, specified := distDef["Type"]
	if !specified {
		return nil, fmt.Errorf("map specifies no distribution type")
	}

	distTypeStr, isString := distTypeVal.(string)
	if !isString {
		return nil, fmt.Errorf("value for key Type of map should be of type string")
	}

	switch distTypeStr {
	case uniformDistName:
		return Uniform{}, nil
	case ternaryDistName:
		p, _, err := getFloatFromMap(distDef, "P")
		if err != nil {
			return nil, fmt.Errorf("unable to parse ternary parameter P: %w", err)
		}
		h, _, err := getFloatFromMap(distDef, "H")
		if err != nil {
			return nil, fmt.Errorf("unable to parse ternary parameter H: %w", err)
		}
		if h != float64(int(h)) {
			return nil, fmt.Errorf("unable to parse ternary parameter H: should be an integer")
		}
		if (p != 0) == (h != 0) {
			return nil, fmt.Errorf("exactly one of the field P or H of the ternary distribution must be set")
		}
		return Ternary{P: p, H: int(h)}, nil
	case discreteGaussianName:
		sigma, hasSigma, err := getFloatFromMap(distDef, "Sigma")
		if err != nil || !hasSigma {
			return nil, fmt.Errorf("unable to parse discrete gaussian parameter Sigma: %v", err)
		}
		bound, hasBound, err := getFloatFromMap(distDef, "Bound")
		if err != nil || !hasBound {
			return nil, fmt.Errorf("unable to parse discrete gaussian parameter Bound: %v", err)
		}
		return DiscreteGaussian{Sigma: sigma, Bound: bound}, nil
	default:
		return nil, fmt.Errorf("distribution type %s does not exist", distTypeStr)
	}
}
