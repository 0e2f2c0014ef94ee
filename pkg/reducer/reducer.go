// Package reducer holds the aggregation vocabulary shared by region and
// temporal reductions.
package reducer

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrUnsupportedReducer is returned for reducer names outside the vocabulary
var ErrUnsupportedReducer = errors.New("unsupported reducer")

// Kind identifies one reducer
type Kind int

const (
	Mean Kind = iota
	Min
	Max
	Count
	StdDev
	Sum
	LinearFit
	ToList
)

var kindNames = map[Kind]string{
	Mean:      "mean",
	Min:       "min",
	Max:       "max",
	Count:     "count",
	StdDev:    "stdDev",
	Sum:       "sum",
	LinearFit: "linearFit",
	ToList:    "toList",
}

// Statistics is the default reducer set for zonal statistics, in column order
var Statistics = []Kind{Mean, StdDev, Max, Min, Count}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Scalar reports whether the reducer collapses a set of values to one number
func (k Kind) Scalar() bool {
	switch k {
	case Mean, Min, Max, Count, StdDev, Sum:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	s, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedReducer, int(k))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Parse maps a reducer name to its Kind. Matching ignores case so that
// "stddev" and "stdDev" are the same reducer.
func Parse(name string) (Kind, error) {
	name = strings.TrimSpace(name)
	for k, s := range kindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedReducer, name)
}

// ParseList parses a set of reducer names, rejecting duplicates
func ParseList(names []string) ([]Kind, error) {
	out := make([]Kind, 0, len(names))
	seen := make(map[Kind]bool, len(names))
	for _, n := range names {
		k, err := Parse(n)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			return nil, fmt.Errorf("reducer %s listed twice", k)
		}
		seen[k] = true
		out = append(out, k)
	}
	return out, nil
}

// Apply reduces values with a scalar reducer. NaN entries are skipped. With
// no usable values every reducer yields NaN except Count, which yields 0.
func Apply(k Kind, values []float64) (float64, error) {
	if !k.Scalar() {
		return math.NaN(), fmt.Errorf("%w: %s is not a scalar reducer", ErrUnsupportedReducer, k)
	}

	v := finite(values)
	if k == Count {
		return float64(len(v)), nil
	}
	if len(v) == 0 {
		return math.NaN(), nil
	}

	switch k {
	case Mean:
		return stat.Mean(v, nil), nil
	case Min:
		return floats.Min(v), nil
	case Max:
		return floats.Max(v), nil
	case Sum:
		return floats.Sum(v), nil
	case StdDev:
		_, sd := stat.PopMeanStdDev(v, nil)
		return sd, nil
	}
	return math.NaN(), nil
}

// ApplyAll runs every reducer in kinds over the same values
func ApplyAll(kinds []Kind, values []float64) (map[Kind]float64, error) {
	out := make(map[Kind]float64, len(kinds))
	v := finite(values)
	for _, k := range kinds {
		r, err := Apply(k, v)
		if err != nil {
			return nil, err
		}
		out[k] = r
	}
	return out, nil
}

// Fit returns the ordinary least squares slope (scale) and intercept (offset)
// of y against x. Pairs where either side is NaN are dropped. Fewer than two
// pairs, or no spread in x, yields NaN for both.
func Fit(x, y []float64) (scale, offset float64) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 || floats.Max(xs) == floats.Min(xs) {
		return math.NaN(), math.NaN()
	}
	offset, scale = stat.LinearRegression(xs, ys, nil, false)
	return scale, offset
}

func finite(values []float64) []float64 {
	clean := true
	for _, v := range values {
		if math.IsNaN(v) {
			clean = false
			break
		}
	}
	if clean {
		return values
	}
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
