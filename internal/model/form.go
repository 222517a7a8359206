package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"salescast/internal/util"
)

// FormInput holds the raw values an operator typed into the retrain form.
// Each field may be a string, an integer, a float or a json.Number.
type FormInput struct {
	TreeCount    any
	LearningRate any
	RandomSeed   any
}

// Parse coerces the raw form values into a validated HyperparameterSet.
func (f FormInput) Parse() (HyperparameterSet, error) {
	var out HyperparameterSet
	trees, err := CoerceInt(f.TreeCount)
	if err != nil {
		return out, fmt.Errorf("tree count: %w", err)
	}
	lr, err := CoerceFloat(f.LearningRate)
	if err != nil {
		return out, fmt.Errorf("learning rate: %w", err)
	}
	seed, err := CoerceInt(f.RandomSeed)
	if err != nil {
		return out, fmt.Errorf("random seed: %w", err)
	}
	out = HyperparameterSet{TreeCount: trees, LearningRate: lr, RandomSeed: seed}
	if err := out.Validate(); err != nil {
		return HyperparameterSet{}, err
	}
	return out, nil
}

// CoerceInt converts v to an int. Floats are accepted only when integral.
func CoerceInt(v any) (int, error) {
	switch x := v.(type) {
	case nil:
		return 0, fmt.Errorf("%w: missing value", ErrInvalidInput)
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		if int64(int(x)) != x {
			return 0, fmt.Errorf("%w: %d overflows int", ErrInvalidInput, x)
		}
		return int(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) || math.Abs(x) > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidInput, x)
		}
		return int(x), nil
	case json.Number:
		return CoerceInt(string(x))
	case string:
		s := util.NormalizeWhitespace(x)
		if s == "" {
			return 0, fmt.Errorf("%w: missing value", ErrInvalidInput)
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidInput, x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidInput, v)
	}
}

// CoerceFloat converts v to a finite float64.
func CoerceFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, fmt.Errorf("%w: missing value", ErrInvalidInput)
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		return CoerceFloat(string(x))
	case string:
		s := util.NormalizeWhitespace(x)
		if s == "" {
			return 0, fmt.Errorf("%w: missing value", ErrInvalidInput)
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidInput, x)
		}
		f = p
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidInput, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v is not finite", ErrInvalidInput, f)
	}
	return f, nil
}
