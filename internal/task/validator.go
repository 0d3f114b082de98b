package task

import (
	"fmt"
	"strings"
)

// Validator names the closed set of argument check predicates.
type Validator string

const (
	ValidatorExists       Validator = "exists"
	ValidatorNotEmpty     Validator = "not_empty"
	ValidatorIsEmail      Validator = "is_email"
	ValidatorContainsHTTP Validator = "contains_http"
	ValidatorEquals       Validator = "equals"
	ValidatorContains     Validator = "contains"
)

// ParseValidator converts a corpus string into a Validator. Unknown names are
// a corpus defect and fail loading rather than silently passing at score time.
func ParseValidator(s string) (Validator, error) {
	switch v := Validator(strings.TrimSpace(s)); v {
	case ValidatorExists, ValidatorNotEmpty, ValidatorIsEmail, ValidatorContainsHTTP,
		ValidatorEquals, ValidatorContains:
		return v, nil
	default:
		return "", fmt.Errorf("unknown validator %q", s)
	}
}

// needsValue reports whether the validator compares against an expected value.
func (v Validator) needsValue() bool {
	return v == ValidatorEquals || v == ValidatorContains
}

// ArgumentCheck is one declared check on a tool call's arguments. Field is a
// dot path into the arguments object.
type ArgumentCheck struct {
	Field     string
	Validator Validator
	Value     any
}

// Evaluate runs the check against the arguments actually sent on a call.
// A nil arguments map means the call carried no arguments at all; every
// check fails against it.
func (c ArgumentCheck) Evaluate(args map[string]any) bool {
	actual, found := lookupPath(args, c.Field)

	switch c.Validator {
	case ValidatorExists:
		return found && actual != nil
	case ValidatorNotEmpty:
		return found && notEmpty(actual)
	case ValidatorIsEmail:
		s, ok := actual.(string)
		return found && ok && strings.Contains(s, "@") && strings.Contains(s, ".")
	case ValidatorContainsHTTP:
		s, ok := actual.(string)
		return found && ok && strings.Contains(s, "http")
	case ValidatorEquals:
		return found && equalsValue(actual, c.Value)
	case ValidatorContains:
		s, ok := actual.(string)
		want, wantOK := c.Value.(string)
		return found && ok && wantOK && strings.Contains(s, want)
	default:
		return false
	}
}

// lookupPath walks a dot-separated path through nested argument objects.
func lookupPath(args map[string]any, path string) (any, bool) {
	if args == nil || path == "" {
		return nil, false
	}

	var current any = args
	for _, key := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func notEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// equalsValue compares with JSON number semantics: corpus values and wire
// arguments both decode numbers as float64, but int-typed expectations from
// hand-built tasks still compare equal.
func equalsValue(actual, expected any) bool {
	if af, aok := toFloat(actual); aok {
		if ef, eok := toFloat(expected); eok {
			return af == ef
		}
	}
	return actual == expected
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
