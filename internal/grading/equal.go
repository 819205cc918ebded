package grading

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Equal reports whether a submitted answer matches the answer key.
//
// Answers that both read as integers are compared as integers, so "2"
// matches 2. Otherwise the text forms are compared without regard to case,
// so "Paris" matches "paris". A nil on either side never matches.
func Equal(user, correct any) bool {
	eq, _ := compare(user, correct)
	return eq
}

// compare is Equal that also reports whether the text fallback decided it.
func compare(user, correct any) (equal, textual bool) {
	if user == nil || correct == nil {
		return false, false
	}

	ub, uIsBool := user.(bool)
	cb, cIsBool := correct.(bool)
	if uIsBool && cIsBool {
		return ub == cb, false
	}

	// A lone boolean is not an integer: true must not match 1.
	if !uIsBool && !cIsBool {
		ui, uok := asInteger(user)
		ci, cok := asInteger(correct)
		if uok && cok {
			return ui == ci, false
		}
	}

	return foldText(textOf(user)) == foldText(textOf(correct)), true
}

// asInteger coerces v to an integer. Strings are trimmed and parsed in base
// ten; floats qualify only when they hold a whole number.
func asInteger(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return wholeFloat(float64(n))
	case float64:
		return wholeFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return wholeFloat(f)
		}
		return 0, false
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// wholeFloat converts integral floats only. Fractions are never truncated, so
// 2.5 does not match 2; they fall through to the text tier.
func wholeFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// textOf renders a scalar answer the way it was most likely written.
func textOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

var folder = cases.Fold()

// foldText normalises s for caseless comparison.
func foldText(s string) string {
	return folder.String(norm.NFC.String(s))
}
