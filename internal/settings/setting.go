// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// =============================================================================
// KIND
// =============================================================================

// Kind is the value type of a setting. It never changes after creation.
type Kind string

const (
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindBool, KindInt, KindFloat, KindString:
		return true
	}
	return false
}

// Numeric reports whether k is int or float.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

// =============================================================================
// SETTING
// =============================================================================

// Setting is one tunable value of an algorithm.
//
// Value always holds the normalized Go type for Kind: bool, int64, float64
// or string.
type Setting struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Kind        Kind     `json:"type"`
	Value       any      `json:"value"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
}

// UnmarshalJSON decodes a setting and normalizes its value for its kind.
func (s *Setting) UnmarshalJSON(data []byte) error {
	type alias Setting
	var raw alias
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw.Kind == "" {
		raw.Kind = inferKind(raw.Value)
	}
	if !raw.Kind.Valid() {
		return fmt.Errorf("setting %q: unknown type %q", raw.Name, raw.Kind)
	}
	v, err := coerce(raw.Kind, raw.Value)
	if err != nil {
		return fmt.Errorf("setting %q: %w", raw.Name, err)
	}
	raw.Value = v
	*s = Setting(raw)
	return nil
}

// inferKind guesses a kind for payloads that omit "type".
func inferKind(v any) Kind {
	switch x := v.(type) {
	case bool:
		return KindBool
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return KindInt
		}
		return KindFloat
	case float64:
		return KindFloat
	case string:
		return KindString
	}
	return ""
}

// Bounds returns the numeric bounds of the setting. Either side may be
// absent, in which case it is reported as an infinity.
func (s Setting) Bounds() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(-1), math.Inf(1)
	if s.Min != nil {
		lo = *s.Min
		ok = true
	}
	if s.Max != nil {
		hi = *s.Max
		ok = true
	}
	return lo, hi, ok
}

// Step returns the increment used by slider style controls: one hundredth
// of the bounded range. Int settings never step by less than 1.
func (s Setting) Step() float64 {
	step := 0.01
	if s.Min != nil && s.Max != nil && *s.Max > *s.Min {
		step = (*s.Max - *s.Min) / 100
	}
	if s.Kind == KindInt {
		step = math.Max(1, math.Round(step))
	}
	return step
}

// Nudge returns the value steps increments away from the current one,
// clamped to the bounds. Only numeric settings can be nudged.
func (s Setting) Nudge(steps int) (any, error) {
	if !s.Kind.Numeric() {
		return nil, &ValidationError{Setting: s.Name, Value: s.Value, Reason: "not a numeric setting"}
	}
	cur, _ := toFloat(s.Value)
	next := cur + float64(steps)*s.Step()
	lo, hi, _ := s.Bounds()
	next = math.Min(math.Max(next, lo), hi)
	if s.Kind == KindInt {
		return int64(math.Round(next)), nil
	}
	// Trim float noise from repeated step additions.
	return math.Round(next*1e6) / 1e6, nil
}

// Validate checks v against the setting's kind and bounds and returns the
// normalized value.
func Validate(s Setting, v any) (any, error) {
	nv, err := coerce(s.Kind, v)
	if err != nil {
		return nil, &ValidationError{Setting: s.Name, Value: v, Reason: err.Error()}
	}
	if s.Kind.Numeric() {
		f, _ := toFloat(nv)
		if lo, hi, ok := s.Bounds(); ok && (f < lo || f > hi) {
			return nil, &ValidationError{
				Setting: s.Name,
				Value:   v,
				Reason:  fmt.Sprintf("out of range [%s, %s]", FormatFloat(lo), FormatFloat(hi)),
			}
		}
	}
	return nv, nil
}

// ParseValue parses text typed by a user into a value of kind k.
func ParseValue(k Kind, text string) (any, error) {
	text = strings.TrimSpace(text)
	switch k {
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", text)
		}
		return b, nil
	case KindInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", text)
		}
		return i, nil
	case KindFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", text)
		}
		return f, nil
	case KindString:
		return text, nil
	}
	return nil, fmt.Errorf("unknown type %q", k)
}

// FormatValue renders a normalized value for display.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case float64:
		return FormatFloat(x)
	case string:
		return strconv.Quote(x)
	}
	return fmt.Sprint(v)
}

// FormatFloat renders f without trailing zeros.
func FormatFloat(f float64) string {
	if math.IsInf(f, 0) {
		if f > 0 {
			return "inf"
		}
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// =============================================================================
// VALUE NORMALIZATION
// =============================================================================

// coerce converts v to the canonical Go type for k.
func coerce(k Kind, v any) (any, error) {
	switch k {
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected bool, got %T", v)

	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected string, got %T", v)

	case KindInt:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int8:
			return int64(x), nil
		case int16:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case uint:
			return uintToInt64(uint64(x))
		case uint8:
			return int64(x), nil
		case uint16:
			return int64(x), nil
		case uint32:
			return int64(x), nil
		case uint64:
			return uintToInt64(x)
		case json.Number:
			if i, err := x.Int64(); err == nil {
				return i, nil
			}
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("expected int, got %T", v)
		}
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("expected int, got %v", v)
		}
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, fmt.Errorf("%v overflows int64", v)
		}
		return int64(f), nil

	case KindFloat:
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", v)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("expected finite number, got %v", v)
		}
		return f, nil
	}
	return nil, fmt.Errorf("unknown type %q", k)
}

func uintToInt64(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("%d overflows int64", u)
	}
	return int64(u), nil
}

// toFloat widens any Go numeric type to float64.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// ValuesEqual compares two setting values structurally. Numbers compare by
// value regardless of their Go type.
func ValuesEqual(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		return fa == fb
	}
	if aNum != bNum {
		return false
	}
	return reflect.DeepEqual(a, b)
}
