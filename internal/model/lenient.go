package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// LenientInt is an integer column that tolerates dirty data.
//
// Vitals rows written by older clients carry numbers as strings, floats or
// nothing at all. Charts must never hard-fail on such rows, so decoding
// coerces instead of rejecting:
//
//	120        → 120
//	"135"      → 135
//	" 98 mg"   → 98   (leading integer wins)
//	135.9      → 135  (truncated)
//	1e30       → math.MaxInt (out of range clamps)
//	"abc", null, "" → 0
type LenientInt int

// CUSTOM JSON DECODING:
// A type with an UnmarshalJSON([]byte) error method takes over its own
// decoding; encoding/json hands it the raw bytes of the value ("135",
// 135.9, null) and the method decides what they mean. The rest of the
// struct still decodes normally.

// ParseLenientInt extracts the leading base-10 integer of s, or 0.
func ParseLenientInt(s string) int {
	s = strings.TrimLeft(s, " \t\r\n")
	if s == "" {
		return 0
	}

	end := 0
	if s[0] == '+' || s[0] == '-' {
		end = 1
	}
	digits := end
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	if digits == end {
		return 0
	}

	n, err := strconv.Atoi(s[:digits])
	if err != nil {
		// overflow: clamp rather than fail
		if s[0] == '-' {
			return math.MinInt
		}
		return math.MaxInt
	}
	return n
}

func (n *LenientInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*n = 0
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = 0
			return nil
		}
		*n = LenientInt(ParseLenientInt(s))
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			*n = 0
			return nil
		}
		*n = LenientInt(truncInt(f))
	}
	return nil
}

// truncInt converts f toward zero, clamping to the int range; a plain
// int(f) is implementation-defined once f is out of range.
func truncInt(f float64) int {
	switch {
	case f >= float64(math.MaxInt):
		return math.MaxInt
	case f <= float64(math.MinInt):
		return math.MinInt
	}
	return int(math.Trunc(f))
}

func (n LenientInt) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(n), 10), nil
}

// Int returns the value as a plain int.
func (n LenientInt) Int() int { return int(n) }

// OptionalDecimal is a nullable decimal column (body temperature).
// Unparseable input decodes as "absent" rather than an error.
type OptionalDecimal struct {
	Value float64
	Valid bool
}

// Decimal returns a present OptionalDecimal.
func Decimal(v float64) OptionalDecimal {
	return OptionalDecimal{Value: v, Valid: true}
}

// ParseOptionalDecimal parses user input; blank or invalid input is absent.
func ParseOptionalDecimal(s string) OptionalDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return OptionalDecimal{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return OptionalDecimal{}
	}
	return Decimal(f)
}

func (d *OptionalDecimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = OptionalDecimal{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*d = OptionalDecimal{}
			return nil
		}
		*d = ParseOptionalDecimal(s)
		return nil
	}
	*d = ParseOptionalDecimal(string(data))
	return nil
}

func (d OptionalDecimal) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, d.Value, 'f', -1, 64), nil
}

func (d OptionalDecimal) String() string {
	if !d.Valid {
		return ""
	}
	return strconv.FormatFloat(d.Value, 'f', -1, 64)
}
