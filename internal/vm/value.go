package vm

import (
	"strconv"
	"strings"
)

// Kind tags the variant a Value currently holds.
type Kind byte

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindBool
	KindNull
)

// Value is the VM's runtime-tagged union: every operand-stack slot and
// variable-store cell holds one of these.
type Value struct {
	Kind  Kind
	Int   int32
	Float float64
	Str   string
	Bool  bool
}

func IntValue(v int32) Value      { return Value{Kind: KindInt, Int: v} }
func FloatValue(v float64) Value  { return Value{Kind: KindFloat, Float: v} }
func StringValue(v string) Value  { return Value{Kind: KindString, Str: v} }
func BoolValue(v bool) Value      { return Value{Kind: KindBool, Bool: v} }
func NullValue() Value            { return Value{Kind: KindNull} }

// Truthy implements the boolean-conversion rule: Boolean->itself,
// Integer/Float->non-zero, String->non-empty, Null->false.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int != 0
	case KindFloat:
		return v.Float != 0
	case KindString:
		return v.Str != ""
	default:
		return false
	}
}

// Equal compares by-variant-then-by-payload; values of different kinds are
// never equal (no implicit int/float coercion for equality).
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindString:
		return v.Str == o.Str
	case KindBool:
		return v.Bool == o.Bool
	case KindNull:
		return true
	default:
		return false
	}
}

// TypeName returns the lowercase kind name used in TypeError messages.
func (v Value) TypeName() string {
	switch v.Kind {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// String renders the canonical textual form PRINT writes: integers without
// a decimal point, floats in shortest 'g' form with ".0" appended when that
// form has neither a point nor an exponent (exponent forms such as "1e+06"
// get no point), strings bare (no quotes), booleans as lowercase
// true/false, null as "null".
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(int64(v.Int), 10)
	case KindFloat:
		s := strconv.FormatFloat(v.Float, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case KindString:
		return v.Str
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return "null"
	}
}
