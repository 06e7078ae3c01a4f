package asset

import (
	"fmt"
	"strconv"
	"time"
)

// Kind is the type tag of an attribute value.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindTime   Kind = "time"
)

// Value is a typed attribute value read from the catalog.
type Value struct {
	kind Kind
	raw  any
}

func String(s string) Value    { return Value{kind: KindString, raw: s} }
func Int(i int64) Value        { return Value{kind: KindInt, raw: i} }
func Float(f float64) Value    { return Value{kind: KindFloat, raw: f} }
func Bool(b bool) Value        { return Value{kind: KindBool, raw: b} }
func Time(t time.Time) Value   { return Value{kind: KindTime, raw: t.UTC()} }
func (v Value) Kind() Kind     { return v.kind }
func (v Value) Interface() any { return v.raw }
func (v Value) IsZero() bool   { return v.kind == "" }

// Parse decodes the textual form stored by the catalog back into a Value.
func Parse(kind Kind, text string) (Value, error) {
	switch kind {
	case KindString, "":
		return String(text), nil
	case KindInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse int %q: %w", text, err)
		}
		return Int(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse float %q: %w", text, err)
		}
		return Float(f), nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("parse bool %q: %w", text, err)
		}
		return Bool(b), nil
	case KindTime:
		t, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return Value{}, fmt.Errorf("parse time %q: %w", text, err)
		}
		return Time(t), nil
	}
	return Value{}, fmt.Errorf("unknown value kind %q", kind)
}

// Text is the inverse of Parse.
func (v Value) Text() string {
	switch x := v.raw.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	}
	return ""
}

// AsString returns the value as text; every kind converts.
func (v Value) AsString() string { return v.Text() }

func (v Value) AsInt() (int64, error) {
	switch x := v.raw.(type) {
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("%s value is not convertible to int", v.kind)
}

func (v Value) AsFloat() (float64, error) {
	switch x := v.raw.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	}
	return 0, fmt.Errorf("%s value is not convertible to float", v.kind)
}

func (v Value) AsBool() (bool, error) {
	switch x := v.raw.(type) {
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(x)
	}
	return false, fmt.Errorf("%s value is not convertible to bool", v.kind)
}

// FromAny wraps a Go value produced by a collector.
func FromAny(x any) (Value, error) {
	switch v := x.(type) {
	case Value:
		return v, nil
	case string:
		return String(v), nil
	case int:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case float32:
		return Float(float64(v)), nil
	case float64:
		return Float(v), nil
	case bool:
		return Bool(v), nil
	case time.Time:
		return Time(v), nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", x)
}
