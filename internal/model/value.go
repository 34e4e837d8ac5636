package model

import (
	"encoding/json"
	"fmt"
)

// ValueKind is the JSON kind a Value was decoded from.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

// String returns the kind name used in error messages.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a loosely-typed parameter value. It preserves the original
// JSON encoding: numbers keep their decimal text (no float rounding),
// objects and arrays keep their raw bytes. The zero Value is null.
type Value struct {
	kind ValueKind
	str  string
	num  json.Number
	b    bool
	raw  json.RawMessage
}

// NullValue returns the JSON null value.
func NullValue() Value { return Value{} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue wraps a decimal number given as its JSON text.
func NumberValue(text string) Value { return Value{kind: KindNumber, num: json.Number(text)} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports the JSON kind this value was decoded from.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is JSON null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload. Valid only for KindString.
func (v Value) Str() string { return v.str }

// Num returns the number payload. Valid only for KindNumber.
func (v Value) Num() json.Number { return v.num }

// Bool returns the boolean payload. Valid only for KindBool.
func (v Value) Bool() bool { return v.b }

// Raw returns the raw JSON bytes for objects and arrays.
func (v Value) Raw() json.RawMessage { return v.raw }

// UnmarshalJSON decodes any JSON value, dispatching on the first byte.
func (v *Value) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("model: empty value")
	}
	switch data[0] {
	case 'n':
		*v = Value{}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value{kind: KindString, str: s}
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Value{kind: KindBool, b: b}
		return nil
	case '{', '[':
		if !json.Valid(data) {
			return fmt.Errorf("model: invalid JSON value")
		}
		kind := KindObject
		if data[0] == '[' {
			kind = KindArray
		}
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		*v = Value{kind: kind, raw: raw}
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Value{kind: KindNumber, num: n}
		return nil
	}
}

// MarshalJSON re-encodes the value exactly as it was decoded.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return []byte(v.num), nil
	case KindBool:
		if v.b {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	default:
		return v.raw, nil
	}
}

// EncodedText returns the value's JSON encoding as a string.
func (v Value) EncodedText() (string, error) {
	data, err := v.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParamForm distinguishes the two parameter shapes a request may carry.
type ParamForm int

const (
	// FormNone means no parameters were supplied.
	FormNone ParamForm = iota
	// FormExplicit is the ordered list of {name, type, value} entries.
	FormExplicit
	// FormImplicit is the name→value mapping without declared types.
	FormImplicit
)

// String returns the form name used in logs.
func (f ParamForm) String() string {
	switch f {
	case FormExplicit:
		return "explicit"
	case FormImplicit:
		return "implicit"
	default:
		return "none"
	}
}

// TypedParam is one entry of the explicit parameter form.
type TypedParam struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value Value  `json:"value"`
}

// Parameters holds a request's parameter set in whichever form the
// caller chose. A JSON array decodes to the explicit form, a JSON
// object to the implicit form, and null or absence to no parameters.
type Parameters struct {
	form     ParamForm
	explicit []TypedParam
	implicit map[string]Value
}

// ExplicitParams builds an explicit-form parameter set.
func ExplicitParams(params []TypedParam) Parameters {
	return Parameters{form: FormExplicit, explicit: params}
}

// ImplicitParams builds an implicit-form parameter set.
func ImplicitParams(params map[string]Value) Parameters {
	return Parameters{form: FormImplicit, implicit: params}
}

// Form reports which shape the parameters arrived in.
func (p Parameters) Form() ParamForm { return p.form }

// Explicit returns the ordered explicit entries. Nil unless Form is FormExplicit.
func (p Parameters) Explicit() []TypedParam { return p.explicit }

// Implicit returns the name→value mapping. Nil unless Form is FormImplicit.
func (p Parameters) Implicit() map[string]Value { return p.implicit }

// Len returns the number of parameters in either form.
func (p Parameters) Len() int {
	switch p.form {
	case FormExplicit:
		return len(p.explicit)
	case FormImplicit:
		return len(p.implicit)
	default:
		return 0
	}
}

// UnmarshalJSON dispatches on the payload shape.
func (p *Parameters) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		*p = Parameters{}
		return nil
	}
	switch data[0] {
	case 'n':
		*p = Parameters{}
		return nil
	case '[':
		var explicit []TypedParam
		if err := json.Unmarshal(data, &explicit); err != nil {
			return err
		}
		*p = Parameters{form: FormExplicit, explicit: explicit}
		return nil
	case '{':
		var implicit map[string]Value
		if err := json.Unmarshal(data, &implicit); err != nil {
			return err
		}
		*p = Parameters{form: FormImplicit, implicit: implicit}
		return nil
	default:
		return fmt.Errorf("model: parameters must be an array, an object, or null")
	}
}

// MarshalJSON re-encodes the parameters in their original form.
func (p Parameters) MarshalJSON() ([]byte, error) {
	switch p.form {
	case FormExplicit:
		return json.Marshal(p.explicit)
	case FormImplicit:
		return json.Marshal(p.implicit)
	default:
		return []byte("null"), nil
	}
}
