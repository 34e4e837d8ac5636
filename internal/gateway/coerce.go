package gateway

import (
	"encoding/base64"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloudwinks/dispatch/internal/model"
)

// Coerced is a parameter after type coercion, ready for binding.
// Cast is the SQL type name appended to the placeholder for explicit
// parameters so the declared type reaches the binding, not just the
// Go-side conversion. Implicit parameters carry no cast.
type Coerced struct {
	Name  string
	Cast  string
	Value any
}

// typeSpec describes one supported target type tag.
type typeSpec struct {
	cast    string
	convert func(v model.Value) (any, error)
}

// typeSpecs maps normalized type tags (and their aliases) to conversion
// rules. The set is fixed; anything else is an unsupported type.
var typeSpecs = map[string]typeSpec{
	"integer":  {cast: "integer", convert: coerceInt(32)},
	"int":      {cast: "integer", convert: coerceInt(32)},
	"int4":     {cast: "integer", convert: coerceInt(32)},
	"bigint":   {cast: "bigint", convert: coerceInt(64)},
	"int8":     {cast: "bigint", convert: coerceInt(64)},
	"smallint": {cast: "smallint", convert: coerceInt(16)},
	"int2":     {cast: "smallint", convert: coerceInt(16)},
	"numeric":  {cast: "numeric", convert: coerceNumeric},
	"decimal":  {cast: "numeric", convert: coerceNumeric},

	"double precision": {cast: "double precision", convert: coerceFloat},
	"double":           {cast: "double precision", convert: coerceFloat},
	"float":            {cast: "double precision", convert: coerceFloat},
	"float8":           {cast: "double precision", convert: coerceFloat},
	"real":             {cast: "real", convert: coerceFloat},
	"boolean":          {cast: "boolean", convert: coerceBool},
	"bool":             {cast: "boolean", convert: coerceBool},

	"text":              {cast: "text", convert: coerceText},
	"varchar":           {cast: "varchar", convert: coerceText},
	"character varying": {cast: "varchar", convert: coerceText},

	"timestamp":                   {cast: "timestamp", convert: coerceDateTime("timestamp", timestampLayouts)},
	"timestamp without time zone": {cast: "timestamp", convert: coerceDateTime("timestamp", timestampLayouts)},
	"timestamptz":                 {cast: "timestamptz", convert: coerceDateTime("timestamptz", timestamptzLayouts)},
	"timestamp with time zone":    {cast: "timestamptz", convert: coerceDateTime("timestamptz", timestamptzLayouts)},

	"date":  {cast: "date", convert: coerceDateTime("date", dateLayouts)},
	"time":  {cast: "time", convert: coerceDateTime("time", timeLayouts)},
	"bytea": {cast: "bytea", convert: coerceBytea},
	"json":  {cast: "json", convert: coerceJSON},
	"jsonb": {cast: "jsonb", convert: coerceJSON},
	"uuid":  {cast: "uuid", convert: coerceUUID},
}

// Coerce converts a raw value to a native value for the declared type
// tag. An empty tag means the implicit form: the native value is
// inferred from the value's own encoded kind. Pure — no I/O, output
// depends only on the inputs.
func Coerce(v model.Value, declared string) (any, error) {
	if declared == "" {
		return inferNative(v)
	}
	spec, ok := typeSpecs[normalizeTag(declared)]
	if !ok {
		return nil, newErr(ErrUnsupportedType, "unsupported type %q", declared)
	}
	if v.IsNull() {
		return nil, nil // typed null, accepted for every tag
	}
	return spec.convert(v)
}

// CastName returns the SQL type name used for placeholder casts, and
// whether the tag is supported at all.
func CastName(declared string) (string, bool) {
	spec, ok := typeSpecs[normalizeTag(declared)]
	if !ok {
		return "", false
	}
	return spec.cast, true
}

func normalizeTag(tag string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(tag))), " ")
}

// inferNative maps a value to a native Go value using only its encoded
// kind: string→text, integral number→int64 (falling back to float64,
// then to decimal text when it fits neither), boolean→boolean,
// null→null. Objects and arrays have no implicit mapping.
func inferNative(v model.Value) (any, error) {
	switch v.Kind() {
	case model.KindNull:
		return nil, nil
	case model.KindString:
		return v.Str(), nil
	case model.KindBool:
		return v.Bool(), nil
	case model.KindNumber:
		if n, err := v.Num().Int64(); err == nil {
			return n, nil
		}
		if f, err := v.Num().Float64(); err == nil {
			return f, nil
		}
		// Out of float64 range: bind the decimal text and let the
		// server parse it at arbitrary precision.
		return string(v.Num()), nil
	default:
		return nil, newErr(ErrUnsupportedType, "no implicit mapping for %s parameter values", v.Kind())
	}
}

func coercionErr(v model.Value, target string) *Error {
	return newErr(ErrCoercion, "cannot coerce %s value %s to %s", v.Kind(), describeValue(v), target)
}

// describeValue renders the offending value for an error message,
// truncated so a pathological input cannot flood the response.
func describeValue(v model.Value) string {
	data, err := v.MarshalJSON()
	if err != nil {
		return "?"
	}
	const max = 128
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}

func coerceInt(bits int) func(model.Value) (any, error) {
	target := map[int]string{16: "smallint", 32: "integer", 64: "bigint"}[bits]
	return func(v model.Value) (any, error) {
		var text string
		switch v.Kind() {
		case model.KindNumber:
			text = string(v.Num())
		case model.KindString:
			text = v.Str()
		default:
			return nil, coercionErr(v, target)
		}
		n, err := strconv.ParseInt(text, 10, bits)
		if err != nil {
			return nil, coercionErr(v, target)
		}
		return n, nil
	}
}

func coerceNumeric(v model.Value) (any, error) {
	var text string
	switch v.Kind() {
	case model.KindNumber:
		text = string(v.Num())
	case model.KindString:
		text = strings.TrimSpace(v.Str())
	default:
		return nil, coercionErr(v, "numeric")
	}
	// Validate only; the value binds as text with a ::numeric cast so
	// precision is preserved end to end.
	if _, _, err := big.ParseFloat(text, 10, 0, big.ToNearestEven); err != nil {
		return nil, coercionErr(v, "numeric")
	}
	return text, nil
}

func coerceFloat(v model.Value) (any, error) {
	switch v.Kind() {
	case model.KindNumber:
		f, err := v.Num().Float64()
		if err != nil {
			return nil, coercionErr(v, "double precision")
		}
		return f, nil
	case model.KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str()), 64)
		if err != nil {
			return nil, coercionErr(v, "double precision")
		}
		return f, nil
	default:
		return nil, coercionErr(v, "double precision")
	}
}

func coerceBool(v model.Value) (any, error) {
	switch v.Kind() {
	case model.KindBool:
		return v.Bool(), nil
	case model.KindString:
		if strings.EqualFold(v.Str(), "true") {
			return true, nil
		}
		if strings.EqualFold(v.Str(), "false") {
			return false, nil
		}
	}
	return nil, coercionErr(v, "boolean")
}

// coerceText renders any kind as text. Non-string kinds keep their
// JSON encoding, matching how the original service stringified them.
func coerceText(v model.Value) (any, error) {
	if v.Kind() == model.KindString {
		return v.Str(), nil
	}
	return v.EncodedText()
}

var (
	timestampLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
		time.RFC3339,
	}
	timestamptzLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05Z07:00",
	}
	dateLayouts = []string{"2006-01-02"}
	timeLayouts = []string{"15:04:05.999999999", "15:04:05", "15:04"}
)

func coerceDateTime(target string, layouts []string) func(model.Value) (any, error) {
	return func(v model.Value) (any, error) {
		if v.Kind() != model.KindString {
			return nil, coercionErr(v, target)
		}
		text := strings.TrimSpace(v.Str())
		for _, layout := range layouts {
			if t, err := time.Parse(layout, text); err == nil {
				return t, nil
			}
		}
		return nil, coercionErr(v, target)
	}
}

func coerceBytea(v model.Value) (any, error) {
	if v.Kind() != model.KindString {
		return nil, coercionErr(v, "bytea")
	}
	data, err := base64.StdEncoding.DecodeString(v.Str())
	if err != nil {
		return nil, newErr(ErrCoercion, "malformed base64 for bytea value %s", describeValue(v))
	}
	return data, nil
}

// coerceJSON passes the value through as encoded text: strings are
// assumed to already hold an encoded payload, other kinds re-encode to
// their JSON text. The server parses the text under the json/jsonb cast.
func coerceJSON(v model.Value) (any, error) {
	if v.Kind() == model.KindString {
		return v.Str(), nil
	}
	return v.EncodedText()
}

func coerceUUID(v model.Value) (any, error) {
	if v.Kind() != model.KindString {
		return nil, coercionErr(v, "uuid")
	}
	id, err := uuid.Parse(strings.TrimSpace(v.Str()))
	if err != nil {
		return nil, coercionErr(v, "uuid")
	}
	return id, nil
}

// coerceParams runs the coercion engine over a full parameter set.
// Explicit entries keep their list order; implicit entries keep the
// mapping's iteration order, which is irrelevant to correctness since
// they bind by name.
func coerceParams(params model.Parameters) ([]Coerced, error) {
	switch params.Form() {
	case model.FormExplicit:
		out := make([]Coerced, 0, params.Len())
		for _, p := range params.Explicit() {
			cast, ok := CastName(p.Type)
			if !ok {
				return nil, newErr(ErrUnsupportedType, "parameter %q: unsupported type %q", p.Name, p.Type)
			}
			val, err := Coerce(p.Value, p.Type)
			if err != nil {
				return nil, err
			}
			out = append(out, Coerced{Name: p.Name, Cast: cast, Value: val})
		}
		return out, nil
	case model.FormImplicit:
		out := make([]Coerced, 0, params.Len())
		for name, v := range params.Implicit() {
			val, err := Coerce(v, "")
			if err != nil {
				return nil, wrapErr(KindOf(err), err, "parameter %q: %s", name, MessageOf(err))
			}
			out = append(out, Coerced{Name: name, Value: val})
		}
		return out, nil
	default:
		return nil, nil
	}
}
