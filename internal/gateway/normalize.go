package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// normalize converts raw execution output into the canonical response:
// an empty list, a decoded scalar JSON payload, or an ordered list of
// column-name→value row mappings.
func normalize(rows pgx.Rows) (any, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var raw [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, wrapErr(ErrExecution, err, "read row: %v", err)
		}
		raw = append(raw, vals)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, wrapErr(ErrTimeout, err, "execution timed out while reading results")
		}
		return nil, wrapErr(ErrExecution, err, "read result: %v", err)
	}

	if len(raw) == 0 {
		return []any{}, nil
	}

	// Routines conventionally return one pre-encoded JSON payload in a
	// single cell; pass that payload through decoded instead of wrapping
	// it in a one-row list. A routine that finds nothing returns SQL
	// NULL or an empty string — both mean the empty result.
	if len(raw) == 1 && len(cols) == 1 {
		if emptyScalar(raw[0][0]) {
			return []any{}, nil
		}
		if decoded, ok, err := decodeScalar(raw[0][0]); err != nil {
			return nil, err
		} else if ok {
			return decoded, nil
		}
	}

	out := make([]map[string]any, len(raw))
	for i, vals := range raw {
		row := make(map[string]any, len(cols))
		for j, name := range cols {
			row[name] = cellValue(vals[j])
		}
		out[i] = row
	}
	return out, nil
}

// emptyScalar reports whether a single-cell result carries no payload.
func emptyScalar(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []byte:
		return len(t) == 0
	}
	return false
}

// decodeScalar reports whether a single-cell result is an encoded
// structured payload and decodes it if so. A scalar that merely looks
// structured but fails to parse is a decode failure, not a row.
func decodeScalar(v any) (any, bool, error) {
	var text string
	switch t := v.(type) {
	case string:
		text = t
	case []byte:
		text = string(t)
	case map[string]any, []any:
		// jsonb results arrive from the driver already decoded.
		return t, true, nil
	default:
		return nil, false, nil
	}

	trimmed := strings.TrimSpace(text)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil, false, nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return nil, false, wrapErr(ErrResultDecode, err, "routine result is not valid encoded JSON")
	}
	return decoded, true, nil
}

// cellValue converts a driver value into a JSON-stable native value.
// Structured text in a cell stays raw text — row cells are never
// re-interpreted, keeping normalization type-stable.
func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case [16]byte:
		return uuid.UUID(t).String()
	case pgtype.Numeric:
		if val, err := t.Value(); err == nil {
			return val
		}
		return nil
	case map[string]any, []any:
		// json/jsonb columns come back decoded; re-encode so the cell
		// carries the same raw text a text column would.
		if data, err := json.Marshal(t); err == nil {
			return string(data)
		}
		return nil
	default:
		return v
	}
}
