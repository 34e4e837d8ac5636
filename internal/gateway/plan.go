package gateway

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/cloudwinks/dispatch/internal/model"
)

// Kind says whether a target name resolved to a callable routine or a
// queryable relation. Determined once per request by the classifier.
type Kind int

const (
	KindRoutine Kind = iota
	KindRelation
)

// String returns the kind name for logs and errors.
func (k Kind) String() string {
	if k == KindRelation {
		return "relation"
	}
	return "routine"
}

// Plan is an executable statement: command text plus ordered bound
// arguments. Immutable, consumed exactly once.
type Plan struct {
	SQL  string
	Args []any
	Kind Kind
}

// Builder assembles statement plans. Routines and relations live in
// disjoint schemas, so a name is never tried against both.
type Builder struct {
	RoutineSchema  string
	RelationSchema string
}

// Build produces the invocation plan for a classified target.
//
// Routines are called as a scalar select so the conventional
// pre-encoded JSON return lands in a single cell. Explicit parameters
// bind positionally with a cast carrying the declared type; implicit
// parameters bind by name through pgx's named-argument rewriting.
func (b Builder) Build(kind Kind, name string, params []Coerced, form model.ParamForm) (Plan, error) {
	if kind == KindRelation {
		if len(params) > 0 {
			return Plan{}, newErr(ErrUnexpectedParameters,
				"relation %q accepts no parameters (%d supplied)", name, len(params))
		}
		return Plan{
			SQL:  fmt.Sprintf("SELECT * FROM %s.%s", quoteIdent(b.RelationSchema), quoteIdent(name)),
			Kind: KindRelation,
		}, nil
	}

	// The classifier matched the catalog entry case-insensitively, so
	// the quoted call must use the folded name or a mixed-case request
	// would miss the routine it just classified.
	target := fmt.Sprintf("%s.%s", quoteIdent(b.RoutineSchema), quoteIdent(strings.ToLower(name)))

	if len(params) == 0 {
		return Plan{SQL: fmt.Sprintf("SELECT %s()", target), Kind: KindRoutine}, nil
	}

	placeholders := make([]string, len(params))
	switch form {
	case model.FormExplicit:
		args := make([]any, len(params))
		for i, p := range params {
			placeholders[i] = fmt.Sprintf("$%d::%s", i+1, p.Cast)
			args[i] = p.Value
		}
		return Plan{
			SQL:  fmt.Sprintf("SELECT %s(%s)", target, strings.Join(placeholders, ", ")),
			Args: args,
			Kind: KindRoutine,
		}, nil
	case model.FormImplicit:
		named := make(pgx.NamedArgs, len(params))
		for i, p := range params {
			placeholders[i] = "@" + p.Name
			named[p.Name] = p.Value
		}
		return Plan{
			SQL:  fmt.Sprintf("SELECT %s(%s)", target, strings.Join(placeholders, ", ")),
			Args: []any{named},
			Kind: KindRoutine,
		}, nil
	default:
		return Plan{}, newErr(ErrInvalidRequest, "parameters supplied without a recognized form")
	}
}

// quoteIdent quotes a single identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
