package gateway

import (
	"context"
	"errors"
)

// routineCatalogQuery counts catalog entries for a case-folded routine
// name inside the routine schema. Matches the framework convention of
// installing all callable routines under one schema.
const routineCatalogQuery = `SELECT COUNT(*)
FROM pg_proc p
JOIN pg_namespace n ON p.pronamespace = n.oid
WHERE n.nspname = $1 AND p.proname = LOWER($2)`

// classify decides whether name refers to a routine or a relation on
// the connected tenant database. A name absent from the routine catalog
// is assumed to be a relation; an invalid relation name surfaces later
// as an execution failure, not here. Runs exactly once per request.
func classify(ctx context.Context, conn Conn, routineSchema, name string) (Kind, error) {
	var count int64
	err := conn.QueryRow(ctx, routineCatalogQuery, routineSchema, name).Scan(&count)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, wrapErr(ErrTimeout, err, "target classification timed out")
		}
		return 0, wrapErr(ErrExecution, err, "classify target %q: %v", name, err)
	}
	if count > 0 {
		return KindRoutine, nil
	}
	return KindRelation, nil
}
