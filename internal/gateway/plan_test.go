package gateway

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwinks/dispatch/internal/model"
)

var testBuilder = Builder{RoutineSchema: "dbo", RelationSchema: "public"}

func TestBuild_RelationScan(t *testing.T) {
	plan, err := testBuilder.Build(KindRelation, "orders", nil, model.FormNone)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "public"."orders"`, plan.SQL)
	assert.Empty(t, plan.Args)
	assert.Equal(t, KindRelation, plan.Kind)
}

func TestBuild_RelationRejectsParameters(t *testing.T) {
	params := []Coerced{{Name: "id", Cast: "integer", Value: int64(1)}}
	_, err := testBuilder.Build(KindRelation, "orders", params, model.FormExplicit)
	require.Error(t, err)
	assert.Equal(t, ErrUnexpectedParameters, KindOf(err))
	assert.Contains(t, err.Error(), "orders")
}

func TestBuild_RoutineZeroParams(t *testing.T) {
	plan, err := testBuilder.Build(KindRoutine, "fn_orders", nil, model.FormNone)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "dbo"."fn_orders"()`, plan.SQL)
	assert.Empty(t, plan.Args)
}

func TestBuild_RoutineFoldsNameCase(t *testing.T) {
	// The classifier matches case-insensitively, so the quoted call must
	// use the folded name.
	plan, err := testBuilder.Build(KindRoutine, "GetOrders", nil, model.FormNone)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "dbo"."getorders"()`, plan.SQL)
}

func TestBuild_RoutineExplicitPlaceholders(t *testing.T) {
	params := []Coerced{
		{Name: "id", Cast: "integer", Value: int64(7)},
		{Name: "when", Cast: "timestamp", Value: "2024-06-01"},
	}
	plan, err := testBuilder.Build(KindRoutine, "fn_orders", params, model.FormExplicit)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "dbo"."fn_orders"($1::integer, $2::timestamp)`, plan.SQL)
	assert.Equal(t, []any{int64(7), "2024-06-01"}, plan.Args)
}

func TestBuild_RoutineImplicitNamedArgs(t *testing.T) {
	params := []Coerced{
		{Name: "customer", Value: int64(9)},
	}
	plan, err := testBuilder.Build(KindRoutine, "fn_orders", params, model.FormImplicit)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "dbo"."fn_orders"(@customer)`, plan.SQL)
	require.Len(t, plan.Args, 1)
	named, ok := plan.Args[0].(pgx.NamedArgs)
	require.True(t, ok)
	assert.Equal(t, int64(9), named["customer"])
}

func TestBuild_QuotesEmbeddedQuotes(t *testing.T) {
	plan, err := testBuilder.Build(KindRelation, `or"ders`, nil, model.FormNone)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "public"."or""ders"`, plan.SQL)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "routine", KindRoutine.String())
	assert.Equal(t, "relation", KindRelation.String())
}
