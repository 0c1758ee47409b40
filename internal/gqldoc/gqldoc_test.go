package gqldoc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

func mustParse(t *testing.T, src string) *ast.QueryDocument {
	t.Helper()
	doc, err := parser.ParseQuery(&ast.Source{Input: src})
	require.NoError(t, err)
	return doc
}

func TestFieldArguments_SubstitutesVariables(t *testing.T) {
	doc := mustParse(t, `query Q($id: ID!) { todo(id: $id, archived: false) { id } }`)
	field := doc.Operations[0].SelectionSet[0].(*ast.Field)

	args := FieldArguments(field.Arguments, map[string]any{"id": "42"})
	require.Equal(t, map[string]any{"id": "42", "archived": false}, args)
}

func TestFieldArguments_UndefinedVariableIsNil(t *testing.T) {
	doc := mustParse(t, `query Q($id: ID) { todo(id: $id) { id } }`)
	field := doc.Operations[0].SelectionSet[0].(*ast.Field)

	args := FieldArguments(field.Arguments, map[string]any{})
	require.Equal(t, map[string]any{"id": nil}, args)
}

func TestShouldInclude_SkipAndInclude(t *testing.T) {
	doc := mustParse(t, `{ a @skip(if: true) b @include(if: false) c @include(if: true) }`)
	sel := doc.Operations[0].SelectionSet

	require.False(t, ShouldInclude(sel[0].(*ast.Field).Directives, nil))
	require.False(t, ShouldInclude(sel[1].(*ast.Field).Directives, nil))
	require.True(t, ShouldInclude(sel[2].(*ast.Field).Directives, nil))
}

func TestShouldInclude_VariableDriven(t *testing.T) {
	doc := mustParse(t, `query Q($skip: Boolean!) { a @skip(if: $skip) }`)
	field := doc.Operations[0].SelectionSet[0].(*ast.Field)

	require.False(t, ShouldInclude(field.Directives, map[string]any{"skip": true}))
	require.True(t, ShouldInclude(field.Directives, map[string]any{"skip": false}))
}

func TestTypeCondition_InlineAndSpread(t *testing.T) {
	doc := mustParse(t, `
		{
			... on Todo { id }
			...Frag
		}
		fragment Frag on User { id }
	`)
	sel := doc.Operations[0].SelectionSet
	require.Equal(t, "Todo", TypeCondition(sel[0], doc))
	require.Equal(t, "User", TypeCondition(sel[1], doc))
}

func TestRootOperation_ByNameAndSole(t *testing.T) {
	doc := mustParse(t, `query One { a } query Two { b }`)
	op, err := RootOperation(doc, "Two")
	require.NoError(t, err)
	require.Equal(t, "Two", op.Name)

	_, err = RootOperation(doc, "")
	require.Error(t, err)

	single := mustParse(t, `{ a }`)
	op, err = RootOperation(single, "")
	require.NoError(t, err)
	require.Equal(t, ast.Query, op.Operation)
}

func TestRootKey(t *testing.T) {
	doc := mustParse(t, `mutation { addTodo { id } }`)
	require.Equal(t, "Mutation", RootKey(doc.Operations[0]))
}

func TestHasPopulateDirective(t *testing.T) {
	doc := mustParse(t, `mutation { addTodo @populate }`)
	field := doc.Operations[0].SelectionSet[0].(*ast.Field)
	require.True(t, HasPopulateDirective(field))
}
