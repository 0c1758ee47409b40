package schemaoracle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	return &Schema{
		QueryType: "Query",
		Types: map[string]*Type{
			"Query": {Name: "Query", Kind: KindObject, Fields: []*Field{
				{Name: "todos", Type: List(Named("Todo"))},
			}},
			"Node": {Name: "Node", Kind: KindInterface, PossibleTypes: []string{"Todo", "User"}},
			"UnionType": {Name: "UnionType", Kind: KindUnion, PossibleTypes: []string{"Todo", "User"}},
			"Todo": {
				Name:       "Todo",
				Kind:       KindObject,
				Interfaces: []string{"Node"},
				Fields: []*Field{
					{Name: "id", Type: NonNull(Named("ID"))},
					{Name: "text", Type: Named("String")},
				},
			},
			"User": {
				Name:       "User",
				Kind:       KindObject,
				Interfaces: []string{"Node"},
				Fields: []*Field{
					{Name: "id", Type: NonNull(Named("ID"))},
				},
			},
		},
	}
}

func TestIsFieldNullable(t *testing.T) {
	s := testSchema()
	require.False(t, s.IsFieldNullable("Todo", "id"))
	require.True(t, s.IsFieldNullable("Todo", "text"))
	require.True(t, s.IsFieldNullable("Unknown", "whatever"))
}

func TestIsInterfaceOfType(t *testing.T) {
	s := testSchema()
	require.True(t, s.IsInterfaceOfType("Todo", "Todo"))
	require.True(t, s.IsInterfaceOfType("Node", "Todo"))
	require.True(t, s.IsInterfaceOfType("UnionType", "User"))
	require.False(t, s.IsInterfaceOfType("Node", "Unrelated"))
}

func TestConcreteTypesOf(t *testing.T) {
	s := testSchema()
	require.ElementsMatch(t, []string{"Todo", "User"}, s.ConcreteTypesOf("Node"))
	require.ElementsMatch(t, []string{"Todo", "User"}, s.ConcreteTypesOf("UnionType"))
	require.Equal(t, []string{"Todo"}, s.ConcreteTypesOf("Todo"))
}

func TestNilSchemaIsPermissive(t *testing.T) {
	var s *Schema
	require.False(t, s.IsFieldNullable("Todo", "id"))
	require.True(t, s.IsInterfaceOfType("Todo", "Todo"))
	require.False(t, s.IsInterfaceOfType("Node", "Todo"))
}
