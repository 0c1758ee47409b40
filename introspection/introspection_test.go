package introspection

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sample = `{
  "data": {
    "__schema": {
      "queryType": {"name": "Query"},
      "mutationType": {"name": "Mutation"},
      "types": [
        {
          "kind": "OBJECT",
          "name": "Query",
          "fields": [
            {"name": "todos", "type": {"kind": "LIST", "ofType": {"kind": "NAMED", "name": "Todo"}}}
          ]
        },
        {
          "kind": "INTERFACE",
          "name": "Node",
          "possibleTypes": [{"name": "Todo"}, {"name": "User"}]
        },
        {
          "kind": "OBJECT",
          "name": "Todo",
          "interfaces": [{"name": "Node"}],
          "fields": [
            {"name": "id", "type": {"kind": "NON_NULL", "ofType": {"kind": "NAMED", "name": "ID"}}},
            {"name": "text", "type": {"kind": "NAMED", "name": "String"}}
          ]
        },
        {
          "kind": "OBJECT",
          "name": "User",
          "interfaces": [{"name": "Node"}],
          "fields": [
            {"name": "id", "type": {"kind": "NON_NULL", "ofType": {"kind": "NAMED", "name": "ID"}}}
          ]
        }
      ]
    }
  }
}`

func TestFromJSON(t *testing.T) {
	sch, err := FromJSON([]byte(sample))
	require.NoError(t, err)
	require.Equal(t, "Query", sch.QueryType)
	require.Equal(t, "Mutation", sch.MutationType)

	require.False(t, sch.IsFieldNullable("Todo", "id"))
	require.True(t, sch.IsFieldNullable("Todo", "text"))
	require.True(t, sch.IsInterfaceOfType("Node", "Todo"))
	require.ElementsMatch(t, []string{"Todo", "User"}, sch.ConcreteTypesOf("Node"))
}

func TestFromJSON_BareSchemaObject(t *testing.T) {
	bare := `{"__schema": {"queryType": {"name": "Query"}, "types": []}}`
	sch, err := FromJSON([]byte(bare))
	require.NoError(t, err)
	require.Equal(t, "Query", sch.QueryType)
}

func TestFromJSON_MissingQueryType(t *testing.T) {
	_, err := FromJSON([]byte(`{"__schema": {"types": []}}`))
	require.Error(t, err)
}
