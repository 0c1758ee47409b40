package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphcache-go/graphcache/schemaoracle"
	"github.com/graphcache-go/graphcache/store"
)

func TestCollectFields_SkipsTypenameAndExpandsInlineFragment(t *testing.T) {
	doc := mustParse(t, `query {
		id
		__typename
		... on Todo { text }
	}`)
	op := doc.Operations[0]
	s := store.New()

	fields := CollectFields(doc, op.SelectionSet, nil, "Todo", "Todo:1", s)

	var names []string
	for _, f := range fields {
		names = append(names, f.Name)
	}
	require.ElementsMatch(t, []string{"id", "text"}, names)
}

func TestCollectFields_NamedFragmentHeuristicMatch(t *testing.T) {
	doc := mustParse(t, `query {
		...TodoFields
	}
	fragment TodoFields on Todo { id text }`)
	op := doc.Operations[0]

	s := store.New()
	s.WriteRecord("Todo:1", "id", "1")
	s.WriteRecord("Todo:1", "text", "hi")

	fields := CollectFields(doc, op.SelectionSet, nil, "Comment", "Todo:1", s)
	require.Len(t, fields, 2, "heuristic should match because every fragment field is present under the entity")
}

func TestCollectFields_NamedFragmentHeuristicNoMatch(t *testing.T) {
	doc := mustParse(t, `query {
		...TodoFields
	}
	fragment TodoFields on Todo { id text }`)
	op := doc.Operations[0]

	s := store.New()
	s.WriteRecord("Todo:1", "id", "1")

	fields := CollectFields(doc, op.SelectionSet, nil, "Comment", "Todo:1", s)
	require.Empty(t, fields, "heuristic should not match when a fragment field is absent from the store")
}

func TestCollectFields_SchemaDrivenInterfaceMatch(t *testing.T) {
	schema := &schemaoracle.Schema{
		Types: map[string]*schemaoracle.Type{
			"Node": {Name: "Node", Kind: schemaoracle.KindInterface, PossibleTypes: []string{"Todo", "User"}},
			"Todo": {Name: "Todo", Kind: schemaoracle.KindObject, Interfaces: []string{"Node"}},
		},
	}
	s := store.New(store.WithSchema(schema))

	doc := mustParse(t, `query { ... on Node { id } }`)
	op := doc.Operations[0]

	fields := CollectFields(doc, op.SelectionSet, nil, "Todo", "Todo:1", s)
	require.Len(t, fields, 1)
	require.Equal(t, "id", fields[0].Name)
}

func TestCollectFields_SkipDirective(t *testing.T) {
	doc := mustParse(t, `query($omit: Boolean!) { id text @skip(if: $omit) }`)
	op := doc.Operations[0]
	s := store.New()

	fields := CollectFields(doc, op.SelectionSet, map[string]any{"omit": true}, "Todo", "Todo:1", s)
	require.Len(t, fields, 1)
	require.Equal(t, "id", fields[0].Name)
}
