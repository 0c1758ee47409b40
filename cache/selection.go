package cache

import (
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/graphcache-go/graphcache/internal/gqldoc"
	"github.com/graphcache-go/graphcache/store"
)

// CollectFields flattens a selection set into its field nodes, transparently
// descending through fragment spreads and inline fragments, evaluating
// @skip/@include along the way, and skipping __typename (the traversal
// handles typename identification itself, once per entity). typename and
// entityKey describe the value the selection is being read against or
// written into; they drive fragment-applicability matching.
func CollectFields(doc *ast.QueryDocument, selSet ast.SelectionSet, vars map[string]any, typename, entityKey string, s *store.Store) []*ast.Field {
	var out []*ast.Field
	var walk func(ast.SelectionSet)
	walk = func(sel ast.SelectionSet) {
		for _, node := range sel {
			switch n := node.(type) {
			case *ast.Field:
				if n.Name == "__typename" {
					continue
				}
				if !gqldoc.ShouldInclude(n.Directives, vars) {
					continue
				}
				out = append(out, n)
			case *ast.FragmentSpread:
				if !gqldoc.ShouldInclude(n.Directives, vars) {
					continue
				}
				fd := gqldoc.FragmentByName(doc, n.Name)
				if fd == nil {
					continue
				}
				if fragmentApplies(fd.TypeCondition, fd.SelectionSet, typename, entityKey, vars, s) {
					walk(fd.SelectionSet)
				}
			case *ast.InlineFragment:
				if !gqldoc.ShouldInclude(n.Directives, vars) {
					continue
				}
				if n.TypeCondition == "" || fragmentApplies(n.TypeCondition, n.SelectionSet, typename, entityKey, vars, s) {
					walk(n.SelectionSet)
				}
			}
		}
	}
	walk(selSet)
	return out
}

// fragmentApplies decides whether a fragment's type condition matches the
// value currently being traversed: schema-driven membership when an oracle
// is configured, or the store-presence heuristic otherwise.
func fragmentApplies(typeCondition string, selSet ast.SelectionSet, typename, entityKey string, vars map[string]any, s *store.Store) bool {
	if typeCondition == "" || typeCondition == typename {
		return true
	}
	if schema := s.Schema(); schema != nil {
		return schema.IsInterfaceOfType(typeCondition, typename)
	}
	return everyFieldPresent(selSet, entityKey, vars, s)
}

// everyFieldPresent is the no-schema fragment-matching heuristic: a
// fragment matches iff every field it selects is already present in the
// store under entityKey. It is intentionally lossy; sibling types sharing
// field names can cause over-matching.
func everyFieldPresent(selSet ast.SelectionSet, entityKey string, vars map[string]any, s *store.Store) bool {
	for _, node := range selSet {
		switch n := node.(type) {
		case *ast.Field:
			if n.Name == "__typename" {
				continue
			}
			args := gqldoc.FieldArguments(n.Arguments, vars)
			fieldKey := store.KeyOfField(n.Name, args)
			if !s.HasField(entityKey, fieldKey) {
				return false
			}
		case *ast.FragmentSpread, *ast.InlineFragment:
			// Nested fragments are not expanded for the heuristic; their
			// own fields are checked when the outer walk reaches them.
		}
	}
	return true
}

// entityTypename recovers the typename of an already-normalized entity
// key, either from the root-key table or from its own stored __typename
// field. Returns "" if neither source knows it, which fragment matching
// treats conservatively (no schema-driven or equality match succeeds).
func entityTypename(s *store.Store, entityKey string) string {
	if tn, ok := s.GetField(entityKey, "__typename", nil); ok {
		if str, ok := tn.(string); ok {
			return str
		}
	}
	if schema := s.Schema(); schema != nil {
		switch entityKey {
		case "Query", "Mutation", "Subscription":
			if named := schema.RootTypeName(entityKey); named != "" {
				return named
			}
		}
	}
	switch entityKey {
	case "Query", "Mutation", "Subscription":
		return entityKey
	}
	return ""
}
