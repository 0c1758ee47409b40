// Package populate implements the query-populate transform: it watches a
// stream of query operations, synthesizes a fragment per concrete type for
// every selection set it observes, and rewrites mutation and subscription
// fields annotated @populate to spread the fragments currently observed for
// that field's return type. A mutation response then updates every list
// view the cache is already tracking, instead of only the fields the
// mutation author happened to write by hand.
package populate

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/graphcache-go/graphcache/internal/gqldoc"
	"github.com/graphcache-go/graphcache/schemaoracle"
)

var tracer trace.Tracer = otel.Tracer("graphcache")

// syntheticFragment is one fragment the tracker has synthesized from an
// observed query: the selection set a field wrote against concrete type
// Typename, keyed by the operation that contributed it. Seq disambiguates
// two fragments contributed by the same operation key for the same
// Typename (e.g. one query selecting the type at two different sites).
type syntheticFragment struct {
	Name         string
	Key          string
	Seq          int
	Typename     string
	SelectionSet ast.SelectionSet
}

// Tracker holds the cross-operation state the populate transform needs:
// which queries are currently live, what each has contributed, and every
// user-defined fragment seen along the way so it can be reattached to a
// rewritten mutation document.
type Tracker struct {
	activeQueries map[string]map[string]bool        // operation key -> typenames it contributed to
	typeFragments map[string][]syntheticFragment     // typename -> synthesized fragments, across all live queries
	userFragments map[string]*ast.FragmentDefinition // fragment name -> definition, accumulated across queries
	fragmentSeq   map[string]int                     // typename -> next sequence number for its synthesized fragment names
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		activeQueries: make(map[string]map[string]bool),
		typeFragments: make(map[string][]syntheticFragment),
		userFragments: make(map[string]*ast.FragmentDefinition),
		fragmentSeq:   make(map[string]int),
	}
}

// ObserveQuery walks doc's query operations and records, for every
// selection set whose parent field's return type resolves to a concrete
// object type, a synthesized fragment keyed by key. Re-observing the same
// key first tears down its previous contribution, so callers may call this
// repeatedly as a query's document changes (e.g. on variable-driven
// re-selection) without leaking stale fragments.
//
// Without a schema oracle there is no way to resolve a field's return
// type, so ObserveQuery is a no-op when schema is nil.
func (t *Tracker) ObserveQuery(key string, doc *ast.QueryDocument, schema *schemaoracle.Schema) {
	if schema == nil {
		return
	}
	if _, exists := t.activeQueries[key]; exists {
		t.Teardown(key)
	}
	t.activeQueries[key] = make(map[string]bool)

	for _, op := range doc.Operations {
		if op.Operation != ast.Query {
			continue
		}
		rootType := schema.RootTypeName("Query")
		t.walk(doc, op.SelectionSet, rootType, key, schema)
	}
}

// Teardown removes key's contribution: every synthesized fragment it added
// stops being emitted by subsequent Rewrite calls. User fragment
// definitions collected along the way are left in place, since another
// live query may still reference the same named fragment.
func (t *Tracker) Teardown(key string) {
	typenames, ok := t.activeQueries[key]
	if !ok {
		return
	}
	for typename := range typenames {
		frags := t.typeFragments[typename]
		kept := frags[:0]
		for _, f := range frags {
			if f.Key != key {
				kept = append(kept, f)
			}
		}
		if len(kept) == 0 {
			delete(t.typeFragments, typename)
		} else {
			t.typeFragments[typename] = kept
		}
	}
	delete(t.activeQueries, key)
}

// walk descends a selection set recording a synthesized fragment for every
// field whose return type resolves to a concrete object type, and
// collecting every user fragment definition reachable through spreads.
func (t *Tracker) walk(doc *ast.QueryDocument, selSet ast.SelectionSet, typename, key string, schema *schemaoracle.Schema) {
	for _, node := range selSet {
		switch n := node.(type) {
		case *ast.Field:
			if n.Name == "__typename" || n.SelectionSet == nil {
				continue
			}
			concrete := ""
			if rt := schema.FieldReturnType(typename, n.Name); rt != nil {
				concrete = rt.NamedType()
			}
			if isConcreteObject(schema, concrete) {
				t.addFragment(concrete, key, n.SelectionSet)
			}
			t.walk(doc, n.SelectionSet, concrete, key, schema)
		case *ast.FragmentSpread:
			fd := gqldoc.FragmentByName(doc, n.Name)
			if fd == nil {
				continue
			}
			t.userFragments[n.Name] = fd
			cond := fd.TypeCondition
			// A spread narrowing an abstract selection to a concrete type is
			// itself a site worth synthesizing a fragment for, since nothing
			// further up the walk resolved to an object type directly.
			if isAbstract(schema, typename) && isConcreteObject(schema, cond) {
				t.addFragment(cond, key, fd.SelectionSet)
			}
			t.walk(doc, fd.SelectionSet, cond, key, schema)
		case *ast.InlineFragment:
			cond := n.TypeCondition
			if cond == "" {
				cond = typename
			}
			if isAbstract(schema, typename) && isConcreteObject(schema, cond) {
				t.addFragment(cond, key, n.SelectionSet)
			}
			t.walk(doc, n.SelectionSet, cond, key, schema)
		}
	}
}

func isAbstract(schema *schemaoracle.Schema, typename string) bool {
	ty := schema.Types[typename]
	return ty != nil && (ty.Kind == schemaoracle.KindInterface || ty.Kind == schemaoracle.KindUnion)
}

func isConcreteObject(schema *schemaoracle.Schema, typename string) bool {
	ty := schema.Types[typename]
	return ty != nil && ty.Kind == schemaoracle.KindObject
}

// addFragment names the new fragment after a per-Typename sequence number
// rather than the operation key alone, since a single observed query can
// select the same concrete type at more than one site (e.g. a field
// returning it directly and an unrelated field returning it through a
// list elsewhere in the same document) and each such site needs its own
// fragment body.
func (t *Tracker) addFragment(typename, key string, selSet ast.SelectionSet) {
	seq := t.fragmentSeq[typename]
	t.fragmentSeq[typename] = seq + 1
	name := fmt.Sprintf("%s_PopulateFragment_%d", typename, seq)
	t.typeFragments[typename] = append(t.typeFragments[typename], syntheticFragment{
		Name:         name,
		Key:          key,
		Seq:          seq,
		Typename:     typename,
		SelectionSet: selSet,
	})
	t.activeQueries[key][typename] = true
}

// Rewrite rewrites every @populate field in doc's mutation and
// subscription operations to spread the fragments currently synthesized
// for that field's return type, fanning out over concrete implementors
// when the return type is an interface or union. Fields without the
// @populate directive, and operations that are neither mutations nor
// subscriptions, pass through unchanged.
func (t *Tracker) Rewrite(ctx context.Context, doc *ast.QueryDocument, schema *schemaoracle.Schema) (*ast.QueryDocument, error) {
	_, span := tracer.Start(ctx, "graphcache.populate")
	defer span.End()

	if schema == nil {
		return doc, nil
	}

	out := &ast.QueryDocument{}
	seen := make(map[string]bool)
	var newDefs []*ast.FragmentDefinition

	for _, op := range doc.Operations {
		if op.Operation != ast.Mutation && op.Operation != ast.Subscription {
			out.Operations = append(out.Operations, op)
			continue
		}
		rootType := schema.RootTypeName(gqldoc.RootKey(op))
		newOp := *op
		newOp.SelectionSet = t.rewriteSelectionSet(doc, op.SelectionSet, rootType, schema, &newDefs, seen)
		out.Operations = append(out.Operations, &newOp)
	}

	existing := make(map[string]bool, len(doc.Fragments))
	out.Fragments = append(out.Fragments, doc.Fragments...)
	for _, fd := range doc.Fragments {
		existing[fd.Name] = true
	}
	for _, fd := range newDefs {
		if existing[fd.Name] {
			continue
		}
		out.Fragments = append(out.Fragments, fd)
		existing[fd.Name] = true
	}

	span.SetAttributes(attribute.Int("graphcache.populate.fragment_count", len(newDefs)))
	return out, nil
}

func (t *Tracker) rewriteSelectionSet(doc *ast.QueryDocument, selSet ast.SelectionSet, typename string, schema *schemaoracle.Schema, newDefs *[]*ast.FragmentDefinition, seen map[string]bool) ast.SelectionSet {
	out := make(ast.SelectionSet, len(selSet))
	for i, node := range selSet {
		field, isField := node.(*ast.Field)
		if !isField {
			out[i] = node
			continue
		}
		if gqldoc.HasPopulateDirective(field) {
			out[i] = t.rewritePopulateField(doc, field, typename, schema, newDefs, seen)
			continue
		}
		if field.SelectionSet == nil {
			out[i] = field
			continue
		}
		childType := ""
		if rt := schema.FieldReturnType(typename, field.Name); rt != nil {
			childType = rt.NamedType()
		}
		rewritten := *field
		rewritten.SelectionSet = t.rewriteSelectionSet(doc, field.SelectionSet, childType, schema, newDefs, seen)
		out[i] = &rewritten
	}
	return out
}

func (t *Tracker) rewritePopulateField(doc *ast.QueryDocument, field *ast.Field, parentTypename string, schema *schemaoracle.Schema, newDefs *[]*ast.FragmentDefinition, seen map[string]bool) *ast.Field {
	namedType := ""
	if rt := schema.FieldReturnType(parentTypename, field.Name); rt != nil {
		namedType = rt.NamedType()
	}
	concretes := schema.ConcreteTypesOf(namedType)
	if len(concretes) == 0 && namedType != "" {
		concretes = []string{namedType}
	}
	sort.Strings(concretes)

	newSel := append(ast.SelectionSet{}, field.SelectionSet...)
	for _, concrete := range concretes {
		frags := append([]syntheticFragment(nil), t.typeFragments[concrete]...)
		sort.Slice(frags, func(i, j int) bool {
			if frags[i].Key != frags[j].Key {
				return frags[i].Key < frags[j].Key
			}
			return frags[i].Seq < frags[j].Seq
		})
		for _, frag := range frags {
			newSel = append(newSel, &ast.FragmentSpread{Name: frag.Name})
			t.appendFragmentDef(doc, frag, newDefs, seen)
		}
	}
	if len(newSel) == 0 {
		newSel = ast.SelectionSet{&ast.Field{Name: "__typename"}}
	}

	rewritten := *field
	rewritten.SelectionSet = newSel
	rewritten.Directives = removeDirective(field.Directives, "populate")
	return &rewritten
}

func (t *Tracker) appendFragmentDef(doc *ast.QueryDocument, frag syntheticFragment, newDefs *[]*ast.FragmentDefinition, seen map[string]bool) {
	if seen[frag.Name] {
		return
	}
	seen[frag.Name] = true
	*newDefs = append(*newDefs, &ast.FragmentDefinition{
		Name:          frag.Name,
		TypeCondition: frag.Typename,
		SelectionSet:  frag.SelectionSet,
	})
	collectTransitiveUserFragments(frag.SelectionSet, t.userFragments, newDefs, seen)
}

// collectTransitiveUserFragments walks selSet for fragment spreads,
// reattaching the user-defined fragments they reference (and whatever
// those fragments themselves reference) so a rewritten document never
// spreads a name it doesn't also define.
func collectTransitiveUserFragments(selSet ast.SelectionSet, userFragments map[string]*ast.FragmentDefinition, newDefs *[]*ast.FragmentDefinition, seen map[string]bool) {
	for _, node := range selSet {
		switch n := node.(type) {
		case *ast.Field:
			if n.SelectionSet != nil {
				collectTransitiveUserFragments(n.SelectionSet, userFragments, newDefs, seen)
			}
		case *ast.FragmentSpread:
			if seen[n.Name] {
				continue
			}
			fd := userFragments[n.Name]
			if fd == nil {
				continue
			}
			seen[n.Name] = true
			*newDefs = append(*newDefs, fd)
			collectTransitiveUserFragments(fd.SelectionSet, userFragments, newDefs, seen)
		case *ast.InlineFragment:
			collectTransitiveUserFragments(n.SelectionSet, userFragments, newDefs, seen)
		}
	}
}

func removeDirective(directives ast.DirectiveList, name string) ast.DirectiveList {
	out := make(ast.DirectiveList, 0, len(directives))
	for _, d := range directives {
		if d.Name != name {
			out = append(out, d)
		}
	}
	return out
}
