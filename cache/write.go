package cache

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/graphcache-go/graphcache/internal/gqldoc"
	"github.com/graphcache-go/graphcache/store"
)

var tracer trace.Tracer = otel.Tracer("graphcache")

// writeCtx carries the state a single WriteQuery call threads through its
// recursion: the document and variables it's walking and the store it's
// writing into. Dependency capture itself lives on the store's
// InitDependencies/AddDependency/CurrentDependencies/ClearDependencies
// quartet, scoped exclusively to this call by WriteQuery below.
type writeCtx struct {
	ctx   context.Context
	doc   *ast.QueryDocument
	vars  map[string]any
	store *store.Store
}

// WriteQuery normalizes result into s following req's selection set,
// per the write traversal algorithm: scalars land in records, entities
// are keyed and recursed into, embedded values are addressed by their
// parent's fully-qualified field key, and any updater registered for a
// written root field runs right after that field has been written, before
// the next root field is written.
func WriteQuery(ctx context.Context, s *store.Store, req Request, result map[string]any) (map[string]struct{}, error) {
	sctx, span := tracer.Start(ctx, "graphcache.write")
	defer span.End()

	op, err := gqldoc.RootOperation(req.Document, req.OperationName)
	if err != nil {
		return nil, fmt.Errorf("cache: write: %w", err)
	}
	rootKey := gqldoc.RootKey(op)

	s.InitDependencies()
	defer s.ClearDependencies()

	wctx := &writeCtx{ctx: sctx, doc: req.Document, vars: req.Variables, store: s}

	typename := deriveRootTypename(s, rootKey, result)
	s.WriteRecord(rootKey, "__typename", typename)

	fields := CollectFields(req.Document, op.SelectionSet, req.Variables, typename, rootKey, s)
	for _, field := range fields {
		wctx.writeFieldInto(rootKey, field, result)
		wctx.runUpdater(rootKey, field, result)
	}

	deps := s.CurrentDependencies()
	span.SetAttributes(attribute.Int("graphcache.dependency_count", len(deps)))
	return deps, nil
}

func deriveRootTypename(s *store.Store, rootKey string, result map[string]any) string {
	if tn, ok := result["__typename"].(string); ok && tn != "" {
		return tn
	}
	if schema := s.Schema(); schema != nil {
		if tn := schema.RootTypeName(rootKey); tn != "" {
			return tn
		}
	}
	return rootKey
}

func (w *writeCtx) runUpdater(rootKey string, field *ast.Field, result map[string]any) {
	updater, ok := w.store.UpdaterFor(rootKey, field.Name)
	if !ok {
		return
	}
	alias := field.Alias
	if alias == "" {
		alias = field.Name
	}
	args := gqldoc.FieldArguments(field.Arguments, w.vars)
	updater(w.ctx, result[alias], args, store.NewWriteFacade(w.store))
}

// writeFieldInto writes one field's value out of data into the store
// under entityKey.
func (w *writeCtx) writeFieldInto(entityKey string, field *ast.Field, data map[string]any) {
	alias := field.Alias
	if alias == "" {
		alias = field.Name
	}
	args := gqldoc.FieldArguments(field.Arguments, w.vars)
	fieldKey := store.KeyOfField(field.Name, args)
	fullKey := store.JoinFieldKey(entityKey, fieldKey)
	value := data[alias]

	if field.SelectionSet == nil {
		w.store.WriteRecord(entityKey, fieldKey, value)
		w.store.AddDependency(entityKey)
		return
	}

	switch v := value.(type) {
	case nil:
		w.store.WriteLink(fullKey, store.NullLink())
	case []any:
		link := w.writeList(fullKey, field.SelectionSet, v)
		w.store.WriteLink(fullKey, link)
	case map[string]any:
		w.writeMapping(fullKey, field.SelectionSet, v)
	default:
		// A scalar where a selection set was expected: the document
		// disagrees with the result shape. Degrades to a null link rather
		// than a panic.
		w.store.WriteLink(fullKey, store.NullLink())
	}
}

// writeMapping writes a single entity-or-embedded value. A keyed mapping
// gets an entity link at fullKey and is recursed into under its own entity
// key; an embedded mapping gets no link entry and is recursed into using
// fullKey itself as the addressing prefix.
func (w *writeCtx) writeMapping(fullKey string, selSet ast.SelectionSet, v map[string]any) {
	childKey, keyed := w.store.KeyOfEntity(v)
	target := fullKey
	if keyed {
		target = childKey
		w.store.WriteLink(fullKey, store.EntityLink(childKey))
	}
	w.writeEntity(target, selSet, v)
}

// writeList writes each element of a list value, producing the parallel
// link tree the read path expects. An embedded list element has no entity
// key of its own, so its address is synthesized as joinKeys(addr, index)
// and carried as that link's entity key, the same addressing scheme the
// single-value embedded case uses, made representable inside the
// three-variant Link type by treating the synthetic address as a key.
func (w *writeCtx) writeList(addr string, selSet ast.SelectionSet, items []any) store.Link {
	links := make([]store.Link, len(items))
	for i, item := range items {
		childAddr := store.JoinFieldKey(addr, strconv.Itoa(i))
		switch v := item.(type) {
		case nil:
			links[i] = store.NullLink()
		case []any:
			links[i] = w.writeList(childAddr, selSet, v)
		case map[string]any:
			childKey, keyed := w.store.KeyOfEntity(v)
			target := childAddr
			if keyed {
				target = childKey
			}
			w.writeEntity(target, selSet, v)
			links[i] = store.EntityLink(target)
		default:
			links[i] = store.NullLink()
		}
	}
	return store.ListLink(links)
}

func (w *writeCtx) writeEntity(entityKey string, selSet ast.SelectionSet, data map[string]any) {
	typename, _ := data["__typename"].(string)
	if typename != "" {
		w.store.WriteRecord(entityKey, "__typename", typename)
	}
	fields := CollectFields(w.doc, selSet, w.vars, typename, entityKey, w.store)
	for _, field := range fields {
		w.writeFieldInto(entityKey, field, data)
	}
}
