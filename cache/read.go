package cache

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/graphcache-go/graphcache/internal/gqldoc"
	"github.com/graphcache-go/graphcache/store"
)

// readCtx carries the state a single ReadQuery call threads through its
// recursion.
type readCtx struct {
	ctx      context.Context
	doc      *ast.QueryDocument
	vars     map[string]any
	store    *store.Store
	partial  bool
	warnings []store.Warning
}

// ReadQuery materializes req's selection set out of s, per the read
// traversal algorithm: leaf fields come from records, fields with a
// selection set follow links (or a registered resolver) to their child
// entity, and a missing nullable field is absorbed into a null value with
// the partial flag raised rather than failing the whole read.
func ReadQuery(ctx context.Context, s *store.Store, req Request, prior map[string]any) (ReadResult, error) {
	sctx, span := tracer.Start(ctx, "graphcache.read")
	defer span.End()

	op, err := gqldoc.RootOperation(req.Document, req.OperationName)
	if err != nil {
		return ReadResult{}, fmt.Errorf("cache: read: %w", err)
	}
	rootKey := gqldoc.RootKey(op)

	s.InitDependencies()
	defer s.ClearDependencies()

	rc := &readCtx{ctx: sctx, doc: req.Document, vars: req.Variables, store: s}

	var data map[string]any
	var ok bool
	if typename, isEntity := prior["__typename"].(string); isEntity {
		data, ok = rc.readRootMerge(typename, op.SelectionSet, prior)
	} else {
		typename := entityTypename(s, rootKey)
		data, ok = rc.readSelection(rootKey, typename, op.SelectionSet)
	}
	if !ok {
		data = nil
	}
	if rc.partial && fieldCount(data) == 0 {
		data = nil
	}

	deps := s.CurrentDependencies()
	span.SetAttributes(
		attribute.Bool("graphcache.partial", rc.partial),
		attribute.Int("graphcache.dependency_count", len(deps)),
	)
	return ReadResult{Data: data, Partial: rc.partial, Dependencies: deps, Warnings: rc.warnings}, nil
}

func isRootKey(key string) bool {
	return key == "Query" || key == "Mutation" || key == "Subscription"
}

func fieldCount(data map[string]any) int {
	n := 0
	for k := range data {
		if k != "__typename" {
			n++
		}
	}
	return n
}

// readSelection reads every field of selSet against entityKey, returning
// ok=false if an unabsorbed cache miss poisoned the selection.
func (rc *readCtx) readSelection(entityKey, typename string, selSet ast.SelectionSet) (map[string]any, bool) {
	if entityKey == "" {
		return nil, false
	}
	rc.store.AddDependency(entityKey)

	out := make(map[string]any)
	if typename != "" {
		out["__typename"] = typename
	}
	fields := CollectFields(rc.doc, selSet, rc.vars, typename, entityKey, rc.store)
	for _, field := range fields {
		alias := field.Alias
		if alias == "" {
			alias = field.Name
		}
		value, ok := rc.readField(entityKey, typename, field)
		if !ok {
			return nil, false
		}
		out[alias] = value
	}
	return out, true
}

// readField reads one field, applying the schema-driven (or all-or-nothing)
// partial-result absorption at this exact boundary: any failure from below,
// whether a direct cache miss or a poisoned sub-selection, is absorbed into
// a null value with partial=true when the schema says this field is
// nullable, and re-poisons (ok=false) otherwise.
func (rc *readCtx) readField(entityKey, typename string, field *ast.Field) (any, bool) {
	args := gqldoc.FieldArguments(field.Arguments, rc.vars)
	fieldKey := store.KeyOfField(field.Name, args)
	fullKey := store.JoinFieldKey(entityKey, fieldKey)
	if isRootKey(entityKey) {
		rc.store.AddDependency(fullKey)
	}

	value, ok := rc.readFieldRaw(entityKey, typename, field, args, fieldKey, fullKey)
	if ok {
		return value, true
	}
	// No oracle: every uncached field poisons the enclosing selection.
	// With one, absorb the miss into null iff this field is nullable.
	if schema := rc.store.Schema(); schema != nil && schema.IsFieldNullable(typename, field.Name) {
		rc.partial = true
		return nil, true
	}
	return nil, false
}

func (rc *readCtx) readFieldRaw(entityKey, typename string, field *ast.Field, args map[string]any, fieldKey, fullKey string) (any, bool) {
	if resolver, hasResolver := rc.store.ResolverFor(typename, field.Name); hasResolver {
		return rc.readResolved(entityKey, field, resolver, args, fieldKey, fullKey)
	}

	if field.SelectionSet == nil {
		return rc.store.GetRecord(entityKey, fieldKey)
	}

	if link, hasLink := rc.store.GetLink(fullKey); hasLink {
		return rc.readLink(link, fullKey, field.SelectionSet)
	}
	if rc.store.HasRecord(fullKey) {
		// An embedded single value has no link entry: the write path
		// addresses it directly by fullKey instead (writeMapping's
		// unkeyed branch). Descend into it the same way a keyed entity
		// link would, rooted at fullKey rather than an entity key.
		return rc.readSelection(fullKey, entityTypename(rc.store, fullKey), field.SelectionSet)
	}
	if legacy, ok := rc.store.GetRecord(entityKey, fieldKey); ok {
		if legacy == nil {
			return nil, true
		}
		if m, ok := legacy.(map[string]any); ok {
			return m, true
		}
	}
	return nil, false
}

func (rc *readCtx) readLink(link store.Link, fullKey string, selSet ast.SelectionSet) (any, bool) {
	switch link.Kind {
	case store.LinkNull:
		return nil, true
	case store.LinkEntity:
		typename := entityTypename(rc.store, link.Key)
		return rc.readSelection(link.Key, typename, selSet)
	case store.LinkList:
		out := make([]any, len(link.Items))
		for i, item := range link.Items {
			childFullKey := store.JoinFieldKey(fullKey, strconv.Itoa(i))
			v, ok := rc.readLink(item, childFullKey, selSet)
			if !ok {
				return nil, false
			}
			out[i] = v
		}
		return out, true
	default:
		return nil, true
	}
}

// readResolved runs a registered resolver and interprets its tagged-variant
// result.
func (rc *readCtx) readResolved(entityKey string, field *ast.Field, resolver store.Resolver, args map[string]any, fieldKey, fullKey string) (any, bool) {
	raw, hasRaw := rc.store.GetRecord(entityKey, fieldKey)
	parent := store.NewParent(entityKey, raw, hasRaw)
	result := resolver(rc.ctx, parent, args, store.NewReadFacade(rc.store))

	if field.SelectionSet == nil {
		switch result.Kind {
		case store.ResolverScalar:
			return result.Scalar, true
		case store.ResolverMissing:
			return nil, false
		default:
			rc.warn(fullKey, "resolver returned a non-scalar value for a field with no selection set")
			return nil, false
		}
	}

	switch result.Kind {
	case store.ResolverMissing:
		return nil, false
	case store.ResolverScalar:
		if result.Scalar == nil {
			return nil, true
		}
		rc.warn(fullKey, "resolver returned a scalar where a selection set was expected")
		return nil, false
	case store.ResolverEntityRef:
		typename := entityTypename(rc.store, result.Key)
		return rc.readSelection(result.Key, typename, field.SelectionSet)
	case store.ResolverEmbedded:
		target := fullKey
		if key, keyed := rc.store.KeyOfEntity(result.Entity); keyed {
			target = key
		}
		typename, _ := result.Entity["__typename"].(string)
		if typename == "" {
			typename = entityTypename(rc.store, target)
		}
		return rc.readSelection(target, typename, field.SelectionSet)
	case store.ResolverList:
		out := make([]any, len(result.Items))
		for i, item := range result.Items {
			childFullKey := store.JoinFieldKey(fullKey, strconv.Itoa(i))
			v, ok := rc.readResolverItem(item, childFullKey, field.SelectionSet)
			if !ok {
				return nil, false
			}
			out[i] = v
		}
		return out, true
	default:
		return nil, false
	}
}

// readResolverItem interprets one element of a ResolverList result, using
// fallbackKey (joinKeys(fullKey, index)) as the embedded-continuation
// address when the item itself has no stable entity key of its own.
func (rc *readCtx) readResolverItem(item store.ResolverResult, fallbackKey string, selSet ast.SelectionSet) (any, bool) {
	switch item.Kind {
	case store.ResolverMissing:
		return nil, false
	case store.ResolverScalar:
		return item.Scalar, true
	case store.ResolverEntityRef:
		typename := entityTypename(rc.store, item.Key)
		return rc.readSelection(item.Key, typename, selSet)
	case store.ResolverEmbedded:
		target := fallbackKey
		if key, keyed := rc.store.KeyOfEntity(item.Entity); keyed {
			target = key
		}
		typename, _ := item.Entity["__typename"].(string)
		if typename == "" {
			typename = entityTypename(rc.store, target)
		}
		return rc.readSelection(target, typename, selSet)
	case store.ResolverList:
		out := make([]any, len(item.Items))
		for i, nested := range item.Items {
			v, ok := rc.readResolverItem(nested, store.JoinFieldKey(fallbackKey, strconv.Itoa(i)), selSet)
			if !ok {
				return nil, false
			}
			out[i] = v
		}
		return out, true
	default:
		return nil, false
	}
}

func (rc *readCtx) warn(path, message string) {
	rc.warnings = append(rc.warnings, store.Warning{
		Kind:    store.WarnInvalidResolverReturn,
		Path:    path,
		Message: message,
	})
}

// readRootMerge reads against a previously materialized result tree
// instead of from the root key, preserving its shape: scalar and null
// sub-fields are kept as-is, and only sub-fields whose value resolves
// against a real, still-keyable entity are re-read from the store.
func (rc *readCtx) readRootMerge(typename string, selSet ast.SelectionSet, prior map[string]any) (map[string]any, bool) {
	entityKey, ok := rc.store.KeyOfEntity(prior)
	if !ok {
		entityKey = typename
	}
	fields := CollectFields(rc.doc, selSet, rc.vars, typename, entityKey, rc.store)

	out := make(map[string]any, len(prior))
	out["__typename"] = typename
	for _, field := range fields {
		alias := field.Alias
		if alias == "" {
			alias = field.Name
		}
		priorValue, has := prior[alias]
		if !has || field.SelectionSet == nil {
			if has {
				out[alias] = priorValue
			} else {
				v, ok := rc.readField(entityKey, typename, field)
				if !ok {
					return nil, false
				}
				out[alias] = v
			}
			continue
		}

		switch v := priorValue.(type) {
		case nil:
			out[alias] = nil
		case map[string]any:
			if childTypename, ok := v["__typename"].(string); ok {
				merged, ok := rc.readRootMerge(childTypename, field.SelectionSet, v)
				if !ok {
					out[alias] = v
					continue
				}
				out[alias] = merged
			} else {
				out[alias] = v
			}
		default:
			out[alias] = v
		}
	}
	return out, true
}
