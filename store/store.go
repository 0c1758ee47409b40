// Package store implements the normalized entity/record store: a records
// table, a links table, user-registered resolvers and updaters, and the
// per-call dependency capture side channel. It holds no traversal logic of
// its own. Reading a request back out of the store and writing a result
// into it live in the sibling cache package, against the methods this
// package exposes.
package store

import (
	"context"
	"fmt"

	"github.com/graphcache-go/graphcache/internal/cachekey"
	"github.com/graphcache-go/graphcache/schemaoracle"
)

// Record is the flat field-key-to-scalar mapping stored under one entity
// key.
type Record map[string]any

// rootTypenames are the operation-root entity keys; a value carrying one
// of these as __typename addresses a root, not a keyed or embedded entity.
var rootTypenames = map[string]bool{
	"Query":        true,
	"Mutation":     true,
	"Subscription": true,
}

// Store is the normalized record/link table plus the resolver, updater,
// and schema-oracle configuration a cache is built with.
type Store struct {
	records map[string]Record // entity key -> Record
	links   map[string]Link   // joinKeys(entityKey, fieldKey) -> Link

	resolvers map[string]map[string]Resolver // typename -> field name -> Resolver
	updaters  map[string]map[string]Updater  // root key -> field name -> Updater

	schema *schemaoracle.Schema

	dep *DependencyCapture
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithResolvers registers per-(typename, field) resolvers.
func WithResolvers(resolvers map[string]map[string]Resolver) Option {
	return func(s *Store) { s.resolvers = resolvers }
}

// WithUpdaters registers per-(operation root, field) updaters.
func WithUpdaters(updaters map[string]map[string]Updater) Option {
	return func(s *Store) { s.updaters = updaters }
}

// WithSchema attaches a schema oracle. Without one, the read path falls
// back to heuristic fragment-matching and all-or-nothing partial results.
func WithSchema(schema *schemaoracle.Schema) Option {
	return func(s *Store) { s.schema = schema }
}

// New constructs an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		records:   make(map[string]Record),
		links:     make(map[string]Link),
		resolvers: make(map[string]map[string]Resolver),
		updaters:  make(map[string]map[string]Updater),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schema returns the configured schema oracle, or nil.
func (s *Store) Schema() *schemaoracle.Schema { return s.schema }

// KeyOfEntity computes the entity key for a would-be entity value: its
// root key if __typename names an operation root, "<Typename>:<id>" if an
// id/_id is present, or ok=false if the value is embedded (no stable key).
func (s *Store) KeyOfEntity(data map[string]any) (key string, ok bool) {
	typename, _ := data["__typename"].(string)
	if typename == "" {
		return "", false
	}
	if rootTypenames[typename] {
		return typename, true
	}
	id, present := data["id"]
	if !present {
		id, present = data["_id"]
	}
	if !present || id == nil {
		return "", false
	}
	return fmt.Sprintf("%s:%v", typename, id), true
}

// GetRecord reads a single field-key out of entityKey's record.
func (s *Store) GetRecord(entityKey, fieldKey string) (any, bool) {
	rec, ok := s.records[entityKey]
	if !ok {
		return nil, false
	}
	v, ok := rec[fieldKey]
	return v, ok
}

// WriteRecord writes a scalar into entityKey's record under fieldKey,
// creating the record if this is the entity's first write.
func (s *Store) WriteRecord(entityKey, fieldKey string, value any) {
	rec, ok := s.records[entityKey]
	if !ok {
		rec = make(Record)
		s.records[entityKey] = rec
	}
	rec[fieldKey] = value
}

// GetField is a convenience over GetRecord that computes the field-key
// from a field name and its (already variable-substituted) arguments.
func (s *Store) GetField(entityKey, name string, args map[string]any) (any, bool) {
	return s.GetRecord(entityKey, cachekey.KeyOfField(name, args))
}

// GetLink reads the link stored at the fully-qualified key
// joinKeys(entityKey, fieldKey).
func (s *Store) GetLink(fullKey string) (Link, bool) {
	l, ok := s.links[fullKey]
	return l, ok
}

// WriteLink writes a link at the fully-qualified key
// joinKeys(entityKey, fieldKey).
func (s *Store) WriteLink(fullKey string, link Link) {
	s.links[fullKey] = link
}

// HasField reports whether entityKey has a record field or a link under
// fieldKey. It backs the no-schema fragment-matching heuristic in spec
// §4.5: "every field in the fragment's selection is already present in
// the store under the current entity key".
func (s *Store) HasField(entityKey, fieldKey string) bool {
	if rec, ok := s.records[entityKey]; ok {
		if _, ok := rec[fieldKey]; ok {
			return true
		}
	}
	_, ok := s.links[JoinFieldKey(entityKey, fieldKey)]
	return ok
}

// HasRecord reports whether entityKey has a record at all, keyed or
// embedded. The write path addresses an embedded single value by the
// fully-qualified field key of the field that held it rather than by a
// link, so this is how the read path recognizes that address as holding
// an embedded entity instead of a plain missing field.
func (s *Store) HasRecord(entityKey string) bool {
	_, ok := s.records[entityKey]
	return ok
}

// JoinFieldKey composes an entity key and a field-key into the
// fully-qualified key the link table is indexed by.
func JoinFieldKey(entityKey, fieldKey string) string {
	return cachekey.JoinKeys(entityKey, fieldKey)
}

// KeyOfField computes the canonical field-key for a field name and its
// arguments. Re-exported from cachekey so callers outside this module
// never need to import the internal package directly.
func KeyOfField(name string, args map[string]any) string {
	return cachekey.KeyOfField(name, args)
}

// ResolverFor looks up the resolver registered for (typename, fieldName).
func (s *Store) ResolverFor(typename, fieldName string) (Resolver, bool) {
	byField, ok := s.resolvers[typename]
	if !ok {
		return nil, false
	}
	r, ok := byField[fieldName]
	return r, ok
}

// UpdaterFor looks up the updater registered for (rootKey, fieldName).
func (s *Store) UpdaterFor(rootKey, fieldName string) (Updater, bool) {
	byField, ok := s.updaters[rootKey]
	if !ok {
		return nil, false
	}
	u, ok := byField[fieldName]
	return u, ok
}

// InitDependencies begins a new dependency capture for the call about to
// run. A read or write owns the capture channel exclusively for its
// duration. Calling InitDependencies while one is already active is a
// programming error (a nested read/write), not a recoverable runtime
// condition, so it panics rather than silently clobbering the outer call's
// keys.
func (s *Store) InitDependencies() {
	if s.dep != nil {
		panic("store: nested dependency capture (a read/write was invoked while another was still active)")
	}
	s.dep = NewDependencyCapture()
}

// AddDependency records key as touched by the active capture. A no-op if
// no capture is active.
func (s *Store) AddDependency(key string) {
	if s.dep != nil {
		s.dep.Add(key)
	}
}

// CurrentDependencies returns the active capture's keys, or nil if no
// capture is active.
func (s *Store) CurrentDependencies() map[string]struct{} {
	if s.dep == nil {
		return nil
	}
	return s.dep.Keys()
}

// ClearDependencies ends the active capture.
func (s *Store) ClearDependencies() {
	s.dep = nil
}

// ReadFacade is the read-only handle given to Resolver implementations.
// Resolvers never mutate the store; they receive this read-only view,
// which offers no write methods. Updaters get the broader WriteFacade
// below instead.
type ReadFacade struct {
	store *Store
}

func newReadFacade(s *Store) *ReadFacade { return &ReadFacade{store: s} }

// NewReadFacade constructs the read-only handle a Resolver is invoked
// with. Exported so the read traversal (package cache) can build one.
func NewReadFacade(s *Store) *ReadFacade { return newReadFacade(s) }

func (f *ReadFacade) KeyOfEntity(data map[string]any) (string, bool) {
	return f.store.KeyOfEntity(data)
}

func (f *ReadFacade) GetField(entityKey, name string, args map[string]any) (any, bool) {
	return f.store.GetField(entityKey, name, args)
}

func (f *ReadFacade) GetLink(entityKey, name string, args map[string]any) (Link, bool) {
	fullKey := JoinFieldKey(entityKey, KeyOfField(name, args))
	return f.store.GetLink(fullKey)
}

// WriteFacade is the handle given to Updater implementations: everything
// a ReadFacade offers, plus the ability to write records/links and
// invalidate an entity so subsequent reads treat it as a cache miss.
type WriteFacade struct {
	ReadFacade
}

func newWriteFacade(s *Store) *WriteFacade { return &WriteFacade{ReadFacade: *newReadFacade(s)} }

// NewWriteFacade constructs the handle an Updater is invoked with.
// Exported so the write traversal (package cache) can build one.
func NewWriteFacade(s *Store) *WriteFacade { return newWriteFacade(s) }

func (f *WriteFacade) WriteRecord(entityKey, name string, args map[string]any, value any) {
	f.store.WriteRecord(entityKey, KeyOfField(name, args), value)
}

func (f *WriteFacade) WriteLink(entityKey, name string, args map[string]any, link Link) {
	f.store.WriteLink(JoinFieldKey(entityKey, KeyOfField(name, args)), link)
}

// Invalidate removes entityKey's record entirely, so a subsequent read
// observes a cache miss for every field previously written on it. Links
// rooted elsewhere that point at entityKey are left as-is; this only
// clears the entity's own record, not any list or parent pointing at it.
func (f *WriteFacade) Invalidate(entityKey string) {
	delete(f.store.records, entityKey)
}

// Resolver is the client-supplied field resolution hook.
type Resolver func(ctx context.Context, parent Parent, args map[string]any, facade *ReadFacade) ResolverResult

// Updater runs after a write completes at an operation root for a given
// field, with the opportunity to invalidate or rewrite entries.
type Updater func(ctx context.Context, result any, args map[string]any, facade *WriteFacade)

// Parent is what a Resolver sees about the field it was invoked for: the
// owning entity's key, and the scalar already cached for this field's
// own field key, if any. No other sibling field is exposed.
type Parent struct {
	EntityKey string
	raw       any
	hasRaw    bool
}

// Raw returns the scalar stored in the owning entity's record for this
// field, if a write had put one there before the resolver ran.
func (p Parent) Raw() (any, bool) { return p.raw, p.hasRaw }

// NewParent constructs a Parent carrying the entity's already-cached raw
// scalar for this field, if any. Callers outside this package (the read
// traversal) use this rather than constructing a Parent literal, since
// Raw's backing fields are private.
func NewParent(entityKey string, raw any, hasRaw bool) Parent {
	return Parent{EntityKey: entityKey, raw: raw, hasRaw: hasRaw}
}
