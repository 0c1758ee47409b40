package store

// ResolverKind tags the shape of value a Resolver produced. Rather than
// dispatch on the dynamic type of a returned any, resolvers return one of
// these explicitly.
type ResolverKind int

const (
	// ResolverMissing means the resolver has no value for this field; the
	// read path treats it exactly like an uncached field.
	ResolverMissing ResolverKind = iota
	// ResolverScalar carries a leaf value for a field with no selection set.
	ResolverScalar
	// ResolverEntityRef carries an already-known entity key (a string the
	// resolver computed itself, e.g. via Parent or a GetField lookup).
	ResolverEntityRef
	// ResolverEmbedded carries an entity-shaped mapping to continue reading
	// against (keyed if it carries a __typename+id, embedded otherwise).
	ResolverEmbedded
	// ResolverList carries a list of nested ResolverResult values, for a
	// field whose return type is a list.
	ResolverList
)

// ResolverResult is the tagged-variant value a Resolver returns. Exactly
// one field beyond Kind is meaningful, selected by Kind.
type ResolverResult struct {
	Kind   ResolverKind
	Scalar any
	Key    string           // ResolverEntityRef
	Entity map[string]any   // ResolverEmbedded
	Items  []ResolverResult // ResolverList
}

// Missing constructs the cache-miss resolver result.
func Missing() ResolverResult { return ResolverResult{Kind: ResolverMissing} }

// Scalar constructs a leaf-value resolver result. A nil value is a valid
// scalar result (an explicit null), distinct from Missing.
func Scalar(v any) ResolverResult { return ResolverResult{Kind: ResolverScalar, Scalar: v} }

// EntityRef constructs a resolver result pointing at an already-known
// entity key.
func EntityRef(key string) ResolverResult { return ResolverResult{Kind: ResolverEntityRef, Key: key} }

// Embedded constructs a resolver result carrying an entity-shaped mapping
// to recurse into.
func Embedded(entity map[string]any) ResolverResult {
	return ResolverResult{Kind: ResolverEmbedded, Entity: entity}
}

// List constructs a resolver result carrying a list of nested results.
func List(items []ResolverResult) ResolverResult {
	return ResolverResult{Kind: ResolverList, Items: items}
}

// WarningKind classifies a recoverable read-path anomaly.
type WarningKind int

const (
	// WarnInvalidResolverReturn fires when a resolver returned a scalar
	// where a selection set was expected, or an entity where a scalar was
	// expected.
	WarnInvalidResolverReturn WarningKind = iota
)

// Warning is a recoverable, non-fatal anomaly surfaced alongside a read
// result. Warnings never abort a read; the offending field is simply
// treated as missing.
type Warning struct {
	Kind    WarningKind
	Path    string // fully-qualified store key (entity key joined with field key) of the offending field
	Message string
}
