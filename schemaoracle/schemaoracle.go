// Package schemaoracle answers the two schema-shaped questions the read
// traversal and the populate transform need: whether a field is nullable,
// and whether a concrete type satisfies a type condition. It is optional.
// A nil *Schema makes callers fall back to the heuristic, schema-less
// paths for fragment matching and partial results.
package schemaoracle

// TypeKind classifies a named type the way GraphQL introspection does.
type TypeKind string

const (
	KindScalar      TypeKind = "SCALAR"
	KindObject      TypeKind = "OBJECT"
	KindInterface   TypeKind = "INTERFACE"
	KindUnion       TypeKind = "UNION"
	KindEnum        TypeKind = "ENUM"
	KindInputObject TypeKind = "INPUT_OBJECT"
)

// TypeRef is a possibly-wrapped type reference: NonNull(List(Named("Todo"))),
// etc. Exactly one of Named or OfType is meaningful depending on Kind.
type TypeRef struct {
	Kind   RefKind
	Named  string
	OfType *TypeRef
}

type RefKind int

const (
	RefNamed RefKind = iota
	RefList
	RefNonNull
)

func Named(name string) *TypeRef   { return &TypeRef{Kind: RefNamed, Named: name} }
func List(of *TypeRef) *TypeRef    { return &TypeRef{Kind: RefList, OfType: of} }
func NonNull(of *TypeRef) *TypeRef { return &TypeRef{Kind: RefNonNull, OfType: of} }
func (t *TypeRef) IsNonNull() bool { return t != nil && t.Kind == RefNonNull }
func (t *TypeRef) IsList() bool {
	if t == nil {
		return false
	}
	if t.Kind == RefList {
		return true
	}
	return t.Kind == RefNonNull && t.OfType != nil && t.OfType.Kind == RefList
}

// Unwrap removes one layer of NonNull or List wrapping.
func (t *TypeRef) Unwrap() *TypeRef {
	if t == nil || t.OfType == nil {
		return t
	}
	return t.OfType
}

// NamedType returns the innermost named type this reference ultimately
// points at.
func (t *TypeRef) NamedType() string {
	for cur := t; cur != nil; cur = cur.OfType {
		if cur.Named != "" {
			return cur.Named
		}
	}
	return ""
}

// Field is a field on an object or interface type.
type Field struct {
	Name string
	Type *TypeRef
}

// Type is a named type in the schema: object, interface, union, scalar,
// enum, or input object. Interfaces and PossibleTypes carry the
// abstract-type membership information IsInterfaceOfType relies on.
type Type struct {
	Name          string
	Kind          TypeKind
	Fields        []*Field
	Interfaces    []string // object/interface: interfaces it implements
	PossibleTypes []string // interface/union: its concrete members
}

func (t *Type) fieldNamed(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Schema is the introspection-derived schema oracle.
type Schema struct {
	QueryType        string
	MutationType     string
	SubscriptionType string
	Types            map[string]*Type
}

// RootTypeName returns the concrete root type name for an operation root
// key ("Query", "Mutation", "Subscription").
func (s *Schema) RootTypeName(rootKey string) string {
	switch rootKey {
	case "Mutation":
		return s.MutationType
	case "Subscription":
		return s.SubscriptionType
	default:
		return s.QueryType
	}
}

// IsFieldNullable reports whether fieldName on typename is nullable. An
// unknown type or field is treated as nullable, which is the conservative
// choice for the read path's partial-result logic: an uncached field the
// oracle can't place is tolerated, not poisoned.
func (s *Schema) IsFieldNullable(typename, fieldName string) bool {
	if s == nil {
		return false
	}
	t := s.Types[typename]
	if t == nil {
		return true
	}
	f := t.fieldNamed(fieldName)
	if f == nil {
		return true
	}
	return !f.Type.IsNonNull()
}

// IsInterfaceOfType reports whether concreteTypename satisfies
// typeCondition: equality, typeCondition naming an interface concrete
// implements, or typeCondition naming a union concrete belongs to.
func (s *Schema) IsInterfaceOfType(typeCondition, concreteTypename string) bool {
	if typeCondition == concreteTypename {
		return true
	}
	if s == nil {
		return false
	}
	concrete := s.Types[concreteTypename]
	if concrete != nil {
		for _, iface := range concrete.Interfaces {
			if iface == typeCondition {
				return true
			}
		}
	}
	if abstract := s.Types[typeCondition]; abstract != nil {
		for _, possible := range abstract.PossibleTypes {
			if possible == concreteTypename {
				return true
			}
		}
	}
	return false
}

// ConcreteTypesOf expands a type condition into the concrete object types
// it denotes: itself if already concrete, or its PossibleTypes if it names
// an interface or union. Used by the populate transform to fan a
// @populate field's return type out into one synthesized fragment per
// implementor/member.
func (s *Schema) ConcreteTypesOf(typeCondition string) []string {
	if s == nil {
		return nil
	}
	t := s.Types[typeCondition]
	if t == nil {
		return nil
	}
	switch t.Kind {
	case KindInterface, KindUnion:
		out := make([]string, len(t.PossibleTypes))
		copy(out, t.PossibleTypes)
		return out
	default:
		return []string{typeCondition}
	}
}

// FieldReturnType returns the type reference of fieldName on typename, or
// nil if either is unknown to the schema.
func (s *Schema) FieldReturnType(typename, fieldName string) *TypeRef {
	if s == nil {
		return nil
	}
	t := s.Types[typename]
	if t == nil {
		return nil
	}
	f := t.fieldNamed(fieldName)
	if f == nil {
		return nil
	}
	return f.Type
}
