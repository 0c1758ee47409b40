// Package introspection builds a *schemaoracle.Schema from a standard
// GraphQL introspection query response, the JSON shape produced by the
// canonical `{ __schema { ... } }` query. A schemaoracle.Schema can also be
// built directly as a struct literal. A cache configured without a schema
// oracle falls back to the
// heuristic fragment-matching and all-or-nothing partial-result rules for
// the schema-less case.
package introspection

import (
	"encoding/json"
	"fmt"

	"github.com/graphcache-go/graphcache/schemaoracle"
)

// wire types mirror the introspection response shape one-to-one; they
// exist only to drive encoding/json's decode and are not exported.
type wireResult struct {
	Data struct {
		Schema wireSchema `json:"__schema"`
	} `json:"data"`
	// Some servers (and most snapshot fixtures) omit the "data" envelope
	// and return the __schema object directly; support both.
	Schema *wireSchema `json:"__schema"`
}

type wireSchema struct {
	QueryType        *wireTypeRefName `json:"queryType"`
	MutationType     *wireTypeRefName `json:"mutationType"`
	SubscriptionType *wireTypeRefName `json:"subscriptionType"`
	Types            []wireType       `json:"types"`
}

type wireTypeRefName struct {
	Name string `json:"name"`
}

type wireType struct {
	Kind          string            `json:"kind"`
	Name          string            `json:"name"`
	Fields        []wireField       `json:"fields"`
	Interfaces    []wireTypeRefName `json:"interfaces"`
	PossibleTypes []wireTypeRefName `json:"possibleTypes"`
}

type wireField struct {
	Name string      `json:"name"`
	Type wireTypeRef `json:"type"`
}

type wireTypeRef struct {
	Kind   string       `json:"kind"`
	Name   string       `json:"name"`
	OfType *wireTypeRef `json:"ofType"`
}

func (r *wireTypeRef) toTypeRef() *schemaoracle.TypeRef {
	if r == nil {
		return nil
	}
	switch r.Kind {
	case "NON_NULL":
		return schemaoracle.NonNull(r.OfType.toTypeRef())
	case "LIST":
		return schemaoracle.List(r.OfType.toTypeRef())
	default:
		return schemaoracle.Named(r.Name)
	}
}

// FromJSON parses a GraphQL introspection response into a schema oracle.
func FromJSON(data []byte) (*schemaoracle.Schema, error) {
	var wire wireResult
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("introspection: decode response: %w", err)
	}
	sch := wire.Schema
	if sch == nil {
		sch = &wire.Data.Schema
	}
	if sch.QueryType == nil {
		return nil, fmt.Errorf("introspection: response has no queryType")
	}

	out := &schemaoracle.Schema{
		QueryType: sch.QueryType.Name,
		Types:     make(map[string]*schemaoracle.Type, len(sch.Types)),
	}
	if sch.MutationType != nil {
		out.MutationType = sch.MutationType.Name
	}
	if sch.SubscriptionType != nil {
		out.SubscriptionType = sch.SubscriptionType.Name
	}

	for _, wt := range sch.Types {
		t := &schemaoracle.Type{
			Name: wt.Name,
			Kind: schemaoracle.TypeKind(wt.Kind),
		}
		for _, wf := range wt.Fields {
			t.Fields = append(t.Fields, &schemaoracle.Field{
				Name: wf.Name,
				Type: wf.Type.toTypeRef(),
			})
		}
		for _, wi := range wt.Interfaces {
			t.Interfaces = append(t.Interfaces, wi.Name)
		}
		for _, wp := range wt.PossibleTypes {
			t.PossibleTypes = append(t.PossibleTypes, wp.Name)
		}
		out.Types[t.Name] = t
	}

	return out, nil
}
