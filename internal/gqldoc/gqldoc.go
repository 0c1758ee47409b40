// Package gqldoc provides the selection-set, argument, directive, and
// fragment accessors the write/read traversals and the populate transform
// share, operating directly on github.com/vektah/gqlparser/v2/ast nodes.
// The package never parses GraphQL text itself; it consumes an
// already-parsed document.
package gqldoc

import (
	"fmt"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
)

// RootOperation picks the operation to run from a document: the named one
// if operationName is non-empty, or the sole operation when the document
// defines exactly one and no name was given.
func RootOperation(doc *ast.QueryDocument, operationName string) (*ast.OperationDefinition, error) {
	if operationName == "" {
		if len(doc.Operations) == 1 {
			return doc.Operations[0], nil
		}
		return nil, fmt.Errorf("gqldoc: operation name required, document defines %d operations", len(doc.Operations))
	}
	for _, op := range doc.Operations {
		if op.Name == operationName {
			return op, nil
		}
	}
	return nil, fmt.Errorf("gqldoc: no operation named %q", operationName)
}

// RootKey returns the store root key ("Query", "Mutation", or
// "Subscription") for an operation's type.
func RootKey(op *ast.OperationDefinition) string {
	switch op.Operation {
	case ast.Mutation:
		return "Mutation"
	case ast.Subscription:
		return "Subscription"
	default:
		return "Query"
	}
}

// FieldArguments evaluates a field's argument list against the supplied
// variables, substituting variable references and converting literal
// values to plain Go values. A variable referenced by an argument but
// absent from vars coerces to nil, mirroring GraphQL's treatment of an
// omitted nullable input.
func FieldArguments(args ast.ArgumentList, vars map[string]any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]any, len(args))
	for _, arg := range args {
		out[arg.Name] = ValueToGo(arg.Value, vars)
	}
	return out
}

// ValueToGo converts a parsed AST value to a plain Go value, substituting
// variable references from vars (missing variable ⇒ nil).
func ValueToGo(value *ast.Value, vars map[string]any) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case ast.Variable:
		v, ok := vars[value.Raw]
		if !ok {
			return nil
		}
		return v
	case ast.IntValue:
		if iv, err := strconv.ParseInt(value.Raw, 10, 64); err == nil {
			return iv
		}
		return value.Raw
	case ast.FloatValue:
		if fv, err := strconv.ParseFloat(value.Raw, 64); err == nil {
			return fv
		}
		return value.Raw
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return value.Raw
	case ast.BooleanValue:
		return value.Raw == "true"
	case ast.NullValue:
		return nil
	case ast.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = ValueToGo(c.Value, vars)
		}
		return out
	case ast.ObjectValue:
		out := make(map[string]any, len(value.Children))
		for _, c := range value.Children {
			out[c.Name] = ValueToGo(c.Value, vars)
		}
		return out
	default:
		return nil
	}
}

// ShouldInclude evaluates @skip/@include against vars. A field or fragment
// with neither directive is always included.
func ShouldInclude(directives ast.DirectiveList, vars map[string]any) bool {
	if skip := directives.ForName("skip"); skip != nil {
		if boolArg(skip, vars) {
			return false
		}
	}
	if include := directives.ForName("include"); include != nil {
		if !boolArg(include, vars) {
			return false
		}
	}
	return true
}

func boolArg(d *ast.Directive, vars map[string]any) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false
	}
	v, _ := ValueToGo(arg.Value, vars).(bool)
	return v
}

// HasPopulateDirective reports whether a field carries the bare @populate
// directive (no arguments) used by the populate transform.
func HasPopulateDirective(field *ast.Field) bool {
	return field.Directives.ForName("populate") != nil
}

// FragmentByName looks up a named fragment definition in the document,
// or nil if none exists under that name.
func FragmentByName(doc *ast.QueryDocument, name string) *ast.FragmentDefinition {
	return doc.Fragments.ForName(name)
}

// TypeCondition extracts the type condition a selection narrows to: the
// inline fragment's own condition, or the named fragment's, for a spread.
// Returns "" for a plain field (which has no type condition).
func TypeCondition(sel ast.Selection, doc *ast.QueryDocument) string {
	switch s := sel.(type) {
	case *ast.InlineFragment:
		return s.TypeCondition
	case *ast.FragmentSpread:
		if fd := FragmentByName(doc, s.Name); fd != nil {
			return fd.TypeCondition
		}
	}
	return ""
}
