// Package cache implements the write and read traversals that move data
// between a parsed GraphQL document and a normalized store.Store: WriteQuery
// normalizes a server result into the store, ReadQuery materializes a
// request back out of it, reporting whether the result is complete or only
// partially satisfied.
package cache

import (
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/graphcache-go/graphcache/store"
)

// Request is the parsed document plus variables a write or read operates
// against.
type Request struct {
	Document      *ast.QueryDocument
	OperationName string
	Variables     map[string]any
}

// ReadResult is what a read traversal produces: the materialized data (or
// nil if the read failed outright), whether any nullable field was filled
// with null because of a cache miss, the keys the read touched, and any
// recoverable anomalies encountered along the way.
type ReadResult struct {
	Data         map[string]any
	Partial      bool
	Dependencies map[string]struct{}
	Warnings     []store.Warning
}
