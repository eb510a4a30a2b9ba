package store

import (
	"context"
	"errors"

	"github.com/ontoforge/ontoforge/pkg/common"
)

// ErrUnavailable marks a graph store that cannot be reached. It is fatal
// to the running build; ingestion never silently drops writes.
var ErrUnavailable = errors.New("graph store unavailable")

// NodeRef identifies one node in the graph by its type label and identity
// key. The key is derived from the values of the unique attributes the
// node's entity type declares (see common.Entity.Key).
type NodeRef struct {
	Label string
	Key   string
}

// GraphStorage persists the instance graph. Writes are idempotent
// upserts: a node is keyed by (label, identity key), an edge by
// (label, source, target). Repeating a write refreshes attributes and
// never duplicates.
type GraphStorage interface {
	// UpsertNode creates or refreshes a node. Attributes of an existing
	// node are overwritten with the provided values; attributes not named
	// are left untouched.
	UpsertNode(ctx context.Context, ref NodeRef, attrs map[string]string) error

	// UpsertEdge creates or refreshes an edge between two nodes. Both
	// endpoints must already exist.
	UpsertEdge(ctx context.Context, label string, source NodeRef, target NodeRef, attrs map[string]string) error

	// CountNodes returns the number of nodes with the given label.
	CountNodes(ctx context.Context, label string) (int64, error)

	// CountEdges returns the number of edges with the given label.
	CountEdges(ctx context.Context, label string) (int64, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// CypherRunner is an optional capability of a GraphStorage: executing a
// read-only graph query statement. The natural-language answer path
// prefers this capability when the backing store offers it.
type CypherRunner interface {
	RunCypher(ctx context.Context, stmt string, params map[string]any) ([]map[string]any, error)
}

// ContextRetriever is an optional capability of a GraphStorage: returning
// a text rendering of the stored instances most similar to a question.
// Stores without a query language serve the answer path through this.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, question string, limit int) (string, error)
}

// UnitRecorder is an optional capability of a GraphStorage: persisting the
// text units that produced the graph, for provenance and similarity search.
// Units are recorded in one batch before extraction starts.
type UnitRecorder interface {
	RecordUnits(ctx context.Context, units []common.Unit) error
}
