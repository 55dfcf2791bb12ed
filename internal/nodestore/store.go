// Package nodestore defines the interface for indexing the nodes a tracing
// session has created or restored.
//
// # Why Node Store Exists
//
// Nodes are reachable from the values they are bound to and, transitively,
// from the graph's Exprs. Neither path answers "which node has id 12?" or
// "which nodes does this session know about?". The node store answers both,
// and it is where a session notices that a restored snapshot reuses an id
// that is already taken.
//
// # Lifecycle and Usage
//
// The node store is:
//  1. **Created** once per tracing session
//  2. **Populated** as the session creates nodes and restores snapshots
//  3. **Queried** when persisting the whole session or resolving a node reference
//  4. **Discarded** when the session ends
package nodestore

import (
	"context"
	"errors"

	"github.com/vk/tracegraph/internal/node"
	"github.com/vk/tracegraph/internal/nodeid"
)

// ErrDuplicateID is returned when a node with the same id is already stored.
var ErrDuplicateID = errors.New("node id already in use")

// Store indexes nodes by id.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use; see internal/inmemorystore
// for the reference implementation.
type Store interface {
	// Add records a node. Adding the same node twice is a no-op; adding a
	// different node with an id already in use fails with ErrDuplicateID.
	Add(ctx context.Context, n node.Node) error

	// Get returns the node with the given id.
	Get(ctx context.Context, id int) (node.Node, bool)

	// Find returns the node a display reference points at. References by
	// name return the lowest id among nodes carrying that name; a reference
	// suffix such as "(Tensor)" must equal the node's display suffix.
	Find(ctx context.Context, ref nodeid.Ref) (node.Node, bool)

	// All returns every stored node ordered by id.
	All(ctx context.Context) []node.Node

	// Len returns the number of stored nodes.
	Len(ctx context.Context) int
}
