// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the nodestore.Store interface.
//
// # Concurrency Model
//
// Nodes are kept in a sync.Map keyed by id. Each id is written once and read
// many times, which is the access pattern sync.Map is optimized for.
package inmemorystore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vk/tracegraph/internal/node"
	"github.com/vk/tracegraph/internal/nodeid"
	"github.com/vk/tracegraph/internal/nodestore"
)

// Store is an in-memory implementation of nodestore.Store.
type Store struct {
	nodes sync.Map // Key: node id (int), Value: node.Node
}

// New creates a new, empty in-memory node store.
func New() nodestore.Store {
	return &Store{}
}

// Add records a node under its id.
func (s *Store) Add(ctx context.Context, n node.Node) error {
	existing, loaded := s.nodes.LoadOrStore(n.ID(), n)
	if loaded && existing.(node.Node) != n {
		return fmt.Errorf("%w: %d is held by %s", nodestore.ErrDuplicateID, n.ID(), existing.(node.Node))
	}
	return nil
}

// Get retrieves the node with the given id.
func (s *Store) Get(ctx context.Context, id int) (node.Node, bool) {
	v, ok := s.nodes.Load(id)
	if !ok {
		return nil, false
	}
	return v.(node.Node), true
}

// Find resolves a display reference. A suffix in the reference must equal the
// node's display suffix.
func (s *Store) Find(ctx context.Context, ref nodeid.Ref) (node.Node, bool) {
	if !ref.ByName() {
		n, ok := s.Get(ctx, ref.ID)
		if !ok || !ref.Matches(n.ID(), n.Name(), node.DisplaySuffix(n)) {
			return nil, false
		}
		return n, true
	}
	var found node.Node
	s.nodes.Range(func(_, v any) bool {
		n := v.(node.Node)
		if ref.Matches(n.ID(), n.Name(), node.DisplaySuffix(n)) && (found == nil || n.ID() < found.ID()) {
			found = n
		}
		return true
	})
	return found, found != nil
}

// All returns every node ordered by id.
func (s *Store) All(ctx context.Context) []node.Node {
	var nodes []node.Node
	s.nodes.Range(func(_, v any) bool {
		nodes = append(nodes, v.(node.Node))
		return true
	})
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	return nodes
}

// Len returns the number of stored nodes.
func (s *Store) Len(ctx context.Context) int {
	count := 0
	s.nodes.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
