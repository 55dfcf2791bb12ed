// Package session owns the per-trace state of the tracing layer. A Session
// holds the id allocator, the value-to-node binding table, an index of the
// nodes it created, and the codec used to persist and restore them.
//
// Each forward pass is traced inside exactly one Session. Sessions share no
// mutable state, so several traces may run in parallel in one process
// without external locking.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vk/tracegraph/internal/binding"
	"github.com/vk/tracegraph/internal/ctxlog"
	"github.com/vk/tracegraph/internal/inmemorystore"
	"github.com/vk/tracegraph/internal/node"
	"github.com/vk/tracegraph/internal/nodecodec"
	"github.com/vk/tracegraph/internal/nodeid"
	"github.com/vk/tracegraph/internal/nodestore"
)

// Session is a single tracing run.
type Session struct {
	id       uuid.UUID
	alloc    *nodeid.Allocator
	table    *binding.Table
	store    nodestore.Store
	registry *nodecodec.Registry
	codec    *nodecodec.Codec
	logger   *slog.Logger
}

type options struct {
	startID   int
	registry  *nodecodec.Registry
	codecOpts []nodecodec.Option
}

// Option configures a Session.
type Option func(*options)

// WithStartID makes the session's first allocated id start instead of 0.
func WithStartID(start int) Option {
	return func(o *options) { o.startID = start }
}

// WithRegistry sets the module type registry used when restoring nodes.
func WithRegistry(r *nodecodec.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithCodecOptions passes extra options to the session's codec.
func WithCodecOptions(opts ...nodecodec.Option) Option {
	return func(o *options) { o.codecOpts = append(o.codecOpts, opts...) }
}

// New creates a session. The logger is taken from ctx.
func New(ctx context.Context, opts ...Option) *Session {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = nodecodec.NewRegistry()
	}

	id := uuid.New()
	logger := ctxlog.FromContext(ctx).With("session_id", id.String())
	codecOpts := append([]nodecodec.Option{nodecodec.WithRegistry(o.registry)}, o.codecOpts...)

	s := &Session{
		id:       id,
		alloc:    nodeid.NewAllocator(o.startID),
		table:    binding.NewTable(),
		store:    inmemorystore.New(),
		registry: o.registry,
		codec:    nodecodec.New(codecOpts...),
		logger:   logger,
	}
	logger.Debug("Tracing session created.", "first_id", s.alloc.Peek(), "module_types", o.registry.Len())
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Allocator returns the id allocator owned by the session.
func (s *Session) Allocator() *nodeid.Allocator { return s.alloc }

// Registry returns the module type registry used for restores.
func (s *Session) Registry() *nodecodec.Registry { return s.registry }

// NewNode creates a node of the given kind with a fresh id and records it in
// the session.
func (s *Session) NewNode(ctx context.Context, kind node.Kind, producer node.Expr, name string) (node.Node, error) {
	n, err := node.New(s.alloc, kind, producer, name)
	if err != nil {
		return nil, err
	}
	if err := s.store.Add(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// NewModuleNode creates a module node of the given type with a fresh id and
// records it in the session.
func (s *Session) NewModuleNode(ctx context.Context, producer node.Expr, name string, typ node.ModuleType) (*node.ModuleNode, error) {
	m := node.NewModule(s.alloc, producer, name, typ)
	if err := s.store.Add(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Trace returns the node representing value, creating one of the kind
// WrappedKind reports when value has none yet. A new module node holds value
// as its weak owner when value is a non-nil pointer. Tensors and observers
// are bound to the new node; for other values the node is returned unbound
// and the caller is responsible for keeping it.
func (s *Session) Trace(ctx context.Context, value any, producer node.Expr, name string) (node.Node, error) {
	if n, ok := s.table.Lookup(value); ok {
		return n, nil
	}

	kind := binding.WrappedKind(value)
	factory := func() node.Node {
		if kind == node.KindModule {
			m := node.NewModule(s.alloc, producer, name, node.TypeOf(value))
			if err := node.BindOwnerAny(m, value); err != nil {
				s.logger.Debug("Module node has no owner.", "node", m.String(), "error", err)
			}
			return m
		}
		n, _ := node.New(s.alloc, kind, producer, name)
		return n
	}

	var n node.Node
	switch value.(type) {
	case binding.Tensor, binding.Observer:
		var err error
		n, err = s.table.WrapFunc(value, factory)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("Bound value to new node.", "node", n.String())
	default:
		n = factory()
		s.logger.Debug("Created unbound node for value.", "node", n.String(), "kind", kind.String())
	}
	if err := s.store.Add(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Wrap binds n to value. See binding.Table.Wrap.
func (s *Session) Wrap(value any, n node.Node) error {
	return s.table.Wrap(value, n)
}

// WrapFunc binds a lazily created node to value. See binding.Table.WrapFunc.
func (s *Session) WrapFunc(value any, factory func() node.Node) (node.Node, error) {
	return s.table.WrapFunc(value, factory)
}

// WrapSafe binds an existing node to value. See binding.Table.WrapSafe.
func (s *Session) WrapSafe(value any, n node.Node) error {
	return s.table.WrapSafe(value, n)
}

// Get returns the node bound to value or an error wrapping binding.ErrNotBound.
func (s *Session) Get(value any) (node.Node, error) {
	return s.table.Get(value)
}

// GetOr returns the node bound to value, or def.
func (s *Session) GetOr(value any, def node.Node) node.Node {
	return s.table.GetOr(value, def)
}

// WrappedKind classifies value. See binding.WrappedKind.
func (s *Session) WrappedKind(value any) node.Kind {
	return binding.WrappedKind(value)
}

// Nodes returns every node the session created or restored, ordered by id.
func (s *Session) Nodes(ctx context.Context) []node.Node {
	return s.store.All(ctx)
}

// Find returns the node a display reference such as "%12" or "%conv1" points at.
func (s *Session) Find(ctx context.Context, ref nodeid.Ref) (node.Node, bool) {
	return s.store.Find(ctx, ref)
}

// Persist encodes nodes in the given format. Module owners are not persisted.
func (s *Session) Persist(format nodecodec.Format, nodes []node.Node) ([]byte, error) {
	data, err := s.codec.Marshal(format, nodes)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Persisted nodes.", "count", len(nodes), "format", string(format), "bytes", len(data))
	return data, nil
}

// PersistAll encodes every node the session knows about.
func (s *Session) PersistAll(ctx context.Context, format nodecodec.Format) ([]byte, error) {
	return s.Persist(format, s.store.All(ctx))
}

// Restore decodes persisted nodes into this session. Their ids are reserved
// in the session's allocator before Restore returns. A snapshot that reuses
// the id of a node the session already holds is rejected as a whole.
func (s *Session) Restore(ctx context.Context, format nodecodec.Format, data []byte) ([]node.Node, error) {
	nodes, err := s.codec.Unmarshal(format, s.alloc, data)
	if err != nil {
		s.logger.Warn("Failed to restore nodes.", "format", string(format), "error", err)
		return nil, err
	}
	for _, n := range nodes {
		if held, ok := s.store.Get(ctx, n.ID()); ok {
			err := fmt.Errorf("restoring %s: %w: %d is held by %s", n, nodestore.ErrDuplicateID, n.ID(), held)
			s.logger.Warn("Failed to restore nodes.", "format", string(format), "error", err)
			return nil, err
		}
	}
	for _, n := range nodes {
		if err := s.store.Add(ctx, n); err != nil {
			return nil, err
		}
	}
	s.logger.Debug("Restored nodes.", "count", len(nodes), "next_id", s.alloc.Peek())
	return nodes, nil
}

// Close releases the session's bindings.
func (s *Session) Close(ctx context.Context) error {
	bound := s.table.Len()
	s.table.Reset()
	s.logger.Debug("Tracing session closed.", "released_bindings", bound, "nodes", s.store.Len(ctx))
	return nil
}
