// Package node defines the vertex model of a traced computation graph.
//
// A traced graph has three kinds of vertex: plain nodes for arbitrary values,
// module nodes for stateful computation units and tensor nodes for tensor
// values. Every node carries an id handed out by a nodeid.Allocator, an
// optional name, the Expr that produced it and the Exprs that consume it.
// Nodes are plain data holders; binding them to live values is the job of
// the binding package.
package node

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/vk/tracegraph/internal/nodeid"
)

// Node is a single vertex of a traced graph. The set of implementations is
// closed: *PlainNode, *ModuleNode and *TensorNode.
type Node interface {
	// ID returns the node's session-unique identifier.
	ID() int
	// Name returns the human-readable label, or "" when the node has none.
	Name() string
	// Producer returns the Expr that created the node, or nil for graph inputs.
	Producer() Expr
	// Users returns the Exprs consuming this node, in the order they were added.
	Users() []Expr
	// AddUser records another consumer of this node.
	AddUser(e Expr)
	// Kind reports which variant the node is.
	Kind() Kind
	// String returns the diagnostic display form, e.g. `%3(Tensor)`.
	String() string

	sealed()
}

// base holds the fields common to every node kind.
type base struct {
	id       int
	name     string
	producer Expr
	users    []Expr
}

func newBase(alloc *nodeid.Allocator, producer Expr, name string) base {
	return base{
		id:       alloc.Next(),
		name:     name,
		producer: producer,
	}
}

func (b *base) ID() int        { return b.id }
func (b *base) Name() string   { return b.name }
func (b *base) Producer() Expr { return b.producer }

func (b *base) Users() []Expr {
	return slices.Clone(b.users)
}

func (b *base) AddUser(e Expr) {
	b.users = append(b.users, e)
}

func (b *base) sealed() {}

// label is the name when set, the id otherwise.
func (b *base) label() string {
	if b.name == "" {
		return strconv.Itoa(b.id)
	}
	return b.name
}

// ref returns the display reference of the node without a kind suffix.
func (b *base) ref() string {
	return "%" + b.label()
}

// PlainNode represents a traced value that is neither a tensor nor a module.
type PlainNode struct {
	base
}

// NewPlain creates a plain node with a freshly allocated id.
func NewPlain(alloc *nodeid.Allocator, producer Expr, name string) *PlainNode {
	return &PlainNode{base: newBase(alloc, producer, name)}
}

// Kind implements Node.
func (n *PlainNode) Kind() Kind { return KindPlain }

func (n *PlainNode) String() string {
	return n.ref()
}

// New creates a node of the given kind with a freshly allocated id. Module
// nodes created this way carry the zero ModuleType until one is bound.
func New(alloc *nodeid.Allocator, kind Kind, producer Expr, name string) (Node, error) {
	switch kind {
	case KindPlain:
		return NewPlain(alloc, producer, name), nil
	case KindModule:
		return NewModule(alloc, producer, name, ModuleType{}), nil
	case KindTensor:
		return NewTensor(alloc, producer, name), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
}

// Restore rebuilds a node of the given kind that carries a previously
// persisted id. The id is reported to alloc before returning so nodes created
// afterwards never reuse it. Ids the allocator cannot reserve are rejected
// with ErrInvalidID.
func Restore(alloc *nodeid.Allocator, kind Kind, id int, producer Expr, name string) (Node, error) {
	b := base{id: id, name: name, producer: producer}

	var n Node
	switch kind {
	case KindPlain:
		n = &PlainNode{base: b}
	case KindModule:
		n = &ModuleNode{base: b}
	case KindTensor:
		n = &TensorNode{base: b}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	if err := alloc.Restore(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidID, err)
	}
	return n, nil
}

// DisplaySuffix is the parenthesised part of n's display form: "Tensor" for
// tensor nodes, the module type name for module nodes and "" for plain nodes.
func DisplaySuffix(n Node) string {
	switch typed := n.(type) {
	case *TensorNode:
		return "Tensor"
	case *ModuleNode:
		return typed.moduleType.Name()
	default:
		return ""
	}
}
