package binding

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/vk/tracegraph/internal/node"
)

// Table is an identity-keyed association from runtime values to nodes, owned
// by a single tracing session. Its methods are safe for concurrent use, and
// tensor metadata snapshots are written under the table's lock, so concurrent
// wraps onto one TensorNode do not race. Nodes themselves are not
// synchronized: reading a node's metadata while another goroutine wraps it is
// a data race. Observer callbacks run outside the lock.
type Table struct {
	mu    sync.RWMutex
	nodes map[any]node.Node // Key: the value itself, always a non-nil pointer.
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{nodes: make(map[any]node.Node)}
}

// Wrap binds n to value, replacing any previous binding. A tensor value must
// be wrapped by a *node.TensorNode, which receives a shape/dtype snapshot; an
// Observer value is told about n before the binding is stored.
func (t *Table) Wrap(value any, n node.Node) error {
	if err := checkValue("wrap", value); err != nil {
		return err
	}
	return t.bind("wrap", value, n)
}

// WrapFunc is Wrap with a deferred node: factory is only invoked once value
// has been accepted, so no id is allocated for a rejected value.
func (t *Table) WrapFunc(value any, factory func() node.Node) (node.Node, error) {
	if err := checkValue("wrap", value); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, preconditionf("wrap", "nil node factory")
	}
	n := factory()
	if isNilNode(n) {
		return nil, preconditionf("wrap", "node factory for %T returned no node", value)
	}
	if err := t.bind("wrap", value, n); err != nil {
		return nil, err
	}
	return n, nil
}

// WrapSafe binds an existing node to value. Besides the checks of Wrap it
// requires n to be of the kind WrappedKind reports for value.
func (t *Table) WrapSafe(value any, n node.Node) error {
	if err := checkValue("wrap_safe", value); err != nil {
		return err
	}
	if isNilNode(n) {
		return preconditionf("wrap_safe", "nil node for %T", value)
	}
	if want := WrappedKind(value); n.Kind() != want {
		return preconditionf("wrap_safe", "%s node cannot wrap %T, want %s", n.Kind(), value, want)
	}
	return t.bind("wrap_safe", value, n)
}

func (t *Table) bind(op string, value any, n node.Node) error {
	if isNilNode(n) {
		return preconditionf(op, "nil node for %T", value)
	}

	var (
		tn    *node.TensorNode
		shape []int
		dtype node.DType
	)
	if tv, ok := value.(Tensor); ok {
		if tn, ok = n.(*node.TensorNode); !ok {
			return preconditionf(op, "tensor %T needs a tensor node, got %s", value, n)
		}
		shape, dtype = tv.Shape(), tv.DType()
		for _, d := range shape {
			if d < 0 {
				return preconditionf(op, "tensor %T has negative dimension in shape %v", value, shape)
			}
		}
	}

	if tn != nil {
		t.mu.Lock()
		tn.SetMeta(shape, dtype)
		t.mu.Unlock()
	}

	if obs, ok := value.(Observer); ok {
		obs.RecordWrappedNode(n)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[value] = n
	return nil
}

// Get returns the node bound to value, or an error wrapping ErrNotBound.
func (t *Table) Get(value any) (node.Node, error) {
	n, ok := t.Lookup(value)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotBound, value)
	}
	return n, nil
}

// GetOr returns the node bound to value, or def when there is none.
func (t *Table) GetOr(value any, def node.Node) node.Node {
	if n, ok := t.Lookup(value); ok {
		return n
	}
	return def
}

// Lookup returns the node bound to value and whether one exists.
func (t *Table) Lookup(value any) (node.Node, bool) {
	if !isIdentityKey(value) {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[value]
	return n, ok
}

// Unbind removes the binding of value, reporting whether one existed.
func (t *Table) Unbind(value any) bool {
	if !isIdentityKey(value) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.nodes[value]
	delete(t.nodes, value)
	return ok
}

// Len returns the number of bound values.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Reset drops every binding, releasing the table's references to values.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.nodes)
}

func checkValue(op string, value any) error {
	if !wrappable(value) {
		return preconditionf(op, "%T is neither a tensor nor an observer", value)
	}
	if !isIdentityKey(value) {
		return preconditionf(op, "%T has no identity, wrap a non-nil pointer", value)
	}
	return nil
}

// isIdentityKey reports whether value can key the table by identity.
func isIdentityKey(value any) bool {
	if value == nil {
		return false
	}
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Pointer && !rv.IsNil()
}

func isNilNode(n node.Node) bool {
	if n == nil {
		return true
	}
	rv := reflect.ValueOf(n)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
