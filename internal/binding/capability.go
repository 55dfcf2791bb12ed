package binding

import "github.com/vk/tracegraph/internal/node"

// Tensor is implemented by tensor-like runtime values.
type Tensor interface {
	Shape() []int
	DType() node.DType
}

// Module is implemented by stateful computation units whose calls are traced.
type Module interface {
	Forward(inputs ...any) ([]any, error)
}

// Observer is implemented by values that keep their own record of the nodes
// wrapping them.
type Observer interface {
	RecordWrappedNode(n node.Node)
}

// WrappedKind returns the node kind that should represent value when a node
// must be created for it.
func WrappedKind(value any) node.Kind {
	switch value.(type) {
	case Tensor:
		return node.KindTensor
	case Module, Observer:
		return node.KindModule
	default:
		return node.KindPlain
	}
}

// wrappable reports whether value may be bound with Wrap.
func wrappable(value any) bool {
	switch value.(type) {
	case Tensor, Observer:
		return true
	default:
		return false
	}
}
