package node

import (
	"slices"

	"github.com/vk/tracegraph/internal/nodeid"
)

// DType names the element type of a tensor.
type DType string

const (
	Float64 DType = "float64"
	Float32 DType = "float32"
	Float16 DType = "float16"
	Int64   DType = "int64"
	Int32   DType = "int32"
	Int16   DType = "int16"
	Int8    DType = "int8"
	Uint8   DType = "uint8"
	Bool    DType = "bool"
)

// IsFloat reports whether d is a floating point element type.
func (d DType) IsFloat() bool {
	switch d {
	case Float64, Float32, Float16:
		return true
	}
	return false
}

// TensorNode represents a traced tensor value. Shape and dtype are snapshots
// taken when the node was last bound to a value; they do not follow later
// changes to that value.
type TensorNode struct {
	base
	shape []int
	dtype DType
	// bound is false until the first snapshot.
	bound bool
}

// NewTensor creates a tensor node with a freshly allocated id.
func NewTensor(alloc *nodeid.Allocator, producer Expr, name string) *TensorNode {
	return &TensorNode{base: newBase(alloc, producer, name)}
}

// Kind implements Node.
func (t *TensorNode) Kind() Kind { return KindTensor }

func (t *TensorNode) String() string {
	return t.ref() + "(Tensor)"
}

// Shape returns a copy of the shape snapshot, or false if never bound.
func (t *TensorNode) Shape() ([]int, bool) {
	if !t.bound {
		return nil, false
	}
	return slices.Clone(t.shape), true
}

// DType returns the element type snapshot, or false if never bound.
func (t *TensorNode) DType() (DType, bool) {
	return t.dtype, t.bound
}

// SetMeta records a shape and dtype snapshot.
func (t *TensorNode) SetMeta(shape []int, dtype DType) {
	t.shape = slices.Clone(shape)
	if t.shape == nil {
		t.shape = []int{}
	}
	t.dtype = dtype
	t.bound = true
}
