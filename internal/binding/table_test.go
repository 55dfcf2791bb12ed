package binding

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/tracegraph/internal/node"
	"github.com/vk/tracegraph/internal/nodeid"
)

type fakeTensor struct {
	shape []int
	dtype node.DType
}

func (f *fakeTensor) Shape() []int      { return f.shape }
func (f *fakeTensor) DType() node.DType { return f.dtype }

// scalar is a tensor with value receivers, so it has no identity of its own.
type scalar struct{}

func (scalar) Shape() []int      { return nil }
func (scalar) DType() node.DType { return node.Float32 }

// tracer is a module that keeps track of the nodes wrapping it.
type tracer struct {
	recorded []node.Node
}

func (b *tracer) RecordWrappedNode(n node.Node)         { b.recorded = append(b.recorded, n) }
func (b *tracer) Forward(inputs ...any) ([]any, error) { return inputs, nil }

type dense struct {
	weights []float32
}

func (d *dense) Forward(inputs ...any) ([]any, error) { return inputs, nil }

type point struct{ x, y int }

func newAlloc() *nodeid.Allocator { return nodeid.NewAllocator(0) }

func TestWrap_GetReturnsSameNode(t *testing.T) {
	table := NewTable()
	value := &fakeTensor{shape: []int{1}, dtype: node.Int32}
	n := node.NewTensor(newAlloc(), nil, "")

	require.NoError(t, table.Wrap(value, n))

	got, err := table.Get(value)
	require.NoError(t, err)
	assert.Same(t, n, got)
}

func TestWrap_SnapshotsTensorMeta(t *testing.T) {
	table := NewTable()
	value := &fakeTensor{shape: []int{2, 3}, dtype: node.Float32}
	n := node.NewTensor(newAlloc(), nil, "")

	require.NoError(t, table.Wrap(value, n))

	shape, ok := n.Shape()
	require.True(t, ok)
	assert.Equal(t, []int{2, 3}, shape)
	dtype, ok := n.DType()
	require.True(t, ok)
	assert.Equal(t, node.Float32, dtype)

	// The snapshot goes stale until the value is wrapped again.
	value.shape = []int{6}
	shape, _ = n.Shape()
	assert.Equal(t, []int{2, 3}, shape)

	require.NoError(t, table.Wrap(value, n))
	shape, _ = n.Shape()
	assert.Equal(t, []int{6}, shape)
}

func TestWrap_NotifiesObserver(t *testing.T) {
	table := NewTable()
	value := &tracer{}
	alloc := newAlloc()
	first := node.NewModule(alloc, nil, "", node.TypeOf(value))
	second := node.NewModule(alloc, nil, "", node.TypeOf(value))

	require.NoError(t, table.Wrap(value, first))
	require.NoError(t, table.Wrap(value, second))

	require.Len(t, value.recorded, 2)
	assert.Same(t, first, value.recorded[0])
	assert.Same(t, second, value.recorded[1])
}

func TestWrap_RebindingReplacesNode(t *testing.T) {
	table := NewTable()
	value := &fakeTensor{shape: []int{4}, dtype: node.Uint8}
	alloc := newAlloc()
	n1 := node.NewTensor(alloc, nil, "")
	n2 := node.NewTensor(alloc, nil, "")

	require.NoError(t, table.Wrap(value, n1))
	require.NoError(t, table.Wrap(value, n2))

	got, err := table.Get(value)
	require.NoError(t, err)
	assert.Same(t, n2, got)
	assert.NotSame(t, n1, got)
	assert.Equal(t, 1, table.Len())
}

func TestWrap_KeysByIdentity(t *testing.T) {
	table := NewTable()
	a := &fakeTensor{shape: []int{2}, dtype: node.Float32}
	b := &fakeTensor{shape: []int{2}, dtype: node.Float32}
	n := node.NewTensor(newAlloc(), nil, "")

	require.NoError(t, table.Wrap(a, n))

	_, ok := table.Lookup(b)
	assert.False(t, ok, "an equal but distinct value must not share the binding")
}

func TestWrap_Preconditions(t *testing.T) {
	alloc := newAlloc()
	testCases := []struct {
		name  string
		value any
		node  node.Node
	}{
		{"plain value", &point{1, 2}, node.NewPlain(alloc, nil, "")},
		{"module without observer", &dense{}, node.NewModule(alloc, nil, "", node.ModuleType{})},
		{"nil value", nil, node.NewPlain(alloc, nil, "")},
		{"tensor without identity", scalar{}, node.NewTensor(alloc, nil, "")},
		{"nil tensor pointer", (*fakeTensor)(nil), node.NewTensor(alloc, nil, "")},
		{"nil node", &fakeTensor{}, nil},
		{"typed nil node", &fakeTensor{}, (*node.TensorNode)(nil)},
		{"tensor with plain node", &fakeTensor{}, node.NewPlain(alloc, nil, "")},
		{"negative dimension", &fakeTensor{shape: []int{2, -1}}, node.NewTensor(alloc, nil, "")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			table := NewTable()
			err := table.Wrap(tc.value, tc.node)
			require.ErrorIs(t, err, ErrPrecondition)

			var pe *PreconditionError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "wrap", pe.Op)
			assert.Equal(t, 0, table.Len())
		})
	}
}

func TestWrapFunc_DefersAllocation(t *testing.T) {
	table := NewTable()
	alloc := newAlloc()
	calls := 0
	factory := func() node.Node {
		calls++
		return node.NewTensor(alloc, nil, "")
	}

	_, err := table.WrapFunc(&point{}, factory)
	require.ErrorIs(t, err, ErrPrecondition)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, alloc.Peek(), "no id is allocated for a rejected value")

	value := &fakeTensor{shape: []int{2, 3}, dtype: node.Float16}
	n, err := table.WrapFunc(value, factory)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	got, err := table.Get(value)
	require.NoError(t, err)
	assert.Same(t, n, got)
	shape, ok := got.(*node.TensorNode).Shape()
	require.True(t, ok)
	assert.Equal(t, []int{2, 3}, shape)
}

func TestWrapFunc_FactoryMustProduceNode(t *testing.T) {
	table := NewTable()
	value := &tracer{}

	_, err := table.WrapFunc(value, func() node.Node { return nil })
	require.ErrorIs(t, err, ErrPrecondition)

	_, err = table.WrapFunc(value, func() node.Node { return (*node.ModuleNode)(nil) })
	require.ErrorIs(t, err, ErrPrecondition)

	_, err = table.WrapFunc(value, nil)
	require.ErrorIs(t, err, ErrPrecondition)

	assert.Empty(t, value.recorded)
}

func TestWrapSafe(t *testing.T) {
	alloc := newAlloc()

	t.Run("binds matching kind", func(t *testing.T) {
		table := NewTable()
		value := &tracer{}
		n := node.NewModule(alloc, nil, "", node.TypeOf(value))
		require.NoError(t, table.WrapSafe(value, n))

		got, err := table.Get(value)
		require.NoError(t, err)
		assert.Same(t, n, got)
		assert.Len(t, value.recorded, 1)
	})

	t.Run("rejects nil node", func(t *testing.T) {
		table := NewTable()
		err := table.WrapSafe(&fakeTensor{}, nil)
		require.ErrorIs(t, err, ErrPrecondition)
	})

	t.Run("rejects kind mismatch", func(t *testing.T) {
		table := NewTable()
		value := &tracer{}
		err := table.WrapSafe(value, node.NewPlain(alloc, nil, ""))
		require.ErrorIs(t, err, ErrPrecondition)

		var pe *PreconditionError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "wrap_safe", pe.Op)
		assert.Empty(t, value.recorded)
	})

	t.Run("rejects plain value", func(t *testing.T) {
		table := NewTable()
		err := table.WrapSafe(&point{}, node.NewPlain(alloc, nil, ""))
		require.ErrorIs(t, err, ErrPrecondition)
	})
}

func TestGet_Unbound(t *testing.T) {
	table := NewTable()
	value := &fakeTensor{}

	_, err := table.Get(value)
	require.ErrorIs(t, err, ErrNotBound)

	assert.Nil(t, table.GetOr(value, nil))

	def := node.NewPlain(newAlloc(), nil, "")
	assert.Same(t, def, table.GetOr(value, def))

	// Values that cannot be keys are simply unbound.
	_, err = table.Get(point{})
	require.ErrorIs(t, err, ErrNotBound)
	_, err = table.Get([]int{1})
	require.ErrorIs(t, err, ErrNotBound)
}

func TestUnbindAndReset(t *testing.T) {
	table := NewTable()
	alloc := newAlloc()
	a := &fakeTensor{}
	b := &fakeTensor{}
	require.NoError(t, table.Wrap(a, node.NewTensor(alloc, nil, "")))
	require.NoError(t, table.Wrap(b, node.NewTensor(alloc, nil, "")))

	assert.True(t, table.Unbind(a))
	assert.False(t, table.Unbind(a))
	assert.False(t, table.Unbind(point{}))
	assert.Equal(t, 1, table.Len())

	table.Reset()
	assert.Equal(t, 0, table.Len())
	_, ok := table.Lookup(b)
	assert.False(t, ok)
}

func TestWrappedKind(t *testing.T) {
	testCases := []struct {
		name     string
		value    any
		expected node.Kind
	}{
		{"tensor", &fakeTensor{}, node.KindTensor},
		{"tensor by value", scalar{}, node.KindTensor},
		{"module", &dense{}, node.KindModule},
		{"observer module", &tracer{}, node.KindModule},
		{"plain struct", &point{}, node.KindPlain},
		{"int", 3, node.KindPlain},
		{"nil", nil, node.KindPlain},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, WrappedKind(tc.value))
		})
	}
}

// TestTable_ConcurrentAccess verifies that the table can be used by several
// goroutines at once without races or lost bindings.
func TestTable_ConcurrentAccess(t *testing.T) {
	table := NewTable()
	alloc := newAlloc()
	numGoroutines := 100
	values := make([]*fakeTensor, numGoroutines)
	for i := range values {
		values[i] = &fakeTensor{shape: []int{i}, dtype: node.Int64}
	}

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := range numGoroutines {
		go func(i int) {
			defer wg.Done()
			if _, err := table.WrapFunc(values[i], func() node.Node { return node.NewTensor(alloc, nil, "") }); err != nil {
				t.Errorf("wrap %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, numGoroutines, table.Len())
	ids := make(map[int]struct{})
	for i, v := range values {
		n, err := table.Get(v)
		require.NoError(t, err)
		shape, _ := n.(*node.TensorNode).Shape()
		assert.Equal(t, []int{i}, shape)
		ids[n.ID()] = struct{}{}
	}
	assert.Len(t, ids, numGoroutines)
}

// TestTable_ConcurrentWrapsOntoOneNode wraps many tensors onto a single node
// at once; the node ends up holding the snapshot of one of them.
func TestTable_ConcurrentWrapsOntoOneNode(t *testing.T) {
	table := NewTable()
	shared := node.NewTensor(newAlloc(), nil, "shared")
	numGoroutines := 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := range numGoroutines {
		go func(i int) {
			defer wg.Done()
			v := &fakeTensor{shape: []int{i, i}, dtype: node.Float32}
			if err := table.Wrap(v, shared); err != nil {
				t.Errorf("wrap %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, numGoroutines, table.Len())
	shape, ok := shared.Shape()
	require.True(t, ok)
	require.Len(t, shape, 2)
	assert.Equal(t, shape[0], shape[1])
	dtype, _ := shared.DType()
	assert.Equal(t, node.Float32, dtype)
}
