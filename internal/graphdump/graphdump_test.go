package graphdump

import (
	"bytes"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tracegraph/internal/node"
	"github.com/vk/tracegraph/internal/nodeid"
)

type matmul struct {
	weights []float32
}

type call int

func (c call) ExprID() int { return int(c) }

func sample() []node.Node {
	alloc := nodeid.NewAllocator(0)
	x := node.NewTensor(alloc, nil, "x")
	x.SetMeta([]int{2, 3}, node.Float32)
	x.AddUser(call(1))

	fc := node.NewModule(alloc, nil, "", node.TypeOf(&matmul{}))
	fc.AddUser(call(1))

	y := node.NewTensor(alloc, call(1), "")
	y.SetMeta([]int{2, 4}, node.Float32)
	return []node.Node{y, x, fc}
}

func TestWriteHCL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHCL(&buf, sample()))

	file, diags := hclsyntax.ParseConfig(buf.Bytes(), "dump.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())
	blocks := file.Body.(*hclsyntax.Body).Blocks
	require.Len(t, blocks, 3)

	labels := make([]string, 0, len(blocks))
	for _, b := range blocks {
		assert.Equal(t, "node", b.Type)
		require.Len(t, b.Labels, 1)
		labels = append(labels, b.Labels[0])
	}
	assert.Equal(t, []string{"%2(Tensor)", "%x(Tensor)", "%1(matmul)"}, labels)

	attrs := blocks[1].Body.Attributes
	value := func(name string) cty.Value {
		t.Helper()
		attr, ok := attrs[name]
		require.True(t, ok, "missing attribute %q", name)
		v, diags := attr.Expr.Value(nil)
		require.False(t, diags.HasErrors(), diags.Error())
		return v
	}
	assert.Equal(t, "tensor", value("kind").AsString())
	assert.Equal(t, "x", value("name").AsString())
	assert.Equal(t, "float32", value("dtype").AsString())
	assert.Equal(t, 2, value("shape").LengthInt())
	assert.NotContains(t, attrs, "producer")
	assert.NotContains(t, attrs, "module_type")

	moduleAttrs := blocks[2].Body.Attributes
	assert.Contains(t, moduleAttrs, "module_type")
	assert.NotContains(t, moduleAttrs, "shape")
}

func TestWriteHCL_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHCL(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestTree(t *testing.T) {
	out := Tree(sample())

	assert.Contains(t, out, "graph (3 nodes)")
	assert.Contains(t, out, "inputs")
	assert.Contains(t, out, "$1")
	assert.Contains(t, out, "[tensor]")
	assert.Contains(t, out, "%x(Tensor) [2 3] float32")
	assert.Contains(t, out, "[module]")
	assert.Contains(t, out, "%1(matmul)")
	assert.Contains(t, out, "used by $1")
	assert.Less(t, bytes.Index([]byte(out), []byte("inputs")), bytes.Index([]byte(out), []byte("%2(Tensor)")))
}
