// Package graphdump renders traced nodes for humans. Dumps are diagnostic
// only and are never read back.
package graphdump

import (
	"fmt"
	"io"
	"strconv"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/xlab/treeprint"

	"github.com/vk/tracegraph/internal/node"
	"github.com/vk/tracegraph/internal/nodecodec"
)

// WriteHCL writes one `node` block per node, labelled with its display form,
// holding the node's persisted attributes. Absent attributes are omitted.
func WriteHCL(w io.Writer, nodes []node.Node) error {
	codec := nodecodec.New()
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	for i, n := range nodes {
		v, err := codec.EncodeNode(n)
		if err != nil {
			return fmt.Errorf("dumping %s: %w", n, err)
		}
		if i > 0 {
			body.AppendNewline()
		}
		block := body.AppendNewBlock("node", []string{n.String()}).Body()
		for _, attr := range nodecodec.Attributes {
			av := v.GetAttr(attr)
			if av.IsNull() {
				continue
			}
			block.SetAttributeValue(attr, av)
		}
	}

	_, err := w.Write(f.Bytes())
	return err
}

// Tree renders nodes grouped by the Expr that produced them. Graph inputs,
// which have no producer, come first.
func Tree(nodes []node.Node) string {
	tree := treeprint.NewWithRoot(fmt.Sprintf("graph (%d nodes)", len(nodes)))

	var order []string
	groups := make(map[string][]node.Node)
	for _, n := range nodes {
		key := "inputs"
		if p := n.Producer(); p != nil {
			key = exprLabel(p)
		}
		if _, ok := groups[key]; !ok && key != "inputs" {
			order = append(order, key)
		}
		groups[key] = append(groups[key], n)
	}
	if _, ok := groups["inputs"]; ok {
		order = append([]string{"inputs"}, order...)
	}

	for _, key := range order {
		branch := tree.AddBranch(key)
		for _, n := range groups[key] {
			users := n.Users()
			if len(users) == 0 {
				branch.AddMetaNode(n.Kind().String(), describe(n))
				continue
			}
			nb := branch.AddMetaBranch(n.Kind().String(), describe(n))
			for _, u := range users {
				nb.AddNode("used by " + exprLabel(u))
			}
		}
	}
	return tree.String()
}

// describe is the display form plus the tensor metadata snapshot, if any.
func describe(n node.Node) string {
	tn, ok := n.(*node.TensorNode)
	if !ok {
		return n.String()
	}
	shape, bound := tn.Shape()
	if !bound {
		return n.String()
	}
	dtype, _ := tn.DType()
	return fmt.Sprintf("%s %v %s", n, shape, dtype)
}

func exprLabel(e node.Expr) string {
	return "$" + strconv.Itoa(e.ExprID())
}
