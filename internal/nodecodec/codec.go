package nodecodec

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	ctymsgpack "github.com/zclconf/go-cty/cty/msgpack"

	"github.com/vk/tracegraph/internal/node"
	"github.com/vk/tracegraph/internal/nodeid"
)

// ExprResolver maps a persisted expr reference back to a live Expr.
type ExprResolver func(id int) (node.Expr, bool)

// Codec converts nodes to and from their persisted representation.
type Codec struct {
	registry *Registry
	strict   bool
	resolve  ExprResolver
}

// Option configures a Codec.
type Option func(*Codec)

// WithRegistry resolves module type names against r.
func WithRegistry(r *Registry) Option {
	return func(c *Codec) { c.registry = r }
}

// WithStrictTypes makes unregistered module type names a decode error instead
// of producing an unresolved node.ModuleType.
func WithStrictTypes() Option {
	return func(c *Codec) { c.strict = true }
}

// WithExprResolver maps persisted producer and user references to live Exprs.
// References it does not know decode to node.ExprRef.
func WithExprResolver(f ExprResolver) Option {
	return func(c *Codec) { c.resolve = f }
}

// New creates a codec.
func New(opts ...Option) *Codec {
	c := &Codec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode converts nodes into a value of SnapshotType.
func (c *Codec) Encode(nodes []node.Node) (cty.Value, error) {
	if len(nodes) == 0 {
		return cty.ListValEmpty(NodeType), nil
	}
	vals := make([]cty.Value, 0, len(nodes))
	for _, n := range nodes {
		v, err := c.EncodeNode(n)
		if err != nil {
			return cty.NilVal, err
		}
		vals = append(vals, v)
	}
	return cty.ListVal(vals), nil
}

// EncodeNode converts a single node into a value of NodeType.
func (c *Codec) EncodeNode(n node.Node) (cty.Value, error) {
	if n == nil {
		return cty.NilVal, fmt.Errorf("cannot encode nil node")
	}

	users := n.Users()
	userIDs := make([]int, 0, len(users))
	for _, u := range users {
		userIDs = append(userIDs, u.ExprID())
	}
	usersVal, err := gocty.ToCtyValue(userIDs, cty.List(cty.Number))
	if err != nil {
		return cty.NilVal, fmt.Errorf("encoding users of %s: %w", n, err)
	}

	attrs := map[string]cty.Value{
		attrKind:       cty.StringVal(n.Kind().String()),
		attrID:         cty.NumberIntVal(int64(n.ID())),
		attrName:       cty.NullVal(cty.String),
		attrProducer:   cty.NullVal(cty.Number),
		attrUsers:      usersVal,
		attrModuleType: cty.NullVal(cty.String),
		attrShape:      cty.NullVal(cty.List(cty.Number)),
		attrDType:      cty.NullVal(cty.String),
	}
	if name := n.Name(); name != "" {
		attrs[attrName] = cty.StringVal(name)
	}
	if p := n.Producer(); p != nil {
		attrs[attrProducer] = cty.NumberIntVal(int64(p.ExprID()))
	}

	switch typed := n.(type) {
	case *node.ModuleNode:
		if mt := typed.ModuleType(); !mt.IsZero() {
			attrs[attrModuleType] = cty.StringVal(mt.QualifiedName())
		}
	case *node.TensorNode:
		if shape, ok := typed.Shape(); ok {
			shapeVal, err := gocty.ToCtyValue(shape, cty.List(cty.Number))
			if err != nil {
				return cty.NilVal, fmt.Errorf("encoding shape of %s: %w", n, err)
			}
			dtype, _ := typed.DType()
			attrs[attrShape] = shapeVal
			attrs[attrDType] = cty.StringVal(string(dtype))
		}
	}
	return cty.ObjectVal(attrs), nil
}

// Decode rebuilds the nodes described by v, which must conform to
// SnapshotType. Every restored id is reported to alloc. Failures of
// individual nodes are collected and returned together.
func (c *Codec) Decode(alloc *nodeid.Allocator, v cty.Value) ([]node.Node, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, malformedf("snapshot is null or unknown")
	}
	if !v.Type().Equals(SnapshotType) {
		return nil, malformedf("snapshot has type %s", v.Type().FriendlyName())
	}
	if !v.IsWhollyKnown() || v.ContainsMarked() {
		return nil, malformedf("snapshot contains unknown or marked values")
	}

	var errs *multierror.Error
	nodes := make([]node.Node, 0, v.LengthInt())
	seen := make(map[int]struct{}, v.LengthInt())
	for i, it := 0, v.ElementIterator(); it.Next(); i++ {
		_, ev := it.Element()
		n, err := c.decodeNode(alloc, ev)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("node #%d: %w", i, err))
			continue
		}
		if _, dup := seen[n.ID()]; dup {
			errs = multierror.Append(errs, malformedf("duplicate id %d", n.ID()))
			continue
		}
		seen[n.ID()] = struct{}{}
		nodes = append(nodes, n)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (c *Codec) decodeNode(alloc *nodeid.Allocator, v cty.Value) (node.Node, error) {
	if v.IsNull() {
		return nil, malformedf("null node")
	}

	kindVal := v.GetAttr(attrKind)
	if kindVal.IsNull() {
		return nil, malformedf("missing %s", attrKind)
	}
	kind, err := node.ParseKind(kindVal.AsString())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	id, err := intAttr(v, attrID)
	if err != nil {
		return nil, err
	}

	var name string
	if nv := v.GetAttr(attrName); !nv.IsNull() {
		name = nv.AsString()
	}

	var producer node.Expr
	if !v.GetAttr(attrProducer).IsNull() {
		pid, err := intAttr(v, attrProducer)
		if err != nil {
			return nil, err
		}
		producer = c.expr(pid)
	}

	users, err := intsAttr(v, attrUsers)
	if err != nil {
		return nil, err
	}

	n, err := node.Restore(alloc, kind, id, producer, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	for _, uid := range users {
		n.AddUser(c.expr(uid))
	}

	switch typed := n.(type) {
	case *node.ModuleNode:
		mt, err := c.moduleType(v.GetAttr(attrModuleType))
		if err != nil {
			return nil, err
		}
		typed.SetModuleType(mt)
	case *node.TensorNode:
		shapeVal, dtypeVal := v.GetAttr(attrShape), v.GetAttr(attrDType)
		if shapeVal.IsNull() != dtypeVal.IsNull() {
			return nil, malformedf("tensor %d has only one of %s and %s", id, attrShape, attrDType)
		}
		if !shapeVal.IsNull() {
			shape, err := intsAttr(v, attrShape)
			if err != nil {
				return nil, err
			}
			for _, d := range shape {
				if d < 0 {
					return nil, malformedf("tensor %d has negative dimension in shape %v", id, shape)
				}
			}
			typed.SetMeta(shape, node.DType(dtypeVal.AsString()))
		}
	}
	return n, nil
}

func (c *Codec) moduleType(v cty.Value) (node.ModuleType, error) {
	if v.IsNull() {
		return node.ModuleType{}, nil
	}
	qualified := v.AsString()
	if t, ok := c.registry.Lookup(qualified); ok {
		return node.ModuleTypeOf(t), nil
	}
	if c.strict {
		return node.ModuleType{}, fmt.Errorf("%w: %s", ErrUnknownModuleType, qualified)
	}
	return node.UnresolvedType(qualified), nil
}

func (c *Codec) expr(id int) node.Expr {
	if c.resolve != nil {
		if e, ok := c.resolve(id); ok && e != nil {
			return e
		}
	}
	return node.ExprRef(id)
}

func intAttr(v cty.Value, name string) (int, error) {
	av := v.GetAttr(name)
	if av.IsNull() {
		return 0, malformedf("missing %s", name)
	}
	var out int
	if err := gocty.FromCtyValue(av, &out); err != nil {
		return 0, malformedf("%s: %s", name, err)
	}
	return out, nil
}

func intsAttr(v cty.Value, name string) ([]int, error) {
	av := v.GetAttr(name)
	if av.IsNull() {
		return nil, nil
	}
	var out []int
	if err := gocty.FromCtyValue(av, &out); err != nil {
		return nil, malformedf("%s: %s", name, err)
	}
	return out, nil
}

// Marshal encodes nodes in the given wire format.
func (c *Codec) Marshal(format Format, nodes []node.Node) ([]byte, error) {
	v, err := c.Encode(nodes)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatJSON:
		return ctyjson.Marshal(v, SnapshotType)
	case FormatMsgpack:
		return ctymsgpack.Marshal(v, SnapshotType)
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", format)
	}
}

// Unmarshal decodes a snapshot in the given wire format, restoring every id
// into alloc.
func (c *Codec) Unmarshal(format Format, alloc *nodeid.Allocator, data []byte) ([]node.Node, error) {
	var (
		v   cty.Value
		err error
	)
	switch format {
	case FormatJSON:
		v, err = ctyjson.Unmarshal(data, SnapshotType)
	case FormatMsgpack:
		v, err = ctymsgpack.Unmarshal(data, SnapshotType)
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return c.Decode(alloc, v)
}
