package node

import (
	"fmt"
	"reflect"
	"strings"
	"unsafe"
	"weak"

	"github.com/vk/tracegraph/internal/nodeid"
)

// ModuleType identifies the runtime type of a traced module. A ModuleType
// restored from persisted state knows only its qualified name until it is
// resolved against a live type.
type ModuleType struct {
	name      string
	qualified string
	typ       reflect.Type
}

// TypeOf returns the ModuleType of v's dynamic type.
func TypeOf(v any) ModuleType {
	return ModuleTypeOf(reflect.TypeOf(v))
}

// ModuleTypeOf wraps a reflect.Type. A nil type yields the zero ModuleType.
func ModuleTypeOf(t reflect.Type) ModuleType {
	if t == nil {
		return ModuleType{}
	}
	return ModuleType{
		name:      shortTypeName(t),
		qualified: QualifiedTypeName(t),
		typ:       t,
	}
}

// UnresolvedType builds a ModuleType from a qualified name alone.
func UnresolvedType(qualified string) ModuleType {
	if qualified == "" {
		return ModuleType{}
	}
	short := strings.TrimLeft(qualified, "*")
	if i := strings.LastIndexAny(short, "./"); i >= 0 {
		short = short[i+1:]
	}
	return ModuleType{name: short, qualified: qualified}
}

// QualifiedTypeName is the package-path qualified name persisted for t,
// e.g. "*github.com/acme/nn.Linear".
func QualifiedTypeName(t reflect.Type) string {
	prefix := ""
	for t.Kind() == reflect.Pointer {
		prefix += "*"
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return prefix + t.String()
	}
	return prefix + t.PkgPath() + "." + t.Name()
}

func shortTypeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}

// Name is the short type name used in display, "Module" for the zero value.
func (t ModuleType) Name() string {
	if t.name == "" {
		return "Module"
	}
	return t.name
}

// QualifiedName is the persisted form of the type, "" for the zero value.
func (t ModuleType) QualifiedName() string {
	return t.qualified
}

// Type returns the live reflect.Type, or false if the type was restored from
// a name that has not been resolved.
func (t ModuleType) Type() (reflect.Type, bool) {
	return t.typ, t.typ != nil
}

// IsZero reports whether no type is recorded.
func (t ModuleType) IsZero() bool {
	return t.qualified == "" && t.typ == nil
}

// ownerRef is a non-owning handle to a module instance.
type ownerRef struct {
	resolve func() any
}

// ModuleNode represents a traced module instance.
type ModuleNode struct {
	base
	moduleType ModuleType
	owner      ownerRef
}

// NewModule creates a module node with a freshly allocated id.
func NewModule(alloc *nodeid.Allocator, producer Expr, name string, typ ModuleType) *ModuleNode {
	return &ModuleNode{base: newBase(alloc, producer, name), moduleType: typ}
}

// Kind implements Node.
func (m *ModuleNode) Kind() Kind { return KindModule }

func (m *ModuleNode) String() string {
	return fmt.Sprintf("%s(%s)", m.ref(), m.moduleType.Name())
}

// ModuleType returns the runtime type of the module this node describes.
func (m *ModuleNode) ModuleType() ModuleType {
	return m.moduleType
}

// SetModuleType replaces the recorded type and drops an owner that no longer
// matches it.
func (m *ModuleNode) SetModuleType(t ModuleType) {
	m.moduleType = t
	if v, ok := m.Owner(); ok && reflect.TypeOf(v) != t.typ {
		m.ClearOwner()
	}
}

// Owner resolves the live module instance. It returns false when no owner was
// bound, when the owner was cleared, or when the instance has been collected.
func (m *ModuleNode) Owner() (any, bool) {
	if m.owner.resolve == nil {
		return nil, false
	}
	v := m.owner.resolve()
	return v, v != nil
}

// ClearOwner drops the owner reference.
func (m *ModuleNode) ClearOwner() {
	m.owner = ownerRef{}
}

// BindOwner points m at a live module instance without keeping it alive. The
// owner's type must equal the node's module type; an unresolved type is
// resolved by qualified name, and the zero type adopts the owner's type.
func BindOwner[T any](m *ModuleNode, owner *T) error {
	if owner == nil {
		return fmt.Errorf("%w: nil owner for %s", ErrOwnerType, m)
	}
	t := reflect.TypeOf(owner)
	if t.Elem().Size() == 0 {
		return fmt.Errorf("%w: zero-size owner %s cannot be referenced weakly", ErrOwnerType, t)
	}
	if err := m.adoptOwnerType(t); err != nil {
		return err
	}

	wp := weak.Make(owner)
	m.owner = ownerRef{resolve: func() any {
		if p := wp.Value(); p != nil {
			return p
		}
		return nil
	}}
	return nil
}

// BindOwnerAny is BindOwner for an owner whose static type is not known to
// the caller. owner must be a non-nil pointer to a value of non-zero size.
func BindOwnerAny(m *ModuleNode, owner any) error {
	rv := reflect.ValueOf(owner)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: %T is not a non-nil pointer", ErrOwnerType, owner)
	}
	t := rv.Type()
	elem := t.Elem()
	if elem.Size() == 0 {
		return fmt.Errorf("%w: zero-size owner %s cannot be referenced weakly", ErrOwnerType, t)
	}
	if err := m.adoptOwnerType(t); err != nil {
		return err
	}

	// A weak pointer to the first byte tracks the whole allocation.
	wp := weak.Make((*byte)(rv.UnsafePointer()))
	m.owner = ownerRef{resolve: func() any {
		p := wp.Value()
		if p == nil {
			return nil
		}
		return reflect.NewAt(elem, unsafe.Pointer(p)).Interface()
	}}
	return nil
}

// adoptOwnerType checks t against the recorded module type, resolving an
// unresolved or zero type to t.
func (m *ModuleNode) adoptOwnerType(t reflect.Type) error {
	switch resolved, ok := m.moduleType.Type(); {
	case ok && resolved != t:
		return fmt.Errorf("%w: %s is not %s", ErrOwnerType, t, resolved)
	case !ok && !m.moduleType.IsZero() && m.moduleType.qualified != QualifiedTypeName(t):
		return fmt.Errorf("%w: %s is not %s", ErrOwnerType, QualifiedTypeName(t), m.moduleType.qualified)
	case !ok:
		m.moduleType = ModuleTypeOf(t)
	}
	return nil
}
