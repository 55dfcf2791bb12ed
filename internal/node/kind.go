package node

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned for a Kind outside the closed set.
	ErrUnknownKind = errors.New("unknown node kind")
	// ErrInvalidID is returned when a persisted id is negative.
	ErrInvalidID = errors.New("invalid node id")
	// ErrOwnerType is returned when an owner does not match a module node's type.
	ErrOwnerType = errors.New("owner does not match module type")
)

// Kind distinguishes between the node variants.
type Kind int

const (
	// KindPlain is a node for a value with no special capability.
	KindPlain Kind = iota
	// KindModule is a node for a stateful module instance.
	KindModule
	// KindTensor is a node for a tensor value.
	KindTensor
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "node"
	case KindModule:
		return "module"
	case KindTensor:
		return "tensor"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "node":
		return KindPlain, nil
	case "module":
		return KindModule, nil
	case "tensor":
		return KindTensor, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}
