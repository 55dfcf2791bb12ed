package nodecodec

import (
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrMalformed is returned for persisted state that does not describe a node.
	ErrMalformed = errors.New("malformed node state")
	// ErrUnknownModuleType is returned by a strict codec for a module type
	// name that is not registered.
	ErrUnknownModuleType = errors.New("unknown module type")
)

// Attribute names of a persisted node.
const (
	attrKind       = "kind"
	attrID         = "id"
	attrName       = "name"
	attrProducer   = "producer"
	attrUsers      = "users"
	attrModuleType = "module_type"
	attrShape      = "shape"
	attrDType      = "dtype"
)

// Attributes lists the attribute names of NodeType in presentation order.
var Attributes = []string{
	attrKind, attrID, attrName, attrProducer, attrUsers, attrModuleType, attrShape, attrDType,
}

// NodeType is the cty type of one persisted node.
var NodeType = cty.Object(map[string]cty.Type{
	attrKind:       cty.String,
	attrID:         cty.Number,
	attrName:       cty.String,
	attrProducer:   cty.Number,
	attrUsers:      cty.List(cty.Number),
	attrModuleType: cty.String,
	attrShape:      cty.List(cty.Number),
	attrDType:      cty.String,
})

// SnapshotType is the cty type of a persisted list of nodes.
var SnapshotType = cty.List(NodeType)

// Format selects the wire encoding of a snapshot.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatMsgpack:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported snapshot format %q: must be 'json' or 'msgpack'", s)
	}
}

func malformedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
