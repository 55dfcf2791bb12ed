// internal/nodeid/ref.go
package nodeid

import (
	"strconv"
	"strings"
)

// Ref is a parsed node reference in display form. Exactly one of ID (>= 0)
// or Name is set.
type Ref struct {
	ID   int // -1 when the reference is by name.
	Name string
	// Suffix is the optional parenthesised kind annotation, e.g. "Tensor" or
	// a module type name. Empty when absent.
	Suffix string
}

// IDRef creates a reference to the node with the given id.
func IDRef(id int) Ref {
	return Ref{ID: id}
}

// NameRef creates a reference to the node with the given name.
func NameRef(name string) Ref {
	return Ref{ID: -1, Name: name}
}

// ByName reports whether the reference selects a node by name.
func (r Ref) ByName() bool {
	return r.ID < 0
}

// Matches reports whether a node with the given id, name and display suffix
// is the one the reference points at. A reference without a suffix, or with
// the "*" suffix, accepts any node suffix.
func (r Ref) Matches(id int, name, suffix string) bool {
	if r.Suffix != "" && r.Suffix != "*" && r.Suffix != suffix {
		return false
	}
	if r.ByName() {
		return name != "" && name == r.Name
	}
	return r.ID == id
}

// String renders the reference in display form.
func (r Ref) String() string {
	var sb strings.Builder
	sb.WriteRune('%')
	if r.ByName() {
		sb.WriteString(r.Name)
	} else {
		sb.WriteString(strconv.Itoa(r.ID))
	}
	if r.Suffix != "" {
		sb.WriteRune('(')
		sb.WriteString(r.Suffix)
		sb.WriteRune(')')
	}
	return sb.String()
}
