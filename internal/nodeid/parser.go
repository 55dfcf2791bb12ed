// internal/nodeid/parser.go
package nodeid

import (
	"fmt"
	"regexp"
	"strconv"
)

// refRegex matches a display reference, e.g. `%12`, `%conv1` or `%3(Tensor)`.
var refRegex = regexp.MustCompile(`^%([a-zA-Z0-9_.-]+)(?:\(([a-zA-Z0-9_.*]+)\))?$`)

// digitsRegex matches a token made only of digits; such tokens are ids.
var digitsRegex = regexp.MustCompile(`^\d+$`)

// isValidName checks for undesirable but technically valid names.
func isValidName(name string) bool {
	if name == "." || name == ".." || name == "-" {
		return false
	}
	return true
}

// ParseRef parses the display form of a node into a Ref.
func ParseRef(raw string) (Ref, error) {
	if raw == "" {
		return Ref{}, fmt.Errorf("node reference cannot be empty")
	}

	matches := refRegex.FindStringSubmatch(raw)
	if matches == nil {
		return Ref{}, fmt.Errorf("invalid node reference format: %q", raw)
	}

	token := matches[1]
	ref := Ref{Suffix: matches[2]}
	if digitsRegex.MatchString(token) {
		id, err := strconv.Atoi(token)
		if err != nil {
			return Ref{}, fmt.Errorf("node id out of range in %q: %w", raw, err)
		}
		ref.ID = id
		return ref, nil
	}

	if !isValidName(token) {
		return Ref{}, fmt.Errorf("invalid node name: %q", token)
	}
	ref.ID = -1
	ref.Name = token
	return ref, nil
}
