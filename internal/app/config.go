package app

import (
	"errors"
	"fmt"

	"github.com/vk/tracegraph/internal/nodecodec"
	"github.com/vk/tracegraph/internal/nodeid"
)

// Output formats of a dump.
const (
	OutputHCL  = "hcl"
	OutputTree = "tree"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	SnapshotPath string
	InputFormat  nodecodec.Format
	Output       string
	// NodeRef optionally restricts the dump to one node, e.g. "%3" or "%fc".
	NodeRef string

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.SnapshotPath == "" {
		return nil, errors.New("SnapshotPath is a required configuration field and cannot be empty")
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = nodecodec.FormatJSON
	}
	if _, err := nodecodec.ParseFormat(string(cfg.InputFormat)); err != nil {
		return nil, err
	}
	switch cfg.Output {
	case "":
		cfg.Output = OutputHCL
	case OutputHCL, OutputTree:
	default:
		return nil, fmt.Errorf("unsupported output %q: must be '%s' or '%s'", cfg.Output, OutputHCL, OutputTree)
	}
	if cfg.NodeRef != "" {
		if _, err := nodeid.ParseRef(cfg.NodeRef); err != nil {
			return nil, fmt.Errorf("invalid node filter: %w", err)
		}
	}
	return &cfg, nil
}
