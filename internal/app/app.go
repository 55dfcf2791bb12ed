package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/tracegraph/internal/ctxlog"
	"github.com/vk/tracegraph/internal/graphdump"
	"github.com/vk/tracegraph/internal/node"
	"github.com/vk/tracegraph/internal/nodeid"
	"github.com/vk/tracegraph/internal/session"
)

// App encapsulates the inspector's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
}

// NewApp is the constructor for the application. Dumps are written to outW
// and logs to logW through the app's own isolated logger.
func NewApp(outW, logW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")
	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
	}
}

// Run loads the configured snapshot and writes its dump.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "snapshot", a.config.SnapshotPath)

	data, err := os.ReadFile(a.config.SnapshotPath)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	s := session.New(ctx)
	defer func() {
		if err := s.Close(ctx); err != nil {
			a.logger.Warn("Failed to close session.", "error", err)
		}
	}()

	nodes, err := s.Restore(ctx, a.config.InputFormat, data)
	if err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	a.logger.Info("Snapshot restored.", "node_count", len(nodes), "next_id", s.Allocator().Peek())

	if a.config.NodeRef != "" {
		nodes, err = filterNodes(ctx, s, a.config.NodeRef)
		if err != nil {
			return err
		}
	}
	if len(nodes) == 0 {
		a.logger.Warn("Snapshot contains no nodes, nothing to dump.")
	}

	switch a.config.Output {
	case OutputTree:
		_, err = fmt.Fprint(a.outW, graphdump.Tree(nodes))
	default:
		err = graphdump.WriteHCL(a.outW, nodes)
	}
	if err != nil {
		return fmt.Errorf("failed to write dump: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// filterNodes keeps the node the reference points at.
func filterNodes(ctx context.Context, s *session.Session, rawRef string) ([]node.Node, error) {
	ref, err := nodeid.ParseRef(rawRef)
	if err != nil {
		return nil, fmt.Errorf("invalid node filter: %w", err)
	}
	n, ok := s.Find(ctx, ref)
	if !ok {
		return nil, fmt.Errorf("node %s not found in snapshot", ref)
	}
	return []node.Node{n}, nil
}
