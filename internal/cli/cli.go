package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/tracegraph/internal/app"
	"github.com/vk/tracegraph/internal/nodecodec"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("tracegraph", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
tracegraph - Inspect persisted nodes of a traced computation graph.

Usage:
  tracegraph [options] SNAPSHOT_PATH

Arguments:
  SNAPSHOT_PATH
    Path to a snapshot written by a tracing session.

Options:
`)
		flagSet.PrintDefaults()
	}

	snapshotFlag := flagSet.String("snapshot", "", "Path to the snapshot file.")
	sFlag := flagSet.String("s", "", "Path to the snapshot file (shorthand).")
	inputFormatFlag := flagSet.String("input-format", "json", "Snapshot encoding. Options: 'json' or 'msgpack'.")
	outputFlag := flagSet.String("output", app.OutputHCL, "Dump format. Options: 'hcl' or 'tree'.")
	nodeFlag := flagSet.String("node", "", "Only dump the referenced node, e.g. '%3' or '%fc'.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *snapshotFlag != "" {
		path = *snapshotFlag
	} else if *sFlag != "" {
		path = *sFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Snapshot path determined.", "path", path)

	if path == "" {
		slog.Debug("No snapshot path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		SnapshotPath: path,
		InputFormat:  nodecodec.Format(strings.ToLower(*inputFormatFlag)),
		Output:       strings.ToLower(*outputFlag),
		NodeRef:      *nodeFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
