// Package app contains the snapshot inspector's application logic. It loads
// a persisted node snapshot into a fresh tracing session and prints a
// diagnostic dump, decoupled from any specific entrypoint like a CLI.
package app
