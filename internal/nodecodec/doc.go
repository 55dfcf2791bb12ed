// Package nodecodec persists traced nodes and restores them.
//
// A node's persisted representation is a cty object holding its kind, id,
// name, producer reference, user references and the kind-specific fields
// (module type name, tensor shape and dtype). A module node's owner is never
// persisted: it is process-local and must be re-bound after a restore.
//
// Snapshots are a cty list of such objects and travel as JSON (cty/json) or
// MessagePack (cty/msgpack). Decoding reports every restored id to the
// session's nodeid.Allocator, so nodes traced after a restore never collide
// with restored ones.
package nodecodec
