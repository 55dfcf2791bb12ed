// Package binding associates live runtime values with the graph nodes that
// describe them while a forward pass is traced.
//
// # Identity, not equality
//
// A Table maps a value's identity to its node. Values are keyed by pointer,
// so two distinct values that happen to compare equal never share a node,
// and a value keeps its node for as long as the table holds the binding.
// Rebinding a value overwrites the previous association.
//
// # Capabilities
//
// Values take part in tracing through three capability interfaces:
//   - Tensor: exposes shape and dtype, snapshotted onto a TensorNode on wrap
//   - Module: a stateful computation unit, represented by a ModuleNode
//   - Observer: receives a callback naming the node that now wraps it
//
// Only tensors and observers can be wrapped. WrappedKind classifies any value
// into the node kind that should represent it.
//
// # Errors
//
// Contract violations in calling trace logic (wrapping an unsupported value,
// a factory that yields no node, a node of the wrong kind) are reported as
// *PreconditionError, matching ErrPrecondition. Reading an unbound value with
// Get returns ErrNotBound.
package binding
