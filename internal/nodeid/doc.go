// internal/nodeid/doc.go

/*
Package nodeid owns node identity for traced graphs.

An Allocator hands out integer ids that are unique for the lifetime of the
tracing session that owns it, including ids restored from persisted nodes:
restoring id K moves the counter past K so freshly traced nodes never collide
with restored ones.

The package also parses the diagnostic display form of a node, e.g. `%12`,
`%conv1` or `%3(Tensor)`, into a Ref.
*/
package nodeid
