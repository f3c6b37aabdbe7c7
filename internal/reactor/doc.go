// Package reactor wraps the kernel readiness interface used by the
// server's event loop.  Descriptors are registered for read readiness in
// level-triggered mode, which gives the same semantics as select(2): a
// descriptor keeps reporting ready until its input is drained.
package reactor
