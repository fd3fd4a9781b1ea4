// Package handle defines the dense integer handle type shared by every
// arena in the kernel (tasks, events). Using one representation for all
// vertex spaces keeps the relation graph, emission log and temporal engine
// free of a dependency on the plan package itself, per the arena-and-handle
// pattern in spec.md §9 ("Cyclic object graphs").
package handle

// ID is an opaque dense identifier. The zero value never denotes a live
// object; arenas start minting ids from 1.
type ID uint64

// Nil is the zero handle, used as a sentinel for "no object".
const Nil ID = 0
