// Package util provides small concurrency and hashing helpers shared by the
// csIPC packages.
//
// The package contains:
//   - lockfreempsc: an unbounded lock-free Multi-Producer Single-Consumer queue.
//     Each reactor loop uses one as its task queue: any goroutine may push a
//     callback, only the loop goroutine consumes.
//   - functions: FNV-1a string hashing used to pin connections to loops.
package util
