// Package reactor provides single-threaded event loops and a pool of them.
//
// A Loop owns one goroutine that is locked to one OS thread for its whole
// lifetime. State that belongs to a loop (a connection's buffers, a server's
// registry mutations) is only touched from callbacks running on that thread,
// so it needs no locking. Other goroutines marshal work onto the loop:
//
//   - RunInLoop runs the callback inline when called on the loop thread and
//     queues it otherwise
//   - QueueInLoop always queues, even on the loop thread
//
// Queued callbacks are delivered through a lock-free MPSC queue and run in the
// order they were queued by any one caller.
//
// A LoopPool owns a fixed number of I/O loops next to a base (control) loop
// and hands them out round-robin or pinned by a hash of a key.
package reactor
