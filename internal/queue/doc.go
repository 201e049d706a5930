// Package queue buffers canvas mutations made while offline and persists
// them in SQLite so they survive process restart.
//
// The Queue is a bounded FIFO: enqueue order is replay order, and past the
// configured bound the oldest entries are evicted first. Enqueue only
// appends while the connectivity signal reports offline; online mutations
// take the live path and never touch the buffer. DrainInOrder replays the
// buffer one operation at a time and removes nothing unless every send
// succeeded.
//
// The Store treats SQLite as a snapshot of the in-memory queue, rewritten in
// full after every mutation. The snapshot is transient working state, not an
// archive; corrupt rows are skipped on load rather than failing startup.
package queue
