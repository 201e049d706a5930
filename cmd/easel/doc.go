// Command easel is the CLI for the offline-resilient canvas sync
// service: it runs the sync daemon and inspects the buffered
// operation queue.
package main
