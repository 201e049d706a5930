// Package daemon wires the queue, connectivity monitor, backend
// client, and sync engine together and enforces single-instance
// execution through a lock file.
package daemon
