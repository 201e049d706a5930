// Package shape defines the canvas shape record exchanged with the backend
// and the last-write-wins helpers used for client-side reconciliation.
package shape
