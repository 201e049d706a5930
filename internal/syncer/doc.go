// Package syncer drives replay of buffered canvas operations.
//
// The Engine reacts to connectivity edges from a Monitor: on the
// online edge it drains the offline queue through the backend
// transport, retrying failed drains with exponential backoff up to an
// attempt cap. At most one drain runs at a time. Observers receive
// immutable Status snapshots through the Publisher.
package syncer
