// Package backend talks to the shared canvas service. Its Client is
// the transport the sync engine replays buffered operations through.
package backend
