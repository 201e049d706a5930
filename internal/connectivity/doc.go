// Package connectivity tracks whether the backend is reachable.
//
// A Monitor polls a Source on a fixed interval and fans out
// edge-triggered transitions to subscribed listeners. The default
// Source issues HTTP probes against the backend health endpoint; tests
// and operators can force a state with an override.
package connectivity
