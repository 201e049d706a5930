// Package testsupport provides shared helpers for wiring temp-dir configs
// and queue stores in tests.
package testsupport
