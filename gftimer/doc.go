// Package gftimer defines the clock and scheduling primitives that drive
// flood timing: a tick-based dual clock and a single-callback scheduler.
package gftimer
