// Package gtest holds common helpers for tests.
package gtest

import (
	"log/slog"
	"testing"

	"github.com/neilotoole/slogt"
)

// NewLogger returns a *slog.Logger that writes through t.Log, so that log
// output is associated with the correct test and only shown on failure or
// in verbose mode.
func NewLogger(t testing.TB) *slog.Logger {
	return slogt.New(t)
}
