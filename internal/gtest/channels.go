package gtest

import (
	"testing"
	"time"
)

// soonDeadline bounds how long ReceiveSoon waits before failing the test.
// Generous enough for loaded CI machines, short enough to not stall a
// failing run.
const soonDeadline = 5 * time.Second

// ReceiveSoon returns a value received from ch, failing t if nothing
// arrives within a reasonable time.
func ReceiveSoon[T any](t testing.TB, ch <-chan T) T {
	t.Helper()

	timer := time.NewTimer(soonDeadline)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v
	case <-timer.C:
		t.Fatalf("did not receive from channel within %s", soonDeadline)
		panic("unreachable")
	}
}

