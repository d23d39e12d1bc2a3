package gftimer

// Scheduler is the timer service a flood engine consumes.
//
// At most one callback is outstanding at a time; scheduling a new callback
// replaces a pending one. Implementations must deliver callbacks serialized
// with the radio events feeding the same engine, as the engine does no
// internal locking.
type Scheduler interface {
	// NowHF reports the current high-frequency time.
	NowHF() Ticks

	// NowLF reports the current low-frequency time.
	NowLF() Ticks

	// Now reports both clocks read as a pair, so that neither appears to
	// advance relative to the other between the two reads.
	Now() (hf, lf Ticks)

	// Schedule arranges for fn to run at high-frequency time at, replacing
	// any pending callback. A target already in the past fires as soon as
	// possible. The callback receives the time at which it actually runs.
	Schedule(at Ticks, fn func(now Ticks))

	// Cancel drops the pending callback, if any.
	Cancel()

	// UpdateDisable suspends the periodic clock-update interrupt for a
	// short critical window, so that FIFO-adjacent work is not delayed
	// mid-reception. Windows do not nest.
	UpdateDisable()

	// UpdateEnable ends the window opened by UpdateDisable. Enabling when
	// no window is open is a no-op.
	UpdateEnable()
}
