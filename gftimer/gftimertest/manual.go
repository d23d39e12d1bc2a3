// Package gftimertest provides a hand-driven scheduler for deterministic
// engine tests.
package gftimertest

import "github.com/gordian-engine/gflood/gftimer"

// ManualScheduler is a gftimer.Scheduler whose clocks only move when the
// test moves them. Callbacks fire synchronously from AdvanceTo, so the test
// controls exactly how timer work interleaves with radio events.
type ManualScheduler struct {
	// LFAutoStep, when nonzero, advances the low-frequency clock by this
	// amount on every NowLF read, so busy-waits polling that clock
	// terminate without explicit advancing.
	LFAutoStep gftimer.Ticks

	hf gftimer.Ticks
	lf gftimer.Ticks

	pendingAt gftimer.Ticks
	pendingFn func(now gftimer.Ticks)

	updateDisables int
	updateEnables  int
}

// NewManualScheduler returns a scheduler with both clocks at zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) NowHF() gftimer.Ticks { return m.hf }

func (m *ManualScheduler) NowLF() gftimer.Ticks {
	m.lf += m.LFAutoStep
	return m.lf
}

func (m *ManualScheduler) Now() (hf, lf gftimer.Ticks) { return m.hf, m.lf }

func (m *ManualScheduler) Schedule(at gftimer.Ticks, fn func(now gftimer.Ticks)) {
	m.pendingAt = at
	m.pendingFn = fn
}

func (m *ManualScheduler) Cancel() { m.pendingFn = nil }

func (m *ManualScheduler) UpdateDisable() { m.updateDisables++ }

func (m *ManualScheduler) UpdateEnable() { m.updateEnables++ }

// SetHF moves the high-frequency clock without firing callbacks.
func (m *ManualScheduler) SetHF(t gftimer.Ticks) { m.hf = t }

// SetLF moves the low-frequency clock.
func (m *ManualScheduler) SetLF(t gftimer.Ticks) { m.lf = t }

// AdvanceTo moves the high-frequency clock to t, firing due callbacks in
// order. A fired callback that schedules another callback due by t fires
// within the same call.
func (m *ManualScheduler) AdvanceTo(t gftimer.Ticks) {
	for m.pendingFn != nil && m.pendingAt <= t {
		fn := m.pendingFn
		m.pendingFn = nil
		if m.hf < m.pendingAt {
			m.hf = m.pendingAt
		}
		fn(m.hf)
	}
	if m.hf < t {
		m.hf = t
	}
}

// Advance moves the high-frequency clock forward by d.
func (m *ManualScheduler) Advance(d gftimer.Ticks) {
	m.AdvanceTo(m.hf + d)
}

// HasPending reports whether a callback is scheduled.
func (m *ManualScheduler) HasPending() bool { return m.pendingFn != nil }

// PendingAt reports when the pending callback is due.
// It is only meaningful while HasPending reports true.
func (m *ManualScheduler) PendingAt() gftimer.Ticks { return m.pendingAt }

// UpdateDisableCount reports how many exclusion windows were opened.
func (m *ManualScheduler) UpdateDisableCount() int { return m.updateDisables }

// UpdateEnableCount reports how many times the update gate was released.
func (m *ManualScheduler) UpdateEnableCount() int { return m.updateEnables }

var _ gftimer.Scheduler = (*ManualScheduler)(nil)
