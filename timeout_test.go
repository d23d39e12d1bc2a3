package gflood_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/gflood"
	"github.com/gordian-engine/gflood/gfradio/gfradiotest"
	"github.com/gordian-engine/gflood/gftimer"
)

// hfTicks converts a nanosecond duration to high-frequency ticks the same
// way the engine does, rounding down.
func hfTicks(tm gflood.Timing, ns uint32) gftimer.Ticks {
	return gftimer.Ticks(uint64(ns) * uint64(tm.HFTicksPerSecond) / 1_000_000_000)
}

func TestTimeoutGuard_initiatorRetransmits(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, func(c *gflood.Config) {
		c.AlwaysRelayCnt = true
	})

	// Header (2 bytes with the forced relay counter) plus payload gives a
	// 4-byte frame; with the default timing profile one slot is 2080 ticks.
	payload := []byte{0xaa, 0xbb}
	slot := hfTicks(fx.Cfg.Timing, fx.Cfg.Timing.SlotNs(4))
	require.Equal(t, gftimer.Ticks(2080), slot)

	fx.Sched.SetHF(1000)
	require.NoError(t, fx.Engine.Start(localNode, payload, 2, gflood.UnknownNTxMax, false, false))
	require.False(t, fx.Sched.HasPending())

	// The first transmission completing arms the guard two slots past the
	// padded start instant.
	fx.transmitAt(1100)
	require.True(t, fx.Sched.HasPending())
	require.Equal(t, gftimer.Ticks(1070)+2*slot, fx.Sched.PendingAt())

	// A busy radio pushes the guard back one slot and bumps the relay
	// counter the retransmission will carry.
	fx.Radio.Busy = true
	frames := len(fx.Radio.Frames)
	fx.Sched.AdvanceTo(fx.Sched.PendingAt())
	require.True(t, fx.Sched.HasPending())
	require.Equal(t, gftimer.Ticks(1070)+3*slot, fx.Sched.PendingAt())
	require.Len(t, fx.Radio.Frames, frames)

	// Once the radio is idle the guard fires: it retransmits the original
	// payload carrying the latched counter (two slots at arming time plus
	// one push), not the live header value.
	fx.Radio.Busy = false
	fx.Sched.AdvanceTo(fx.Sched.PendingAt())
	require.False(t, fx.Sched.HasPending())
	require.Equal(t, []byte{0xa0, 0x03, 0xaa, 0xbb}, fx.Radio.LastFrame())
	require.Equal(t, 2, fx.Radio.CountOp(gfradiotest.OpStartTX))

	// The guard transmission completing re-arms relative to the instant
	// the guard fired.
	firedAt := fx.Sched.NowHF()
	fx.transmitAt(firedAt + 10)
	require.True(t, fx.Sched.HasPending())
	require.Equal(t, firedAt+2*slot, fx.Sched.PendingAt())
}

func TestTimeoutGuard_receptionCancelsIt(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, func(c *gflood.Config) {
		c.AlwaysRelayCnt = true
	})

	payload := []byte{0xaa, 0xbb}
	require.NoError(t, fx.Engine.Start(localNode, payload, 2, gflood.UnknownNTxMax, false, false))

	fx.transmitAt(1100)
	require.True(t, fx.Sched.HasPending())

	// An incoming preamble takes priority over retransmitting.
	fx.Engine.RxStarted(2000)
	require.False(t, fx.Sched.HasPending())
}

func TestTimeoutGuard_notArmedAfterReception(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, func(c *gflood.Config) {
		c.AlwaysRelayCnt = true
	})

	payload := []byte{0xaa, 0xbb}
	require.NoError(t, fx.Engine.Start(localNode, payload, 2, gflood.UnknownNTxMax, false, false))

	fx.transmitAt(1100)
	require.True(t, fx.Sched.HasPending())

	// Hearing the flood come back proves it is propagating; from then on
	// transmissions complete without re-arming the guard.
	pkt := frame(gflood.Header{NTxMax: 0, RelayCnt: 1}, true, 0xaa, 0xbb)
	fx.receiveAt(pkt, 3000)
	require.False(t, fx.Sched.HasPending())

	fx.transmitAt(6000)
	require.False(t, fx.Sched.HasPending())
}

func TestTimeoutGuard_stopCancelsIt(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, func(c *gflood.Config) {
		c.AlwaysRelayCnt = true
	})

	payload := []byte{0xaa, 0xbb}
	require.NoError(t, fx.Engine.Start(localNode, payload, 2, gflood.UnknownNTxMax, false, false))

	fx.transmitAt(1100)
	require.True(t, fx.Sched.HasPending())

	fx.Engine.Stop()
	require.False(t, fx.Sched.HasPending())
	require.False(t, fx.Engine.IsActive())
}
