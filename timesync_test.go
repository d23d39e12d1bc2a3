package gflood_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/gflood"
	"github.com/gordian-engine/gflood/gftimer"
)

// The scenarios here run a 4-byte frame (2-byte synchronizing header plus
// 2-byte payload) through the default timing profile, where one slot is
// 2080 high-frequency ticks and the propagation delay truncates to 22.

func TestSync_receiverRecoversInitiatorTime(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	tm := fx.Cfg.Timing
	slot := hfTicks(tm, tm.SlotNs(4))
	tau := hfTicks(tm, tm.PropagationDelayNs)
	require.Equal(t, gftimer.Ticks(2080), slot)
	require.Equal(t, gftimer.Ticks(22), tau)

	buf := make([]byte, fx.Cfg.MaxPayloadLen)
	require.NoError(t, fx.Engine.Start(remoteNode, buf, gflood.UnknownPayloadLen, gflood.UnknownNTxMax, true, false))
	require.False(t, fx.Engine.TRefUpdated())

	// First reception, two hops from the initiator. The reference time is
	// the reception start minus the propagation delay.
	rx1 := gftimer.Ticks(100_000)
	fx.receiveAt(frame(gflood.Header{Sync: true, RelayCnt: 2}, false, 0xca, 0xfe), rx1)
	require.True(t, fx.Engine.TRefUpdated())
	require.Equal(t, rx1-tau, fx.Engine.TRef())

	// Own retransmission exactly one slot after the reference: accepted as
	// a slot measurement.
	tx1 := rx1 - tau + slot
	fx.transmitAt(tx1)

	// The next hop echoes the retransmission one slot later; its preamble
	// reaches this node after the propagation delay. Another measurement.
	rx2 := tx1 + slot + tau
	fx.receiveAt(frame(gflood.Header{Sync: true, RelayCnt: 4}, false, 0xca, 0xfe), rx2)

	// A transmission 15 ticks off the estimate falls outside the
	// acceptance window and must not pollute the average.
	fx.transmitAt(rx2 + slot - tau + 15)

	require.Equal(t, uint8(2), fx.Engine.Stop())

	// Stop walks the reference back two measured slots, landing exactly on
	// the initiator's first transmission.
	require.Equal(t, rx1-tau-2*slot, fx.Engine.TRef())
}

func TestSync_initiatorReferenceIsOwnFirstTransmission(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	payload := []byte{0xaa, 0xbb}
	require.NoError(t, fx.Engine.Start(localNode, payload, 2, 3, true, false))

	tm := fx.Cfg.Timing
	slot := hfTicks(tm, tm.SlotNs(4))
	tau := hfTicks(tm, tm.PropagationDelayNs)

	tx1 := gftimer.Ticks(5000)
	fx.transmitAt(tx1)
	require.True(t, fx.Engine.TRefUpdated())
	require.Equal(t, tx1, fx.Engine.TRef())

	// Hearing the first-hop echo adds a measurement but must not move the
	// already-latched reference.
	fx.receiveAt(frame(gflood.Header{Sync: true, NTxMax: 3, RelayCnt: 1}, false, 0xaa, 0xbb), tx1+slot+tau)
	require.Equal(t, tx1, fx.Engine.TRef())

	// Zero hops to walk back: the corrected reference is unchanged.
	fx.Engine.Stop()
	require.Equal(t, tx1, fx.Engine.TRef())
}

func TestSync_estimateBridgesMissingMeasurements(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	tm := fx.Cfg.Timing
	slot := hfTicks(tm, tm.SlotNs(4))
	tau := hfTicks(tm, tm.PropagationDelayNs)

	buf := make([]byte, fx.Cfg.MaxPayloadLen)
	require.NoError(t, fx.Engine.Start(remoteNode, buf, gflood.UnknownPayloadLen, gflood.UnknownNTxMax, true, false))

	// A single reception and no own transmission: no slot could be
	// measured, so Stop falls back to the analytic estimate.
	rx1 := gftimer.Ticks(80_000)
	fx.receiveAt(frame(gflood.Header{Sync: true, RelayCnt: 3}, false, 0x01, 0x02), rx1)

	require.Equal(t, uint8(1), fx.Engine.Stop())
	require.Equal(t, rx1-tau-3*slot, fx.Engine.TRef())
}

func TestSync_disabledFloodNeverLatches(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	buf := make([]byte, fx.Cfg.MaxPayloadLen)
	require.NoError(t, fx.Engine.Start(remoteNode, buf, gflood.UnknownPayloadLen, gflood.UnknownNTxMax, false, false))

	fx.receiveAt(frame(gflood.Header{RelayCnt: 0}, false, 0x01, 0x02), 40_000)
	fx.transmitAt(44_000)

	require.False(t, fx.Engine.TRefUpdated())
	fx.Engine.Stop()
	require.False(t, fx.Engine.TRefUpdated())
	require.False(t, fx.Engine.SyncEnabled())
}

func TestSync_tRefLowFrequencyProjection(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	tm := fx.Cfg.Timing
	slot := hfTicks(tm, tm.SlotNs(4))
	tau := hfTicks(tm, tm.PropagationDelayNs)

	buf := make([]byte, fx.Cfg.MaxPayloadLen)
	require.NoError(t, fx.Engine.Start(remoteNode, buf, gflood.UnknownPayloadLen, gflood.UnknownNTxMax, true, false))

	rx1 := gftimer.Ticks(100_000)
	fx.receiveAt(frame(gflood.Header{Sync: true, RelayCnt: 2}, false, 0xca, 0xfe), rx1)
	tx1 := rx1 - tau + slot
	fx.transmitAt(tx1)
	fx.Engine.Stop()

	tRef := fx.Engine.TRef()
	require.Equal(t, rx1-tau-2*slot, tRef)

	// With 3.25 MHz against 32768 Hz, 99 whole high-frequency ticks fit in
	// one low-frequency tick. Ten low-frequency ticks after the reference:
	fx.Sched.SetHF(tRef + 990)
	fx.Sched.SetLF(5000)
	require.Equal(t, gftimer.Ticks(4990), fx.Engine.TRefLF())
}
