package gflood

// Timing collects the clock rates and transceiver constants the engine
// needs to turn packet lengths into slot durations. Per-packet arithmetic
// happens in high-frequency ticks; the nanosecond fields describe the
// attached radio.
type Timing struct {
	// HFTicksPerSecond and LFTicksPerSecond are the rates of the two
	// clocks of the gftimer.Scheduler in use.
	HFTicksPerSecond uint32
	LFTicksPerSecond uint32

	// TxByteTimeNs is the air time of one packet byte.
	TxByteTimeNs uint32

	// TxOffsetNs is the fixed per-frame air-time overhead: preamble, sync
	// word and length byte.
	TxOffsetNs uint32

	// RxTxTurnaroundNs is the radio's switching time from the end of a
	// reception to the start of the following transmission.
	RxTxTurnaroundNs uint32

	// PropagationDelayNs is the fixed delay between a transmission
	// starting and a listener's reception starting.
	PropagationDelayNs uint32

	// SlotTolerance bounds how far a measured slot duration may deviate
	// from the analytic estimate and still enter the running average, in
	// high-frequency ticks.
	SlotTolerance uint32

	// TimeoutExtraTicks pads the retransmission timeout baseline to absorb
	// callback latency, in high-frequency ticks.
	TimeoutExtraTicks uint32

	// SlotTimeoutSlots is how many slot durations past the last scheduled
	// transmission the retransmission timeout fires. Values below 2 leave
	// no room to receive a packet in between.
	SlotTimeoutSlots uint8

	// SyncSetupLFTicks delays a synchronizing initiator's first
	// transmission until this much low-frequency time has passed since
	// Start was called, giving receivers time to arm. Zero disables the
	// wait.
	SyncSetupLFTicks uint16
}

// DefaultTiming models a sub-GHz transceiver at 250 kbit/s with a 3.25 MHz
// timestamp clock and a 32768 Hz sleep clock.
func DefaultTiming() Timing {
	return Timing{
		HFTicksPerSecond:   3_250_000,
		LFTicksPerSecond:   32_768,
		TxByteTimeNs:       32_000,
		TxOffsetNs:         273_000,
		RxTxTurnaroundNs:   150_000,
		PropagationDelayNs: 7_000,
		SlotTolerance:      10,
		TimeoutExtraTicks:  70,
		SlotTimeoutSlots:   2,
	}
}

// nsToHF converts nanoseconds to high-frequency ticks, rounding down.
func (t Timing) nsToHF(ns uint32) uint32 {
	return uint32(uint64(ns) * uint64(t.HFTicksPerSecond) / 1_000_000_000)
}

// hfPerLF reports how many whole high-frequency ticks fit in one
// low-frequency tick.
func (t Timing) hfPerLF() uint64 {
	return uint64(t.HFTicksPerSecond / t.LFTicksPerSecond)
}

// AirTimeNs reports the over-the-air duration of a frame of pktLen bytes,
// in nanoseconds. The three extra byte times cover the CRC and the radio's
// internal pipeline.
func (t Timing) AirTimeNs(pktLen uint8) uint32 {
	return t.TxByteTimeNs*(uint32(pktLen)+3) + t.TxOffsetNs
}

// SlotNs reports the analytic duration of one flood slot for a frame of
// pktLen bytes, in nanoseconds: air time plus the RX-to-TX turnaround,
// minus the propagation delay already absorbed in receive timestamps.
func (t Timing) SlotNs(pktLen uint8) uint32 {
	return t.AirTimeNs(pktLen) + t.RxTxTurnaroundNs - t.PropagationDelayNs
}
