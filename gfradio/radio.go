// Package gfradio defines the radio driver surface a flood engine operates
// and the events a driver delivers back into it.
package gfradio

// OffMode selects the state a radio enters when the current reception or
// transmission finishes.
type OffMode uint8

const (
	// OffModeIdle parks the radio in its idle state.
	OffModeIdle OffMode = iota

	// OffModeRX starts another reception attempt immediately.
	OffModeRX

	// OffModeTX starts transmitting the queued frame immediately.
	OffModeTX
)

// CalibrationMode selects when the radio recalibrates its frequency
// synthesizer.
type CalibrationMode uint8

const (
	// CalibrationModeAuto lets the radio calibrate on state transitions.
	CalibrationModeAuto CalibrationMode = iota

	// CalibrationModeManual calibrates only on an explicit
	// ManualCalibration call, keeping state transitions at a fixed latency.
	CalibrationModeManual
)

// Radio is the transceiver driver a flood engine drives. A driver delivers
// its interrupts to an EventHandler; see that type for the serialization
// contract.
//
// All methods are fire-and-forget register operations; none block.
type Radio interface {
	// StartTX begins a transmission. The frame must be supplied with
	// WriteTXFIFO before the radio finishes sending the preamble.
	StartTX()

	// StartRX begins listening. Calling it while a reception is in
	// progress abandons that reception.
	StartRX()

	// WriteTXFIFO queues one frame, header bytes followed by payload, for
	// the in-progress or next transmission. The slices are only valid
	// during the call.
	WriteTXFIFO(header, payload []byte)

	// FlushRX discards any partially received frame.
	FlushRX()

	// FlushTX discards any queued outgoing frame.
	FlushTX()

	// GoIdle wakes the radio core into its idle state.
	GoIdle()

	// GoSleep puts the radio core into its low-power state.
	GoSleep()

	// ReconfigAfterSleep restores volatile radio registers lost in sleep.
	ReconfigAfterSleep()

	// SetHeaderLenRX sets how many leading bytes of each reception are
	// handed to EventHandler.HeaderReceived.
	SetHeaderLenRX(n uint8)

	// SetRXOffMode selects the state entered when a reception ends.
	SetRXOffMode(m OffMode)

	// SetTXOffMode selects the state entered when a transmission ends.
	SetTXOffMode(m OffMode)

	// SetCalibrationMode selects automatic or manual calibration.
	SetCalibrationMode(m CalibrationMode)

	// ManualCalibration runs one synthesizer calibration now.
	ManualCalibration()

	// LastPacketRSSI reports the signal strength of the most recently
	// received packet, in dBm.
	LastPacketRSSI() int8

	// CurrentRSSI samples the channel's present signal strength, in dBm.
	// The boolean is false while the radio has not settled in receive mode
	// long enough for the reading to be valid.
	CurrentRSSI() (int8, bool)

	// IsBusy reports whether a reception or transmission is in progress.
	IsBusy() bool

	// ClearPendingInterrupts drops radio interrupts latched but not yet
	// delivered.
	ClearPendingInterrupts()
}
