package gfradio

import "github.com/gordian-engine/gflood/gftimer"

// EventHandler receives radio interrupts translated into events.
//
// Drivers must deliver events one at a time, in the order the radio raised
// them, serialized with any timer callbacks feeding the same handler.
// Implementations can therefore assume that no two methods run
// concurrently. Timestamps are high-frequency clock readings captured by
// the driver at the corresponding radio edge.
type EventHandler interface {
	// RxStarted reports a detected preamble and sync word.
	RxStarted(ts gftimer.Ticks)

	// HeaderReceived reports the first bytes of the frame being received,
	// before the CRC is known. pktLen is the frame's declared over-the-air
	// length. The handler may react by restarting reception, which
	// abandons the rest of the frame.
	HeaderReceived(ts gftimer.Ticks, header []byte, pktLen uint8)

	// RxEnded reports a completed reception with a valid CRC. pkt holds
	// the whole frame, header included, with len(pkt) equal to pktLen.
	// The slice is only valid during the call.
	RxEnded(ts gftimer.Ticks, pkt []byte, pktLen uint8)

	// RxFailed reports a reception aborted by a bad CRC.
	RxFailed(ts gftimer.Ticks)

	// TxStarted reports the start of a transmission.
	TxStarted(ts gftimer.Ticks)

	// TxEnded reports a completed transmission.
	TxEnded(ts gftimer.Ticks)

	// RxTxError reports a radio fault outside the normal RX/TX flow.
	RxTxError(ts gftimer.Ticks)
}
