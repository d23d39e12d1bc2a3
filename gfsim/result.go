package gfsim

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"

	"github.com/gordian-engine/gflood"
	"github.com/gordian-engine/gflood/gftimer"
)

// FloodResult summarizes one RunFlood call. Slices are indexed by NodeID.
type FloodResult struct {
	ID        uuid.UUID
	Initiator gflood.NodeID

	// PayloadLen is the length of the disseminated body.
	PayloadLen uint8

	// Received has one bit per node: the initiator's is always set, and a
	// receiver's is set when it decoded the payload intact. Successes
	// counts the receiver bits.
	Received  *bitset.BitSet
	Successes uint

	// RxCounts and TxCounts are the engines' per-flood totals.
	RxCounts []uint8
	TxCounts []uint8

	// FirstRxRelayCnt is the relay counter carried by each node's first
	// accepted reception, zero for nodes that heard nothing.
	FirstRxRelayCnt []uint8

	// TRefs holds each node's corrected reference time where TRefValid is
	// set. In a lossless synchronizing flood every valid entry equals the
	// initiator's first transmission instant.
	TRefs     []gftimer.Ticks
	TRefValid []bool

	// Duration is the virtual time from Start to full quiescence.
	Duration gftimer.Ticks
}

// AllReceived reports whether every node holds the payload.
func (r FloodResult) AllReceived() bool {
	return r.Received.Count() == uint(len(r.RxCounts))
}
