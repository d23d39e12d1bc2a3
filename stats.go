package gflood

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/gordian-engine/gflood/gftimer"
)

// floodStats is the statistics accumulator behind an Engine. A nil
// *floodStats disables collection entirely.
type floodStats struct {
	// Values of the last (or in-progress) flood.
	relayCntFirstRx uint8
	rssiNoise       int8
	rssiSum         int16
	rxStarted       uint8
	rxFail          uint8
	alreadyCounted  bool
	floodStart      gftimer.Ticks
	duration        gftimer.Ticks
	timeToFirstRx   gftimer.Ticks
	hopsSeen        bitset.BitSet

	// Cumulative values since the last reset.
	pktCnt       uint32
	pktCntCRCOk  uint32
	floodCnt     uint32
	floodSuccess uint32
	errorCnt     uint16
}

// resetFlood clears the per-flood values at the start of a new flood.
// Cumulative counters carry over.
func (st *floodStats) resetFlood() {
	st.relayCntFirstRx = 0
	st.rssiSum = 0
	st.rxStarted = 0
	st.rxFail = 0
	st.alreadyCounted = false
	st.floodStart = 0
	st.duration = 0
	st.timeToFirstRx = 0
	st.hopsSeen.ClearAll()
}

// floodStopped finalizes the flood's values. A flood only enters the
// cumulative flood counters on receivers, and only when at least a preamble
// was detected; an initiator always "hears" its own flood, so counting it
// would skew the success rate.
func (st *floodStats) floodStopped(now gftimer.Ticks, role Role, nRx uint8) {
	st.duration = now - st.floodStart

	if role != RoleInitiator {
		if st.rxStarted > 0 {
			st.floodCnt++
		}
		if nRx > 0 {
			st.floodSuccess++
		}
	}
}

// Stats is a point-in-time snapshot of the statistics accumulator, fit for
// logging or serving over the debug endpoint.
type Stats struct {
	// Values of the last (or in-progress) flood.

	// RelayCntFirstRx is the relay counter carried by the first accepted
	// reception.
	RelayCntFirstRx uint8 `json:"relay_cnt_first_rx"`

	// RSSI is the mean signal strength over the flood's receptions, in
	// dBm. Zero when nothing was received.
	RSSI int8 `json:"rssi"`

	// NoiseFloor is the channel strength sampled before the flood, in dBm.
	NoiseFloor int8 `json:"noise_floor"`

	// SNR is RSSI relative to NoiseFloor. Zero when either is missing.
	SNR int8 `json:"snr"`

	// RxAttempts counts preamble detections; RxFailures counts attempts
	// rejected for a bad header or CRC.
	RxAttempts uint8 `json:"rx_attempts"`
	RxFailures uint8 `json:"rx_failures"`

	// Duration is how long the flood ran, and TimeToFirstRx how long until
	// its first preamble, both in high-frequency ticks.
	Duration      gftimer.Ticks `json:"duration"`
	TimeToFirstRx gftimer.Ticks `json:"time_to_first_rx"`

	// HopsSeen lists the distinct relay-counter values among accepted
	// receptions, ascending.
	HopsSeen []uint `json:"hops_seen,omitempty"`

	// Cumulative values since the last reset.
	PktCnt       uint32 `json:"pkt_cnt"`
	PktCntCRCOk  uint32 `json:"pkt_cnt_crc_ok"`
	FloodCnt     uint32 `json:"flood_cnt"`
	FloodSuccess uint32 `json:"flood_success"`
	ErrorCnt     uint16 `json:"error_cnt"`

	// PER is the packet error rate and FSR the flood success rate, both in
	// parts per ten thousand.
	PER uint16 `json:"per"`
	FSR uint16 `json:"fsr"`
}

// Stats returns a snapshot of the statistics accumulator. It returns the
// zero Stats when collection is disabled.
func (e *Engine) Stats() Stats {
	if e.stats == nil {
		return Stats{}
	}

	st := e.stats
	out := Stats{
		RelayCntFirstRx: st.relayCntFirstRx,
		NoiseFloor:      st.rssiNoise,
		RxAttempts:      st.rxStarted,
		RxFailures:      st.rxFail,
		Duration:        st.duration,
		TimeToFirstRx:   st.timeToFirstRx,

		PktCnt:       st.pktCnt,
		PktCntCRCOk:  st.pktCntCRCOk,
		FloodCnt:     st.floodCnt,
		FloodSuccess: st.floodSuccess,
		ErrorCnt:     st.errorCnt,
	}

	// RSSI readings only mean something once a packet arrived.
	if e.s.nRx > 0 && st.rssiSum != 0 {
		out.RSSI = int8(st.rssiSum / int16(e.s.nRx))
		if st.rssiNoise != 0 {
			out.SNR = out.RSSI - st.rssiNoise
		}
	}

	if st.pktCnt > 0 {
		out.PER = uint16(10000 - uint64(st.pktCntCRCOk)*10000/uint64(st.pktCnt))
	}
	out.FSR = 10000
	if st.floodCnt > 0 {
		out.FSR = uint16(uint64(st.floodSuccess) * 10000 / uint64(st.floodCnt))
	}

	if c := st.hopsSeen.Count(); c > 0 {
		out.HopsSeen = make([]uint, 0, c)
		for i, ok := st.hopsSeen.NextSet(0); ok; i, ok = st.hopsSeen.NextSet(i + 1) {
			out.HopsSeen = append(out.HopsSeen, i)
		}
	}

	return out
}

// ResetStats clears the cumulative counters. Last-flood values are left in
// place for inspection; the next Start overwrites them.
func (e *Engine) ResetStats() {
	if e.stats == nil {
		return
	}
	e.stats.pktCnt = 0
	e.stats.pktCntCRCOk = 0
	e.stats.floodCnt = 0
	e.stats.floodSuccess = 0
	e.stats.errorCnt = 0
}

// countRxFail counts one failed reception attempt, at most once per
// attempt regardless of how many events report the same failure.
func (e *Engine) countRxFail() {
	if e.stats == nil || e.stats.alreadyCounted {
		return
	}
	e.stats.rxFail++
	e.stats.alreadyCounted = true
}
