package gflood

// estimateSlot computes the analytic duration of one flood slot for a total
// frame length, in high-frequency ticks.
func (e *Engine) estimateSlot(pktLen uint8) uint32 {
	return e.cfg.Timing.nsToHF(e.cfg.Timing.SlotNs(pktLen))
}

// addSlotMeasurement folds one observed slot duration into the running
// average. Measurements outside the tolerance window around the analytic
// estimate are discarded; they come from missed slots or foreign traffic,
// and one bad sample would poison the reference-time correction.
func (e *Engine) addSlotMeasurement(measured uint32) {
	if measured > e.s.tSlotEstimated-e.cfg.Timing.SlotTolerance &&
		measured < e.s.tSlotEstimated+e.cfg.Timing.SlotTolerance {
		e.s.tSlotSum += uint64(measured)
		e.s.nTSlot++
	}
}
