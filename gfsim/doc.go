// Package gfsim runs whole floods over a virtual ether.
//
// Every node's radio and timer feed a single time-ordered event queue
// sharing one virtual clock, so a multi-hop flood over dozens of nodes runs
// deterministically, instantaneously, and on a single goroutine. The
// channel model keeps consecutive hop transmissions exactly one analytic
// slot apart and treats overlapping byte-identical frames as constructive
// interference, which is the propagation assumption the protocol is built
// on; overlapping frames that differ corrupt the reception.
package gfsim
