// Package gflood implements a Glossy-style flood: one packet, injected by a
// single initiator, is re-broadcast by every node that hears it, with
// concurrent identical retransmissions relied upon to superimpose
// constructively. A flood both disseminates the payload and hands every
// participant a common reference time, derived purely from local RX/TX
// timestamps and the relay counter carried in the in-band header.
//
// The [Engine] is a radio-driven state machine: it owns no goroutines and
// takes no locks. The radio driver and timer service must deliver events
// and callbacks serialized with each other and with Start and Stop; see
// [gfradio.EventHandler] and [gftimer.Scheduler] for that contract. The
// gfsim package runs many engines against a simulated ether, and gfemu runs
// one engine per OS process over UDP.
package gflood
