// Package gfemu runs flood engines over UDP between real processes.
//
// Each node couples an engine to one UDP socket with a static peer list;
// a transmission is one datagram broadcast to every peer, and timestamps
// come from the OS monotonic clock. Datagram delivery, timer callbacks and
// the node API all serialize on one mutex, which is the concurrency
// contract the engine requires.
//
// The emulation demonstrates payload dissemination and statistics across
// processes; it does not model constructive interference or sub-slot
// timing, so the synchronization results are not meaningful. For
// timing-faithful floods use gfsim.
package gfemu
