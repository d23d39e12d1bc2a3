package gftimer

// Ticks is an absolute time expressed in clock ticks.
//
// Two clock domains share this type: a high-frequency clock used for slot
// timing and reference timestamps, and a low-frequency clock that keeps
// counting while the radio sleeps. Values from different domains are never
// interchangeable; APIs document which domain they use.
type Ticks uint64
