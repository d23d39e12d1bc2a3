package gfemu

import (
	"sync"

	"github.com/gordian-engine/gflood/gftimer"
)

// lockedScheduler wraps a gftimer.Wall so that callbacks run under the
// owning node's mutex, serialized with datagram delivery and the node API.
// A generation counter rejects callbacks that fired while waiting for the
// mutex after a Cancel or a replacement Schedule.
//
// All methods except the callback trampoline are called under the mutex
// already.
type lockedScheduler struct {
	mu   *sync.Mutex
	wall *gftimer.Wall

	gen uint64
}

var _ gftimer.Scheduler = (*lockedScheduler)(nil)

func (s *lockedScheduler) NowHF() gftimer.Ticks { return s.wall.NowHF() }

func (s *lockedScheduler) NowLF() gftimer.Ticks { return s.wall.NowLF() }

func (s *lockedScheduler) Now() (hf, lf gftimer.Ticks) { return s.wall.Now() }

func (s *lockedScheduler) Schedule(at gftimer.Ticks, fn func(now gftimer.Ticks)) {
	s.gen++
	gen := s.gen
	s.wall.Schedule(at, func(now gftimer.Ticks) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			return
		}
		s.gen++
		fn(now)
	})
}

func (s *lockedScheduler) Cancel() {
	s.gen++
	s.wall.Cancel()
}

func (s *lockedScheduler) UpdateDisable() {}

func (s *lockedScheduler) UpdateEnable() {}
