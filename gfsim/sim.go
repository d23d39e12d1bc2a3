package gfsim

import (
	"bytes"
	"container/heap"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/bits-and-blooms/bitset"
	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"

	"github.com/gordian-engine/gflood"
	"github.com/gordian-engine/gflood/gftimer"
)

// Config configures a Sim.
type Config struct {
	// Topology wires the virtual ether. Required.
	Topology Topology

	// Timing applies to every node. The zero value means
	// gflood.DefaultTiming(). SyncSetupLFTicks is forced to zero: virtual
	// time cannot advance inside a busy-wait.
	Timing gflood.Timing

	// MaxPayloadLen bounds flood payloads; zero means the gflood default.
	MaxPayloadLen uint8

	// AlwaysRelayCnt is forwarded to every node's engine.
	AlwaysRelayCnt bool

	// DropRate is the probability that a listener misses a transmission
	// entirely, drawn independently per link per transmission. Must be in
	// [0, 1]; 1 blacks the ether out.
	DropRate float64

	// Seed drives every random draw the simulation makes. Equal seeds give
	// byte-identical runs.
	Seed uint64

	// PacketRSSI and NoiseFloor are the signal levels the virtual radios
	// report, in dBm. Zero values default to -60 and -95.
	PacketRSSI int8
	NoiseFloor int8
}

// Node is one simulated flood participant. Its NodeID equals its index in
// Sim.Nodes and in FloodResult slices.
type Node struct {
	ID     gflood.NodeID
	Name   string
	Engine *gflood.Engine

	radio *simRadio
	sched *simScheduler

	// recvBuf is the buffer handed to Engine.Start for the current flood:
	// the payload copy on the initiator, the receive destination elsewhere.
	recvBuf []byte
}

// Sim owns the virtual ether and the nodes attached to it.
type Sim struct {
	log *slog.Logger
	cfg Config

	nodes []*Node

	maxPayloadLen uint8
	hfPerLF       uint64

	now gftimer.Ticks
	seq uint64
	q   eventQueue

	rng *rand.Rand
}

// New builds the nodes of cfg.Topology and attaches them to a fresh ether
// with the virtual clock at zero. A nil log defaults to slog.Default().
func New(log *slog.Logger, cfg Config) (*Sim, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Topology == nil {
		return nil, errors.New("config: Topology is required")
	}
	n := cfg.Topology.Nodes()
	if n < 2 {
		return nil, fmt.Errorf("config: topology spans %d nodes, need at least 2", n)
	}
	if t, ok := cfg.Topology.(Tree); ok && t.BranchFactor < 1 {
		return nil, fmt.Errorf("config: tree branch factor %d, need at least 1", t.BranchFactor)
	}
	if cfg.DropRate < 0 || cfg.DropRate > 1 {
		return nil, fmt.Errorf("config: drop rate %v outside [0, 1]", cfg.DropRate)
	}
	if cfg.Timing.HFTicksPerSecond == 0 {
		cfg.Timing = gflood.DefaultTiming()
	}
	cfg.Timing.SyncSetupLFTicks = 0
	if cfg.PacketRSSI == 0 {
		cfg.PacketRSSI = -60
	}
	if cfg.NoiseFloor == 0 {
		cfg.NoiseFloor = -95
	}

	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:8], cfg.Seed)

	s := &Sim{
		log: log,
		cfg: cfg,
		rng: rand.New(rand.NewChaCha8(seed)),
	}

	for i := range n {
		node := &Node{
			ID:   gflood.NodeID(i),
			Name: petname.Generate(2, "-"),
		}
		node.radio = &simRadio{sim: s, node: node}
		node.sched = &simScheduler{sim: s}

		ecfg := gflood.DefaultConfig()
		ecfg.NodeID = node.ID
		ecfg.Radio = node.radio
		ecfg.Scheduler = node.sched
		ecfg.Timing = cfg.Timing
		if cfg.MaxPayloadLen > 0 {
			ecfg.MaxPayloadLen = cfg.MaxPayloadLen
		}
		ecfg.AlwaysRelayCnt = cfg.AlwaysRelayCnt

		eng, err := gflood.New(log.With("sys", "engine", "node", node.Name), ecfg)
		if err != nil {
			return nil, fmt.Errorf("node %d engine: %w", i, err)
		}
		node.Engine = eng

		s.maxPayloadLen = ecfg.MaxPayloadLen
		s.nodes = append(s.nodes, node)
	}

	s.hfPerLF = uint64(cfg.Timing.HFTicksPerSecond / cfg.Timing.LFTicksPerSecond)

	return s, nil
}

// Nodes returns the simulated nodes, indexed by NodeID.
func (s *Sim) Nodes() []*Node { return s.nodes }

// Now reports the virtual clock, which is monotonic across floods.
func (s *Sim) Now() gftimer.Ticks { return s.now }

// FloodConfig describes one flood for RunFlood.
type FloodConfig struct {
	// Initiator is the node that injects the flood.
	Initiator gflood.NodeID

	// Payload is the packet body to disseminate. Receivers learn its
	// length from the first packet they hear.
	Payload []byte

	// NTxMax bounds per-node transmissions; 0 means unbounded.
	NTxMax uint8

	// Sync makes the flood distribute a reference time.
	Sync bool

	// MaxTicks caps the flood's virtual duration; 0 means
	// DefaultFloodHorizon. Unbounded floods only end at this horizon.
	MaxTicks gftimer.Ticks
}

// DefaultFloodHorizon caps a flood's virtual duration when
// FloodConfig.MaxTicks is zero. Generous: several thousand slots.
const DefaultFloodHorizon gftimer.Ticks = 8_000_000

// RunFlood runs one complete flood to quiescence: receivers arm first, the
// initiator transmits, and events drain in timestamp order until every
// engine has stopped or the horizon passes. Every engine is stopped before
// the result is assembled, so the reported reference times are corrected
// ones.
func (s *Sim) RunFlood(fc FloodConfig) (FloodResult, error) {
	idx := int(fc.Initiator)
	if idx >= len(s.nodes) {
		return FloodResult{}, fmt.Errorf("initiator %d out of range (%d nodes)", fc.Initiator, len(s.nodes))
	}
	if len(fc.Payload) == 0 {
		return FloodResult{}, errors.New("flood needs a payload")
	}
	if len(fc.Payload) > int(s.maxPayloadLen) {
		return FloodResult{}, fmt.Errorf("payload of %d bytes exceeds the %d-byte bound", len(fc.Payload), s.maxPayloadLen)
	}

	horizon := fc.MaxTicks
	if horizon == 0 {
		horizon = DefaultFloodHorizon
	}
	deadline := s.now + horizon

	floodID := uuid.New()
	start := s.now

	for i, node := range s.nodes {
		if i == idx {
			continue
		}
		node.recvBuf = make([]byte, s.maxPayloadLen)
		err := node.Engine.Start(fc.Initiator, node.recvBuf, gflood.UnknownPayloadLen, fc.NTxMax, fc.Sync, false)
		if err != nil {
			return FloodResult{}, fmt.Errorf("start receiver %d: %w", i, err)
		}
	}

	init := s.nodes[idx]
	init.recvBuf = append([]byte(nil), fc.Payload...)
	err := init.Engine.Start(fc.Initiator, init.recvBuf, uint8(len(fc.Payload)), fc.NTxMax, fc.Sync, false)
	if err != nil {
		return FloodResult{}, fmt.Errorf("start initiator %d: %w", idx, err)
	}

	s.drain(deadline)

	// Settle the whole network; Stop corrects each captured reference time
	// back to the initiator's first transmission.
	for _, node := range s.nodes {
		node.Engine.Stop()
	}
	// Whatever is left in the queue belongs to the finished flood: stray
	// receptions and guard callbacks that the Stops above invalidated.
	s.q = nil

	res := s.buildResult(floodID, fc, start)

	s.log.Debug(
		"Flood finished",
		"flood", floodID,
		"initiator", init.Name,
		"successes", res.Successes,
		"duration", res.Duration,
	)

	return res, nil
}

func (s *Sim) buildResult(id uuid.UUID, fc FloodConfig, start gftimer.Ticks) FloodResult {
	n := len(s.nodes)
	res := FloodResult{
		ID:              id,
		Initiator:       fc.Initiator,
		PayloadLen:      uint8(len(fc.Payload)),
		Received:        bitset.New(uint(n)),
		RxCounts:        make([]uint8, n),
		TxCounts:        make([]uint8, n),
		FirstRxRelayCnt: make([]uint8, n),
		TRefs:           make([]gftimer.Ticks, n),
		TRefValid:       make([]bool, n),
		Duration:        s.now - start,
	}

	for i, node := range s.nodes {
		eng := node.Engine
		res.RxCounts[i] = eng.RxCount()
		res.TxCounts[i] = eng.TxCount()
		res.FirstRxRelayCnt[i] = eng.Stats().RelayCntFirstRx
		res.TRefValid[i] = eng.TRefUpdated()
		res.TRefs[i] = eng.TRef()

		if i == int(fc.Initiator) {
			res.Received.Set(uint(i))
			continue
		}
		if eng.RxCount() > 0 && eng.PayloadLen() == res.PayloadLen &&
			bytes.Equal(node.recvBuf[:res.PayloadLen], fc.Payload) {
			res.Received.Set(uint(i))
			res.Successes++
		}
	}

	return res
}

// drain pops events in timestamp order until the queue empties, every
// engine has stopped, or the next event lies past the deadline.
func (s *Sim) drain(deadline gftimer.Ticks) {
	for s.q.Len() > 0 {
		if s.q[0].at > deadline {
			return
		}
		if s.allStopped() {
			return
		}
		ev := heap.Pop(&s.q).(*event)
		s.now = ev.at
		ev.fn(ev.at)
	}
}

func (s *Sim) allStopped() bool {
	for _, node := range s.nodes {
		if node.Engine.IsActive() {
			return false
		}
	}
	return true
}

// schedule enqueues fn at the given virtual instant, never before now.
// Equal instants fire in scheduling order.
func (s *Sim) schedule(at gftimer.Ticks, fn func(now gftimer.Ticks)) {
	if at < s.now {
		at = s.now
	}
	s.seq++
	heap.Push(&s.q, &event{at: at, seq: s.seq, fn: fn})
}

type event struct {
	at  gftimer.Ticks
	seq uint64
	fn  func(now gftimer.Ticks)
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}
