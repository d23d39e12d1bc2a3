package gfemu

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync"

	"github.com/gordian-engine/gflood"
	"github.com/gordian-engine/gflood/gftimer"
)

// Config configures a Node.
type Config struct {
	// NodeID is this node's flood identity. Every node on the medium needs
	// a distinct one.
	NodeID gflood.NodeID

	// BindAddr is the UDP address to listen on; Peers are the addresses
	// frames are broadcast to. More peers can be added after Start.
	BindAddr string
	Peers    []string

	// Timing applies to the engine and the wall clock. The zero value
	// means gflood.DefaultTiming().
	Timing gflood.Timing

	// MaxPayloadLen bounds flood payloads; zero means the gflood default.
	MaxPayloadLen uint8

	// AlwaysRelayCnt is forwarded to the engine.
	AlwaysRelayCnt bool

	// DropRate is the probability an inbound datagram is discarded before
	// it reaches the radio, for exercising loss recovery. Must be in
	// [0, 1].
	DropRate float64

	// Seed drives the drop draws.
	Seed uint64

	// PacketRSSI and NoiseFloor are the synthetic signal levels the
	// emulated radio reports, in dBm. Zero values default to -60 and -95.
	PacketRSSI int8
	NoiseFloor int8
}

// Node is one emulated flood participant: an engine over a UDP medium and
// the OS clock. All exported methods are safe for concurrent use.
type Node struct {
	log *slog.Logger
	cfg Config

	tr    *Transport
	clock *gftimer.Wall

	maxPayloadLen uint8

	mu  sync.Mutex
	eng *gflood.Engine
	rad *radio

	// buf backs the current flood: the payload on the initiator, the
	// receive destination on a listener.
	buf []byte
}

// NewNode builds an unstarted Node. A nil log defaults to slog.Default().
func NewNode(log *slog.Logger, cfg Config) (*Node, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.DropRate < 0 || cfg.DropRate > 1 {
		return nil, fmt.Errorf("config: drop rate %v outside [0, 1]", cfg.DropRate)
	}
	if cfg.Timing.HFTicksPerSecond == 0 {
		cfg.Timing = gflood.DefaultTiming()
	}
	if cfg.PacketRSSI == 0 {
		cfg.PacketRSSI = -60
	}
	if cfg.NoiseFloor == 0 {
		cfg.NoiseFloor = -95
	}

	tr, err := NewTransport(log.With("sys", "transport"), TransportConfig{
		BindAddr: cfg.BindAddr,
		Peers:    cfg.Peers,
	})
	if err != nil {
		return nil, err
	}

	n := &Node{
		log:   log,
		cfg:   cfg,
		tr:    tr,
		clock: gftimer.NewWall(uint64(cfg.Timing.HFTicksPerSecond), uint64(cfg.Timing.LFTicksPerSecond)),
	}

	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:8], cfg.Seed)

	n.rad = &radio{
		log:        log.With("sys", "radio"),
		mu:         &n.mu,
		clock:      n.clock,
		tr:         tr,
		timing:     cfg.Timing,
		dropRate:   cfg.DropRate,
		rng:        rand.New(rand.NewChaCha8(seed)),
		packetRSSI: cfg.PacketRSSI,
		noiseFloor: cfg.NoiseFloor,
	}

	ecfg := gflood.DefaultConfig()
	ecfg.NodeID = cfg.NodeID
	ecfg.Radio = n.rad
	ecfg.Scheduler = &lockedScheduler{mu: &n.mu, wall: n.clock}
	ecfg.Timing = cfg.Timing
	if cfg.MaxPayloadLen > 0 {
		ecfg.MaxPayloadLen = cfg.MaxPayloadLen
	}
	ecfg.AlwaysRelayCnt = cfg.AlwaysRelayCnt

	eng, err := gflood.New(log.With("sys", "engine"), ecfg)
	if err != nil {
		return nil, err
	}
	n.eng = eng
	n.rad.handler = eng
	n.maxPayloadLen = ecfg.MaxPayloadLen

	tr.AddHandler(n)
	return n, nil
}

// Start brings the transport up.
func (n *Node) Start() error { return n.tr.Start() }

// Stop ends any flood in progress and shuts the transport down.
func (n *Node) Stop() {
	n.mu.Lock()
	n.eng.Stop()
	n.mu.Unlock()

	n.tr.Stop()
}

// Addr reports the transport's bound address, nil before Start.
func (n *Node) Addr() net.Addr { return n.tr.Addr() }

// AddPeer adds a broadcast destination.
func (n *Node) AddPeer(addr string) error { return n.tr.AddPeer(addr) }

// HandleDatagram feeds an inbound datagram to the radio. It is the
// Transport handler; not for direct use.
func (n *Node) HandleDatagram(data []byte, from net.Addr) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rad.deliver(data)
}

// Initiate starts a flood with this node as the initiator.
func (n *Node) Initiate(payload []byte, nTxMax uint8, withSync bool) error {
	if len(payload) == 0 {
		return fmt.Errorf("flood needs a payload")
	}
	if len(payload) > int(n.maxPayloadLen) {
		return fmt.Errorf("payload of %d bytes exceeds the %d-byte bound", len(payload), n.maxPayloadLen)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.buf = append(n.buf[:0], payload...)
	return n.eng.Start(n.cfg.NodeID, n.buf, uint8(len(payload)), nTxMax, withSync, false)
}

// Listen joins a flood initiated by another node, learning the payload
// length from the first packet heard.
func (n *Node) Listen(initiator gflood.NodeID, nTxMax uint8, withSync bool) error {
	if initiator == n.cfg.NodeID {
		return fmt.Errorf("node %d cannot listen for its own flood", initiator)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.buf = make([]byte, n.maxPayloadLen)
	return n.eng.Start(initiator, n.buf, gflood.UnknownPayloadLen, nTxMax, withSync, false)
}

// FloodReport is what EndFlood hands back about the finished flood.
type FloodReport struct {
	RxCount uint8
	TxCount uint8

	// PayloadLen and Payload are the received body; Payload is nil when
	// nothing arrived.
	PayloadLen uint8
	Payload    []byte

	RelayCntFirstRx uint8

	// TRef is the flood's corrected reference time on this node's
	// high-frequency clock, valid when TRefValid is set.
	TRef      gftimer.Ticks
	TRefValid bool
}

// EndFlood stops the flood in progress, if any, and reports what it
// achieved.
func (n *Node) EndFlood() FloodReport {
	n.mu.Lock()
	defer n.mu.Unlock()

	nRx := n.eng.Stop()
	rep := FloodReport{
		RxCount:         nRx,
		TxCount:         n.eng.TxCount(),
		PayloadLen:      n.eng.PayloadLen(),
		RelayCntFirstRx: n.eng.Stats().RelayCntFirstRx,
		TRef:            n.eng.TRef(),
		TRefValid:       n.eng.TRefUpdated(),
	}
	if nRx > 0 {
		rep.Payload = append([]byte(nil), n.buf[:rep.PayloadLen]...)
	}
	return rep
}

// IsActive reports whether a flood is in progress.
func (n *Node) IsActive() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.eng.IsActive()
}

// RxCount reports the current flood's receptions.
func (n *Node) RxCount() uint8 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.eng.RxCount()
}

// TxCount reports the current flood's transmissions.
func (n *Node) TxCount() uint8 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.eng.TxCount()
}

// Stats snapshots the engine's statistics accumulator.
func (n *Node) Stats() gflood.Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.eng.Stats()
}

// ResetStats clears the engine's cumulative statistics.
func (n *Node) ResetStats() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.eng.ResetStats()
}

// NodeID reports the node's flood identity.
func (n *Node) NodeID() gflood.NodeID { return n.cfg.NodeID }
