package gflood

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gordian-engine/gflood/gfradio"
	"github.com/gordian-engine/gflood/gftimer"
)

// NodeID identifies a node in the network.
type NodeID uint16

// Role distinguishes the node that injects a flood from the nodes that
// relay it. It is resolved once at Start and consulted by value thereafter,
// never re-derived mid-flood.
type Role uint8

const (
	// RoleReceiver listens first and relays what it hears.
	RoleReceiver Role = iota

	// RoleInitiator transmits first and guards the flood with the
	// retransmission timeout.
	RoleInitiator
)

// String returns a short lowercase name for the role.
func (r Role) String() string {
	switch r {
	case RoleReceiver:
		return "receiver"
	case RoleInitiator:
		return "initiator"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// ErrPayloadTooLarge is returned by Start when an initiator's header and
// payload together would exceed the maximum packet length.
var ErrPayloadTooLarge = errors.New("payload exceeds maximum packet length")

// Config configures an Engine.
type Config struct {
	// NodeID is this node's identity. Start compares it against the
	// initiator argument to resolve the session role.
	NodeID NodeID

	// Radio is the transceiver driver. Required.
	Radio gfradio.Radio

	// Scheduler is the timer service. Required.
	Scheduler gftimer.Scheduler

	// Timing holds the clock rates and transceiver constants.
	Timing Timing

	// MaxPayloadLen bounds the payload of any flood this node joins.
	MaxPayloadLen uint8

	// AlwaysRelayCnt puts the relay counter on the wire even for floods
	// without synchronization.
	AlwaysRelayCnt bool

	// CollectStats attaches the statistics accumulator.
	CollectStats bool

	// AlwaysSampleNoise samples the channel noise floor at the start of
	// every flood a receiver joins, not only synchronizing ones.
	// Meaningless unless CollectStats is set.
	AlwaysSampleNoise bool
}

// DefaultConfig returns a Config with the default timing profile, a
// 126-byte payload bound and statistics enabled. The caller must still
// supply NodeID, Radio and Scheduler.
func DefaultConfig() Config {
	return Config{
		Timing:        DefaultTiming(),
		MaxPayloadLen: 126,
		CollectStats:  true,
	}
}

// Engine runs one flood at a time over a radio driver.
//
// The engine takes no locks and owns no goroutines: the radio driver and
// timer service must deliver events serialized with each other and with
// Start and Stop. Accessors read session state and belong to that same
// execution context.
type Engine struct {
	log *slog.Logger

	cfg Config

	radio gfradio.Radio
	sched gftimer.Scheduler

	s session

	// stats is nil when collection is disabled.
	stats *floodStats

	// hdrBuf backs the encoded header handed to WriteTXFIFO.
	hdrBuf [MaxHeaderLen]byte
}

// session is the per-flood state. Start resets it wholesale.
type session struct {
	role      Role
	initiator NodeID

	// payload is the caller's buffer: the outgoing packet body on the
	// initiator, the receive destination on receivers.
	payload    []byte
	payloadLen uint8

	// hdr is the working header copy; its relay counter is the value this
	// node's own next retransmission will carry.
	hdr      Header
	headerOK bool

	active bool
	nRx    uint8
	nTx    uint8

	relayCntLastRX  uint8
	relayCntLastTX  uint8
	relayCntTRef    uint8
	relayCntTimeout uint8

	tRef        gftimer.Ticks
	tRefUpdated bool

	tRxStart gftimer.Ticks
	tRxStop  gftimer.Ticks
	tTxStart gftimer.Ticks
	tTxStop  gftimer.Ticks

	// tTimeout is the instant the last guarded transmission was scheduled
	// for; the retransmission timeout counts slots from here.
	tTimeout gftimer.Ticks

	tSlotEstimated uint32
	tSlotSum       uint64
	nTSlot         uint8
}

// New returns an idle Engine. A nil log defaults to slog.Default().
func New(log *slog.Logger, cfg Config) (*Engine, error) {
	if cfg.Radio == nil {
		return nil, errors.New("config: Radio is required")
	}
	if cfg.Scheduler == nil {
		return nil, errors.New("config: Scheduler is required")
	}
	if cfg.Timing.HFTicksPerSecond == 0 || cfg.Timing.LFTicksPerSecond == 0 {
		return nil, errors.New("config: Timing clock rates are required")
	}
	if int(cfg.MaxPayloadLen)+MaxHeaderLen > 255 {
		return nil, fmt.Errorf(
			"config: MaxPayloadLen %d does not leave room for the header in a 255-byte frame",
			cfg.MaxPayloadLen,
		)
	}

	if log == nil {
		log = slog.Default()
	}

	e := &Engine{
		log:   log,
		cfg:   cfg,
		radio: cfg.Radio,
		sched: cfg.Scheduler,
	}
	if cfg.CollectStats {
		e.stats = &floodStats{}
	}
	return e, nil
}

// Start begins a flood. The node whose NodeID equals initiator transmits
// first; every other node listens. payload is the outgoing packet body on
// the initiator and the receive buffer everywhere else (so receivers should
// size it at MaxPayloadLen). payloadLen is the expected body length, or
// UnknownPayloadLen to learn it from the first valid packet. nTxMax bounds
// per-node transmissions to its low four bits, with UnknownNTxMax meaning
// unbounded. withSync makes the flood distribute a reference time, and
// withRFCal runs a radio calibration before the flood.
//
// Start returns ErrPayloadTooLarge for an initiator whose frame would not
// fit in a packet; the session is then left inactive with zero receptions,
// and the radio untouched.
//
// Start assumes the engine is idle: freshly constructed, or after Stop.
func (e *Engine) Start(initiator NodeID, payload []byte, payloadLen uint8, nTxMax uint8, withSync, withRFCal bool) error {
	var setupStart gftimer.Ticks
	if e.cfg.Timing.SyncSetupLFTicks > 0 {
		setupStart = e.sched.NowLF()
	}

	e.sched.UpdateDisable()

	role := RoleReceiver
	if initiator == e.cfg.NodeID {
		role = RoleInitiator
	}

	e.s = session{
		role:       role,
		initiator:  initiator,
		payload:    payload,
		payloadLen: payloadLen,
		active:     true,
		hdr: Header{
			Sync:   withSync,
			NTxMax: nTxMax & headerNTxMask,
		},
	}

	if e.stats != nil {
		e.stats.resetFlood()
	}

	if role == RoleInitiator {
		if int(payloadLen)+int(e.headerLen()) > int(e.maxPacketLen()) {
			e.s.active = false
			e.sched.UpdateEnable()
			return ErrPayloadTooLarge
		}
		if int(payloadLen) > len(payload) {
			e.s.active = false
			e.sched.UpdateEnable()
			return fmt.Errorf("payload buffer holds %d bytes, %d declared", len(payload), payloadLen)
		}
	}

	// Wake the radio core and configure the automatic RX/TX turnaround.
	e.radio.GoIdle()
	e.radio.SetRXOffMode(gfradio.OffModeTX)
	e.radio.SetTXOffMode(gfradio.OffModeRX)
	e.radio.SetCalibrationMode(gfradio.CalibrationModeManual)
	e.radio.ReconfigAfterSleep()
	if withRFCal {
		e.radio.ManualCalibration()
	}
	e.radio.SetHeaderLenRX(e.headerLen())

	if role == RoleInitiator {
		if withSync && e.cfg.Timing.SyncSetupLFTicks > 0 {
			// Hold the first preamble back until receivers have had time
			// to arm.
			target := setupStart + gftimer.Ticks(e.cfg.Timing.SyncSetupLFTicks)
			for e.sched.NowLF() < target {
			}
		}

		e.s.tTimeout = e.sched.NowHF() + gftimer.Ticks(e.cfg.Timing.TimeoutExtraTicks)
		e.radio.StartTX()
		if e.stats != nil {
			e.stats.floodStart = e.sched.NowHF()
		}
		e.radio.WriteTXFIFO(e.wireHeader(), payload[:payloadLen])
		e.s.relayCntTimeout = 0
	} else {
		e.radio.StartRX()
		if e.stats != nil {
			e.stats.floodStart = e.sched.NowHF()
			if withSync || e.cfg.AlwaysSampleNoise {
				if rssi, ok := e.radio.CurrentRSSI(); ok {
					e.stats.rssiNoise = rssi
				}
			}
		}
	}

	e.sched.UpdateEnable()

	e.log.Debug(
		"Flood started",
		"role", role,
		"initiator", initiator,
		"payload_len", payloadLen,
		"n_tx_max", e.s.hdr.NTxMax,
		"sync", withSync,
	)
	return nil
}

// Stop ends the flood: it cancels the timeout guard, quiesces the radio,
// corrects the reference time back to the initiator's first transmission,
// and finalizes statistics. It reports how many receptions the flood had.
// Stopping when no flood is active is a no-op that still reports the last
// flood's count; Stop is safe to call from within event handlers.
func (e *Engine) Stop() uint8 {
	if !e.s.active {
		return e.s.nRx
	}

	e.sched.Cancel()
	e.radio.FlushRX()
	e.radio.FlushTX()
	// The radio loses volatile registers in sleep; Start restores them.
	e.radio.GoSleep()
	e.radio.ClearPendingInterrupts()

	e.s.active = false

	if e.s.tRefUpdated {
		// Walk the local capture back to the initiator's first
		// transmission: one slot per relay hop, from the measured average
		// when at least one measurement survived, from the analytic
		// estimate otherwise.
		if e.s.nTSlot > 0 {
			e.s.tRef -= gftimer.Ticks(uint64(e.s.relayCntTRef) * e.s.tSlotSum / uint64(e.s.nTSlot))
		} else {
			e.s.tRef -= gftimer.Ticks(uint64(e.s.relayCntTRef) * uint64(e.s.tSlotEstimated))
		}
	}

	if e.stats != nil {
		e.stats.floodStopped(e.sched.NowHF(), e.s.role, e.s.nRx)
	}

	e.sched.UpdateEnable()

	e.log.Debug(
		"Flood stopped",
		"role", e.s.role,
		"n_rx", e.s.nRx,
		"n_tx", e.s.nTx,
		"t_ref_updated", e.s.tRefUpdated,
	)

	return e.s.nRx
}

// wireHeader encodes the session's working header into the engine's
// scratch buffer. The result is only valid until the next call.
func (e *Engine) wireHeader() []byte {
	return e.s.hdr.AppendWire(e.hdrBuf[:0], e.cfg.AlwaysRelayCnt)
}

// updateTRef latches the flood's reference time and the hop count it was
// captured at. It is called at most once per flood.
func (e *Engine) updateTRef(t gftimer.Ticks, relayCnt uint8) {
	e.s.tRef = t
	e.s.tRefUpdated = true
	e.s.relayCntTRef = relayCnt
}

// IsActive reports whether a flood is in progress.
func (e *Engine) IsActive() bool { return e.s.active }

// RxCount reports the successful receptions of the current or last flood.
func (e *Engine) RxCount() uint8 { return e.s.nRx }

// TxCount reports the transmissions of the current or last flood.
func (e *Engine) TxCount() uint8 { return e.s.nTx }

// PayloadLen reports the payload length in use, either as declared at Start
// or as learned from the first valid packet.
func (e *Engine) PayloadLen() uint8 { return e.s.payloadLen }

// Header returns the session's working header copy. Its relay counter is
// the value this node's next retransmission would carry.
func (e *Engine) Header() Header { return e.s.hdr }

// SyncEnabled reports whether the current or last flood distributes a
// reference time.
func (e *Engine) SyncEnabled() bool { return e.s.hdr.Sync }

// TRefUpdated reports whether the current or last flood captured a
// reference time.
func (e *Engine) TRefUpdated() bool { return e.s.tRefUpdated }

// TRef reports the reference time on the high-frequency clock. While the
// flood is active this is the raw local capture; after Stop it is corrected
// back to the initiator's first transmission.
func (e *Engine) TRef() gftimer.Ticks { return e.s.tRef }

// TRefLF projects the reference time onto the low-frequency clock, using a
// paired reading of both clocks.
func (e *Engine) TRefLF() gftimer.Ticks {
	hfNow, lfNow := e.sched.Now()
	return lfNow - gftimer.Ticks(uint64(hfNow-e.s.tRef)/e.cfg.Timing.hfPerLF())
}
