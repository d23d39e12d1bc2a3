package gfemu

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// Handler processes received datagrams. Handlers are called from the
// transport's receive loop, one datagram at a time, and must not block.
type Handler interface {
	HandleDatagram(data []byte, from net.Addr)
}

// TransportConfig configures a Transport.
type TransportConfig struct {
	// BindAddr is the UDP address to listen on, e.g. "127.0.0.1:9000".
	// Port 0 picks a free port; see Addr.
	BindAddr string

	// Peers are the addresses every Send broadcasts to. More can be added
	// later with AddPeer.
	Peers []string
}

// Transport carries frames between emulated nodes: one UDP socket, a
// static peer list, and broadcast-only sending, which is the closest a
// datagram network comes to a shared radio medium.
type Transport struct {
	log *slog.Logger

	bindAddr string

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	conn     *net.UDPConn
	peers    []*net.UDPAddr
	handlers []Handler
}

// NewTransport returns an unstarted Transport with cfg.Peers resolved. A
// nil log defaults to slog.Default().
func NewTransport(log *slog.Logger, cfg TransportConfig) (*Transport, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.BindAddr == "" {
		return nil, fmt.Errorf("config: BindAddr is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		log:      log,
		bindAddr: cfg.BindAddr,
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, p := range cfg.Peers {
		if err := t.AddPeer(p); err != nil {
			cancel()
			return nil, err
		}
	}
	return t, nil
}

// Start binds the socket and begins receiving.
func (t *Transport) Start() error {
	addr, err := net.ResolveUDPAddr("udp", t.bindAddr)
	if err != nil {
		return fmt.Errorf("resolve bind address %q: %w", t.bindAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen on %q: %w", t.bindAddr, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	go t.listen(conn)
	return nil
}

// Stop shuts the transport down and unblocks the receive loop.
func (t *Transport) Stop() {
	t.cancel()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}

// Addr reports the bound address, nil before Start. With a ":0" bind this
// is how peers learn the picked port.
func (t *Transport) Addr() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

// AddPeer resolves addr and adds it to the broadcast set.
func (t *Transport) AddPeer(addr string) error {
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolve peer %q: %w", addr, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers = append(t.peers, ua)
	return nil
}

// AddHandler registers a datagram handler.
func (t *Transport) AddHandler(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, h)
}

// Send broadcasts one datagram to every peer. It fails only when no peer
// could be written at all; partial failures are logged and absorbed, the
// way a radio neither knows nor cares who heard a transmission.
func (t *Transport) Send(data []byte) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.conn == nil {
		return fmt.Errorf("transport not started")
	}
	if len(t.peers) == 0 {
		return nil
	}

	var sent int
	var lastErr error
	for _, peer := range t.peers {
		if _, err := t.conn.WriteToUDP(data, peer); err != nil {
			lastErr = err
			t.log.Debug("Datagram send failed", "peer", peer, "err", err)
			continue
		}
		sent++
	}
	if sent == 0 {
		return fmt.Errorf("broadcast reached no peers: %w", lastErr)
	}
	return nil
}

func (t *Transport) listen(conn *net.UDPConn) {
	buf := make([]byte, 65507) // Max UDP packet size.

	for {
		select {
		case <-t.ctx.Done():
			return
		default:
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				if t.ctx.Err() != nil {
					return
				}
				continue
			}

			data := make([]byte, n)
			copy(data, buf[:n])

			t.mu.RLock()
			handlers := t.handlers
			t.mu.RUnlock()
			for _, h := range handlers {
				h.HandleDatagram(data, addr)
			}
		}
	}
}
