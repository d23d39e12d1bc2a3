package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/gordian-engine/gflood"
	"github.com/gordian-engine/gflood/gfemu"
	"github.com/gordian-engine/gflood/gfhttp"
)

// emuFloodSettle is how long a node lets a flood play out after its part
// is started or first heard, before collecting the result. Floods on a
// LAN finish within a few slot times, well under this.
const emuFloodSettle = 250 * time.Millisecond

func newEmuCommand() *cobra.Command {
	var (
		id    uint16
		bind  string
		peers []string

		initiator uint16
		payload   string
		nTxMax    uint8
		sync      bool
		period    time.Duration
		count     int

		dropRate float64
		seed     uint64

		debugSocket string
		debugAddr   string
	)

	cmd := &cobra.Command{
		Use:   "emu",
		Short: "Run one flood node on an emulated UDP medium",
		Long: `Run one flood node on an emulated UDP medium.

The node whose --id equals --initiator floods the payload every period;
every other node listens. Point --peers at the other nodes' bind
addresses.`,

		RunE: func(cmd *cobra.Command, args []string) error {
			log := loggerFrom(cmd)

			node, err := gfemu.NewNode(log, gfemu.Config{
				NodeID:   gflood.NodeID(id),
				BindAddr: bind,
				Peers:    peers,
				DropRate: dropRate,
				Seed:     seed,
			})
			if err != nil {
				return err
			}
			if err := node.Start(); err != nil {
				return err
			}
			defer node.Stop()

			log.Info("Node up", "id", id, "addr", node.Addr())

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var servers []*gfhttp.Server
			defer func() {
				cancel()
				for _, srv := range servers {
					srv.Wait()
				}
			}()

			for _, l := range []struct{ network, addr string }{
				{"unix", debugSocket},
				{"tcp", debugAddr},
			} {
				if l.addr == "" {
					continue
				}
				ln, err := net.Listen(l.network, l.addr)
				if err != nil {
					return fmt.Errorf("failed to listen on debug endpoint: %w", err)
				}
				servers = append(servers, gfhttp.NewServer(
					ctx, log.With("sys", "http"), gfhttp.Config{
						Listener: ln,
						Engine:   node,
						NodeID:   node.NodeID(),
					},
				))
			}

			if id == initiator {
				return runInitiator(ctx, log, node, []byte(payload), nTxMax, sync, period, count)
			}
			return runReceiver(ctx, log, node, gflood.NodeID(initiator), nTxMax, sync, period, count)
		},
	}

	cmd.Flags().Uint16Var(&id, "id", 0, "this node's flood identity")
	cmd.Flags().StringVar(&bind, "bind", "127.0.0.1:0", "UDP address to listen on")
	cmd.Flags().StringSliceVar(&peers, "peers", nil, "peer UDP addresses")
	cmd.Flags().Uint16Var(&initiator, "initiator", 1, "node id of the flood initiator")
	cmd.Flags().StringVar(&payload, "payload", "glossy", "flood payload")
	cmd.Flags().Uint8Var(&nTxMax, "ntx", 3, "transmissions per node, 0 for unbounded")
	cmd.Flags().BoolVar(&sync, "sync", true, "carry the relay counter for time synchronization")
	cmd.Flags().DurationVar(&period, "period", 2*time.Second, "time between floods")
	cmd.Flags().IntVar(&count, "count", 0, "flood rounds before exiting, 0 for unbounded")
	cmd.Flags().Float64Var(&dropRate, "drop-rate", 0, "per-reception drop probability in [0, 1]")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "randomness seed for drop draws")
	cmd.Flags().StringVar(&debugSocket, "debug-socket", "", "unix socket path to serve the debug API on")
	cmd.Flags().StringVar(&debugAddr, "debug-addr", "", "TCP address to serve the debug API on")

	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runInitiator(
	ctx context.Context, log *slog.Logger, node *gfemu.Node,
	payload []byte, nTxMax uint8, sync bool,
	period time.Duration, count int,
) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for sent := 0; count == 0 || sent < count; sent++ {
		if err := node.Initiate(payload, nTxMax, sync); err != nil {
			return err
		}

		ok := sleepCtx(ctx, emuFloodSettle)
		logReport(log, node.EndFlood())
		if !ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func runReceiver(
	ctx context.Context, log *slog.Logger, node *gfemu.Node,
	initiator gflood.NodeID, nTxMax uint8, sync bool,
	period time.Duration, count int,
) error {
	for window := 0; count == 0 || window < count; window++ {
		if err := node.Listen(initiator, nTxMax, sync); err != nil {
			return err
		}

		waitFlood(ctx, node, period)
		logReport(log, node.EndFlood())

		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

// waitFlood returns once a flood has been heard and settled, or after one
// period with nothing heard, or when ctx ends.
func waitFlood(ctx context.Context, node *gfemu.Node, period time.Duration) {
	deadline := time.NewTimer(period)
	defer deadline.Stop()
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-poll.C:
			if node.RxCount() > 0 {
				sleepCtx(ctx, emuFloodSettle)
				return
			}
		}
	}
}

func logReport(log *slog.Logger, rep gfemu.FloodReport) {
	if rep.RxCount == 0 && rep.TxCount == 0 {
		log.Info("Flood window ended with nothing heard")
		return
	}

	log.Info("Flood ended",
		"rx", rep.RxCount,
		"tx", rep.TxCount,
		"payload", fmt.Sprintf("%x", rep.Payload),
		"relay_cnt_first_rx", rep.RelayCntFirstRx,
		"t_ref_valid", rep.TRefValid,
		"t_ref", rep.TRef,
	)
}

// sleepCtx sleeps for d, returning false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
