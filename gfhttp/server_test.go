package gfhttp_test

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/gflood"
	"github.com/gordian-engine/gflood/gfhttp"
	"github.com/gordian-engine/gflood/internal/gtest"
)

// fakeEngine is a canned gfhttp.Engine.
type fakeEngine struct {
	active bool
	rx, tx uint8
	stats  gflood.Stats

	resets atomic.Int32
}

func (e *fakeEngine) IsActive() bool      { return e.active }
func (e *fakeEngine) RxCount() uint8      { return e.rx }
func (e *fakeEngine) TxCount() uint8      { return e.tx }
func (e *fakeEngine) Stats() gflood.Stats { return e.stats }
func (e *fakeEngine) ResetStats()         { e.resets.Add(1) }

func startServer(t *testing.T, ln net.Listener, fe *fakeEngine, id gflood.NodeID) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	srv := gfhttp.NewServer(ctx, gtest.NewLogger(t), gfhttp.Config{
		Listener: ln,
		Engine:   fe,
		NodeID:   id,
	})
	t.Cleanup(func() {
		cancel()
		srv.Wait()
	})
}

func tcpListener(t *testing.T) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func TestServer_status(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{active: true, rx: 2, tx: 3}
	ln := tcpListener(t)
	startServer(t, ln, fe, 7)

	c := gfhttp.NewClient(ln.Addr().String())
	st, err := c.Status(context.Background())
	require.NoError(t, err)

	require.Equal(t, gfhttp.Status{
		NodeID:  7,
		Active:  true,
		RxCount: 2,
		TxCount: 3,
	}, st)
}

func TestServer_stats(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{
		stats: gflood.Stats{
			RelayCntFirstRx: 1,
			RSSI:            -61,
			NoiseFloor:      -97,
			SNR:             36,
			RxAttempts:      3,
			Duration:        12345,
			TimeToFirstRx:   2080,
			HopsSeen:        []uint{0, 1, 2},
			PktCnt:          9,
			PktCntCRCOk:     8,
			FloodCnt:        4,
			FloodSuccess:    3,
			PER:             1111,
			FSR:             7500,
		},
	}
	ln := tcpListener(t)
	startServer(t, ln, fe, 1)

	c := gfhttp.NewClient(ln.Addr().String())
	got, err := c.Stats(context.Background())
	require.NoError(t, err)

	require.Equal(t, fe.stats, got)
}

func TestServer_resetStats(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{}
	ln := tcpListener(t)
	startServer(t, ln, fe, 1)

	c := gfhttp.NewClient(ln.Addr().String())
	require.NoError(t, c.ResetStats(context.Background()))
	require.Equal(t, int32(1), fe.resets.Load())
}

func TestServer_resetRequiresPost(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{}
	ln := tcpListener(t)
	startServer(t, ln, fe, 1)

	resp, err := http.Get("http://" + ln.Addr().String() + "/stats/reset")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Zero(t, fe.resets.Load())
}

func TestServer_unixSocket(t *testing.T) {
	t.Parallel()

	sock := filepath.Join(t.TempDir(), "gflood.sock")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)

	fe := &fakeEngine{stats: gflood.Stats{FloodCnt: 2, FloodSuccess: 2, FSR: 10000}}
	startServer(t, ln, fe, 12)

	c := gfhttp.NewUnixClient(sock)
	ctx := context.Background()

	st, err := c.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, gfhttp.Status{NodeID: 12}, st)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, fe.stats, stats)

	require.NoError(t, c.ResetStats(ctx))
	require.Equal(t, int32(1), fe.resets.Load())
}
