package gfemu_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/gflood"
	"github.com/gordian-engine/gflood/gfemu"
	"github.com/gordian-engine/gflood/internal/gtest"
)

// emuTiming stretches the default slot constants by 200x so that loopback
// latency and goroutine scheduling cannot outrun the retransmission guard.
func emuTiming() gflood.Timing {
	tm := gflood.DefaultTiming()
	tm.TxByteTimeNs *= 200
	tm.TxOffsetNs *= 200
	tm.RxTxTurnaroundNs *= 200
	tm.PropagationDelayNs *= 200
	return tm
}

// newNodePair brings up two started nodes on loopback, peered with each
// other. opts mutate both configs.
func newNodePair(t *testing.T, opts ...func(*gfemu.Config)) (a, b *gfemu.Node) {
	t.Helper()

	mk := func(id gflood.NodeID) *gfemu.Node {
		cfg := gfemu.Config{
			NodeID:   id,
			BindAddr: "127.0.0.1:0",
			Timing:   emuTiming(),
		}
		for _, opt := range opts {
			opt(&cfg)
		}

		n, err := gfemu.NewNode(gtest.NewLogger(t), cfg)
		require.NoError(t, err)
		require.NoError(t, n.Start())
		t.Cleanup(n.Stop)
		return n
	}

	a = mk(1)
	b = mk(2)
	require.NoError(t, a.AddPeer(b.Addr().String()))
	require.NoError(t, b.AddPeer(a.Addr().String()))
	return a, b
}

func waitInactive(t *testing.T, nodes ...*gfemu.Node) {
	t.Helper()

	require.Eventually(t, func() bool {
		for _, n := range nodes {
			if n.IsActive() {
				return false
			}
		}
		return true
	}, 5*time.Second, 5*time.Millisecond)
}

func TestFlood_loopbackDissemination(t *testing.T) {
	t.Parallel()

	a, b := newNodePair(t)

	require.NoError(t, b.Listen(a.NodeID(), 2, true))
	require.NoError(t, a.Initiate([]byte{0xca, 0xfe, 0x01}, 2, true))

	waitInactive(t, a, b)

	bRep := b.EndFlood()
	require.Equal(t, uint8(2), bRep.RxCount)
	require.Equal(t, uint8(2), bRep.TxCount)
	require.Equal(t, uint8(3), bRep.PayloadLen)
	require.Equal(t, []byte{0xca, 0xfe, 0x01}, bRep.Payload)
	require.Equal(t, uint8(0), bRep.RelayCntFirstRx)
	require.True(t, bRep.TRefValid)

	// The initiator hears the listener's first relay, then transmits its
	// second and final frame.
	aRep := a.EndFlood()
	require.Equal(t, uint8(2), aRep.TxCount)
	require.Equal(t, uint8(1), aRep.RxCount)
	require.True(t, aRep.TRefValid)

	require.Equal(t, uint32(1), b.Stats().FloodCnt)
	require.Equal(t, uint32(1), b.Stats().FloodSuccess)
}

func TestFlood_inboundLossIsolatesListener(t *testing.T) {
	t.Parallel()

	a, b := newNodePair(t, func(c *gfemu.Config) { c.DropRate = 1 })

	require.NoError(t, b.Listen(a.NodeID(), 1, false))
	require.NoError(t, a.Initiate([]byte{0xaa}, 1, false))

	waitInactive(t, a)

	aRep := a.EndFlood()
	require.Equal(t, uint8(1), aRep.TxCount)
	require.Equal(t, uint8(0), aRep.RxCount)

	bRep := b.EndFlood()
	require.Equal(t, uint8(0), bRep.RxCount)
	require.Nil(t, bRep.Payload)

	// A flood with no detected preamble stays out of the success-rate
	// accounting.
	require.Equal(t, uint32(0), b.Stats().FloodCnt)
}

func TestNode_argValidation(t *testing.T) {
	t.Parallel()

	a, _ := newNodePair(t)

	require.Error(t, a.Initiate(nil, 1, false))

	oversize := make([]byte, 127)
	require.Error(t, a.Initiate(oversize, 1, false))

	require.Error(t, a.Listen(a.NodeID(), 1, false))
}

func TestNewNode_configValidation(t *testing.T) {
	t.Parallel()

	_, err := gfemu.NewNode(gtest.NewLogger(t), gfemu.Config{
		NodeID:   9,
		BindAddr: "127.0.0.1:0",
		DropRate: 2,
	})
	require.Error(t, err)

	_, err = gfemu.NewNode(gtest.NewLogger(t), gfemu.Config{NodeID: 9})
	require.Error(t, err)
}
