package gfsim_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/gflood/gfsim"
	"github.com/gordian-engine/gflood/gftimer"
	"github.com/gordian-engine/gflood/internal/gtest"
)

func newSim(t *testing.T, cfg gfsim.Config) *gfsim.Sim {
	t.Helper()

	s, err := gfsim.New(gtest.NewLogger(t), cfg)
	require.NoError(t, err)
	return s
}

func TestNew_configValidation(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		cfg  gfsim.Config
	}{
		{name: "missing topology", cfg: gfsim.Config{}},
		{name: "single node", cfg: gfsim.Config{Topology: gfsim.Line{N: 1}}},
		{name: "degenerate tree", cfg: gfsim.Config{Topology: gfsim.Tree{N: 9}}},
		{name: "negative drop rate", cfg: gfsim.Config{Topology: gfsim.Line{N: 2}, DropRate: -0.5}},
		{name: "drop rate above one", cfg: gfsim.Config{Topology: gfsim.Line{N: 2}, DropRate: 1.5}},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := gfsim.New(gtest.NewLogger(t), tc.cfg)
			require.Error(t, err)
		})
	}
}

func TestRunFlood_argValidation(t *testing.T) {
	t.Parallel()

	s := newSim(t, gfsim.Config{Topology: gfsim.Line{N: 3}, MaxPayloadLen: 4})

	_, err := s.RunFlood(gfsim.FloodConfig{Initiator: 3, Payload: []byte{1}})
	require.Error(t, err)

	_, err = s.RunFlood(gfsim.FloodConfig{Initiator: 0})
	require.Error(t, err)

	_, err = s.RunFlood(gfsim.FloodConfig{Initiator: 0, Payload: []byte{1, 2, 3, 4, 5}})
	require.Error(t, err)
}

func TestRunFlood_lineTopology(t *testing.T) {
	t.Parallel()

	s := newSim(t, gfsim.Config{Topology: gfsim.Line{N: 5}})

	res, err := s.RunFlood(gfsim.FloodConfig{
		Initiator: 0,
		Payload:   []byte{0xca, 0xfe, 0x01},
		NTxMax:    3,
		Sync:      true,
	})
	require.NoError(t, err)

	require.True(t, res.AllReceived())
	require.Equal(t, uint(4), res.Successes)
	require.Equal(t, uint8(3), res.PayloadLen)

	// Every node transmits to its bound; the initiator only hears its
	// direct neighbor, everyone else hears both sides.
	require.Equal(t, []uint8{3, 3, 3, 3, 3}, res.TxCounts)
	require.Equal(t, []uint8{2, 3, 3, 3, 3}, res.RxCounts)

	// The relay counter grows one per hop down the line, and the
	// initiator's first reception is its neighbor's first relay.
	require.Equal(t, []uint8{1, 0, 1, 2, 3}, res.FirstRxRelayCnt)

	for i, ok := range res.TRefValid {
		require.True(t, ok, "node %d reference", i)
		require.Equal(t, res.TRefs[0], res.TRefs[i], "node %d reference", i)
	}

	require.Greater(t, res.Duration, gftimer.Ticks(0))
}

func TestRunFlood_fullMesh(t *testing.T) {
	t.Parallel()

	s := newSim(t, gfsim.Config{Topology: gfsim.FullMesh{N: 4}})

	res, err := s.RunFlood(gfsim.FloodConfig{
		Initiator: 0,
		Payload:   []byte{0x42},
		NTxMax:    2,
		Sync:      true,
	})
	require.NoError(t, err)

	require.True(t, res.AllReceived())
	require.Equal(t, uint(3), res.Successes)
	require.Equal(t, []uint8{2, 2, 2, 2}, res.TxCounts)

	// One hop reaches everyone, and the simultaneous first relays merge
	// into a single reception at the initiator.
	require.Equal(t, []uint8{1, 2, 2, 2}, res.RxCounts)
	require.Equal(t, []uint8{1, 0, 0, 0}, res.FirstRxRelayCnt)

	for i := range res.TRefs {
		require.True(t, res.TRefValid[i], "node %d reference", i)
		require.Equal(t, res.TRefs[0], res.TRefs[i], "node %d reference", i)
	}
}

func TestRunFlood_treeTopology(t *testing.T) {
	t.Parallel()

	s := newSim(t, gfsim.Config{Topology: gfsim.Tree{N: 13, BranchFactor: 3}})

	res, err := s.RunFlood(gfsim.FloodConfig{
		Initiator: 0,
		Payload:   []byte{0xde, 0xad},
		NTxMax:    3,
		Sync:      true,
	})
	require.NoError(t, err)

	require.True(t, res.AllReceived())
	require.Equal(t, uint(12), res.Successes)

	for i := 1; i <= 3; i++ {
		require.Equal(t, uint8(0), res.FirstRxRelayCnt[i], "node %d hop", i)
	}
	for i := 4; i < 13; i++ {
		require.Equal(t, uint8(1), res.FirstRxRelayCnt[i], "node %d hop", i)
	}

	for i := range res.TRefs {
		require.True(t, res.TRefValid[i], "node %d reference", i)
		require.Equal(t, res.TRefs[0], res.TRefs[i], "node %d reference", i)
	}
}

func TestRunFlood_withoutSync(t *testing.T) {
	t.Parallel()

	s := newSim(t, gfsim.Config{Topology: gfsim.Line{N: 3}})

	res, err := s.RunFlood(gfsim.FloodConfig{
		Initiator: 0,
		Payload:   []byte{7, 7, 7},
		NTxMax:    2,
	})
	require.NoError(t, err)

	require.True(t, res.AllReceived())
	require.Equal(t, []uint8{2, 2, 2}, res.TxCounts)

	for i, ok := range res.TRefValid {
		require.False(t, ok, "node %d reference", i)
	}
}

func TestRunFlood_blackout(t *testing.T) {
	t.Parallel()

	s := newSim(t, gfsim.Config{Topology: gfsim.Line{N: 2}, DropRate: 1})

	res, err := s.RunFlood(gfsim.FloodConfig{
		Initiator: 0,
		Payload:   []byte{0xaa},
		NTxMax:    3,
		Sync:      true,
	})
	require.NoError(t, err)

	require.False(t, res.AllReceived())
	require.Equal(t, uint(0), res.Successes)
	require.Equal(t, uint(1), res.Received.Count())

	// The initiator never hears an echo, so the retransmission timeout
	// carries it to its bound alone.
	require.Equal(t, []uint8{3, 0}, res.TxCounts)
	require.Equal(t, []uint8{0, 0}, res.RxCounts)

	require.True(t, res.TRefValid[0])
	require.False(t, res.TRefValid[1])

	// A flood with no detected preamble does not count against the
	// receiver's flood success rate.
	require.Equal(t, uint32(0), s.Nodes()[1].Engine.Stats().FloodCnt)
}

func TestRunFlood_consecutiveFloods(t *testing.T) {
	t.Parallel()

	s := newSim(t, gfsim.Config{Topology: gfsim.Line{N: 4}})

	first, err := s.RunFlood(gfsim.FloodConfig{
		Initiator: 0,
		Payload:   []byte{1, 2, 3},
		NTxMax:    2,
		Sync:      true,
	})
	require.NoError(t, err)
	require.True(t, first.AllReceived())

	second, err := s.RunFlood(gfsim.FloodConfig{
		Initiator: 2,
		Payload:   []byte{9, 8, 7, 6},
		NTxMax:    2,
		Sync:      true,
	})
	require.NoError(t, err)
	require.True(t, second.AllReceived())
	require.Equal(t, uint8(4), second.PayloadLen)

	require.NotEqual(t, first.ID, second.ID)

	// Virtual time keeps running across floods, so the second flood's
	// reference lies after the first's.
	for i := range second.TRefs {
		require.Equal(t, second.TRefs[2], second.TRefs[i], "node %d reference", i)
	}
	require.Greater(t, second.TRefs[2], first.TRefs[0])
}

func TestRunFlood_determinism(t *testing.T) {
	t.Parallel()

	cfg := gfsim.Config{
		Topology: gfsim.Line{N: 6},
		DropRate: 0.3,
		Seed:     7,
	}
	a := newSim(t, cfg)
	b := newSim(t, cfg)

	for range 3 {
		fc := gfsim.FloodConfig{
			Initiator: 0,
			Payload:   []byte{0xaa, 0xbb},
			NTxMax:    5,
			Sync:      true,
		}

		ra, err := a.RunFlood(fc)
		require.NoError(t, err)
		rb, err := b.RunFlood(fc)
		require.NoError(t, err)

		require.Equal(t, ra.Successes, rb.Successes)
		require.Equal(t, ra.RxCounts, rb.RxCounts)
		require.Equal(t, ra.TxCounts, rb.TxCounts)
		require.Equal(t, ra.FirstRxRelayCnt, rb.FirstRxRelayCnt)
		require.Equal(t, ra.TRefs, rb.TRefs)
		require.Equal(t, ra.TRefValid, rb.TRefValid)
		require.Equal(t, ra.Duration, rb.Duration)
		require.True(t, ra.Received.Equal(rb.Received))
	}
}
