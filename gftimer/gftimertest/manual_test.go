package gftimertest_test

import (
	"testing"

	"github.com/gordian-engine/gflood/gftimer"
	"github.com/gordian-engine/gflood/gftimer/gftimertest"
	"github.com/stretchr/testify/require"
)

func TestManualScheduler_fireOrderAndCascade(t *testing.T) {
	t.Parallel()

	m := gftimertest.NewManualScheduler()

	var fires []gftimer.Ticks
	m.Schedule(100, func(now gftimer.Ticks) {
		fires = append(fires, now)
		m.Schedule(150, func(now gftimer.Ticks) {
			fires = append(fires, now)
		})
	})

	m.AdvanceTo(200)

	require.Equal(t, []gftimer.Ticks{100, 150}, fires)
	require.False(t, m.HasPending())
	require.Equal(t, gftimer.Ticks(200), m.NowHF())
}

func TestManualScheduler_scheduleReplacesAndCancel(t *testing.T) {
	t.Parallel()

	m := gftimertest.NewManualScheduler()

	var a, b int
	m.Schedule(50, func(gftimer.Ticks) { a++ })
	m.Schedule(60, func(gftimer.Ticks) { b++ })
	m.AdvanceTo(100)
	require.Zero(t, a)
	require.Equal(t, 1, b)

	m.Schedule(150, func(gftimer.Ticks) { a++ })
	m.Cancel()
	m.AdvanceTo(300)
	require.Zero(t, a)
}

func TestManualScheduler_lfAutoStep(t *testing.T) {
	t.Parallel()

	m := gftimertest.NewManualScheduler()
	m.LFAutoStep = 8

	require.Equal(t, gftimer.Ticks(8), m.NowLF())
	require.Equal(t, gftimer.Ticks(16), m.NowLF())

	m.SetLF(100)
	_, lf := m.Now()
	require.Equal(t, gftimer.Ticks(100), lf)
}
