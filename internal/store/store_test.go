package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenmind/agent/internal/mind"
	"github.com/tokenmind/agent/internal/trade"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadSnapshotEmpty(t *testing.T) {
	s := newTestStore(t)

	_, _, _, _, found, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSnapshotRoundtrip(t *testing.T) {
	s := newTestStore(t)

	state := mind.State{
		Confidence:   0.72,
		Suspicion:    0.31,
		Conviction:   0.6,
		Fatigue:      0.2,
		Aggression:   0.4,
		Regret:       0.1,
		PrimaryMood:  mind.MoodConfident,
		RiskAppetite: 0.55,
		Mode:         mind.ModeSafeMode,
		WinStreak:    3,
		LastTradeAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		TokenConvictions: mind.Convictions{
			"tokenA": 0.8,
			"tokenB": 0.2,
		},
	}
	positions := []trade.Position{
		{TokenAddress: "tokenA", Amount: 12.5, AverageEntryPrice: 1.1, CurrentPrice: 1.3},
	}
	tracked := []string{"tokenA", "tokenB", "tokenC"}

	require.NoError(t, s.SaveSnapshot(state, 850.5, positions, tracked))

	got, capital, gotPos, gotTracked, found, err := s.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, 850.5, capital)
	assert.Equal(t, state.Confidence, got.Confidence)
	assert.Equal(t, state.PrimaryMood, got.PrimaryMood)
	assert.Equal(t, state.Mode, got.Mode)
	assert.Equal(t, state.WinStreak, got.WinStreak)
	assert.True(t, state.LastTradeAt.Equal(got.LastTradeAt))
	assert.Equal(t, state.TokenConvictions, got.TokenConvictions)

	require.Len(t, gotPos, 1)
	assert.Equal(t, positions[0].TokenAddress, gotPos[0].TokenAddress)
	assert.Equal(t, positions[0].Amount, gotPos[0].Amount)

	assert.ElementsMatch(t, tracked, gotTracked)
}

func TestSaveSnapshotOverwrites(t *testing.T) {
	s := newTestStore(t)

	first := mind.State{Confidence: 0.5, Mode: mind.ModeActive,
		TokenConvictions: mind.Convictions{"tokenA": 0.9}}
	require.NoError(t, s.SaveSnapshot(first, 1000, []trade.Position{
		{TokenAddress: "tokenA", Amount: 1},
	}, []string{"tokenA"}))

	second := mind.State{Confidence: 0.8, Mode: mind.ModeActive,
		TokenConvictions: mind.Convictions{"tokenB": 0.4}}
	require.NoError(t, s.SaveSnapshot(second, 1200, nil, []string{"tokenB"}))

	got, capital, gotPos, gotTracked, found, err := s.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, 0.8, got.Confidence)
	assert.Equal(t, 1200.0, capital)
	assert.Empty(t, gotPos, "stale positions must not survive an overwrite")
	assert.Equal(t, []string{"tokenB"}, gotTracked)
	assert.Equal(t, mind.Convictions{"tokenB": 0.4}, got.TokenConvictions)
}

func TestTradeLedger(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendTrade(trade.Result{
			ID:           string(rune('a' + i)),
			Type:         trade.IntentEnter,
			TokenAddress: "tokenA",
			Status:       trade.StatusFilled,
			RealizedPnL:  float64(i),
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	trades, err := s.RecentTrades(2)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	// Newest first.
	assert.Equal(t, "c", trades[0].ID)
	assert.Equal(t, "b", trades[1].ID)
	assert.Equal(t, trade.IntentEnter, trades[0].Type)
}
