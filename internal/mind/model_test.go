package mind

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenmind/agent/internal/clock"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestNewModelBaseline(t *testing.T) {
	m := NewModel(clock.NewFake(testNow))
	s := m.Snapshot()

	assert.Equal(t, 0.5, s.Confidence)
	assert.Equal(t, 0.2, s.Suspicion)
	assert.Equal(t, 0.5, s.Conviction)
	assert.Equal(t, 0.1, s.Fatigue)
	assert.Equal(t, 0.3, s.Aggression)
	assert.Equal(t, 0.0, s.Regret)
	assert.Equal(t, 0.5, s.RiskAppetite)
	assert.Equal(t, ModeActive, s.Mode)
	assert.Equal(t, MoodNeutral, s.PrimaryMood)
	assert.Equal(t, 0.5, s.TokenConvictions.Get("never-seen"))
}

func TestTickDecaysTransientEmotions(t *testing.T) {
	clk := clock.NewFake(testNow)
	m := NewModel(clk)
	m.Restore(State{
		Confidence:   0.9,
		Suspicion:    0.5,
		Conviction:   0.8,
		Aggression:   0.5,
		Regret:       0.5,
		RiskAppetite: 0.5,
		Mode:         ModeActive,
		LastTradeAt:  testNow,
	})

	m.Tick()
	s := m.Snapshot()

	assert.InDelta(t, 0.49, s.Regret, 1e-9)
	assert.InDelta(t, 0.495, s.Suspicion, 1e-9)
	assert.InDelta(t, 0.485, s.Aggression, 1e-9)
	assert.InDelta(t, 0.88, s.Confidence, 1e-9) // drifts toward 0.5
	assert.InDelta(t, 0.76, s.Conviction, 1e-9)
}

func TestFatigueBuildsDuringInactivity(t *testing.T) {
	clk := clock.NewFake(testNow)
	m := NewModel(clk)

	// One tick inside the grace period leaves fatigue alone.
	m.Tick()
	assert.InDelta(t, 0.1, m.Snapshot().Fatigue, 1e-9)

	clk.Advance(3 * 24 * time.Hour)
	m.Tick()
	assert.InDelta(t, 0.12, m.Snapshot().Fatigue, 1e-9)
}

func TestUpdateFromTradeFill(t *testing.T) {
	clk := clock.NewFake(testNow)
	m := NewModel(clk)

	m.UpdateFromTrade(TradeOutcome{Filled: true, TokenAddress: "tokenA", RealizedPnL: 5})
	s := m.Snapshot()

	assert.InDelta(t, 0.58, s.Confidence, 1e-9)
	assert.InDelta(t, 0.56, s.Conviction, 1e-9)
	assert.InDelta(t, 0.53, s.RiskAppetite, 1e-9)
	assert.Equal(t, 1, s.WinStreak)
	assert.Equal(t, 0, s.LossStreak)
	assert.InDelta(t, 0.6, s.TokenConvictions.Get("tokenA"), 1e-9)
	assert.Equal(t, testNow, s.LastTradeAt)
}

func TestUpdateFromTradeFailureStingsHarder(t *testing.T) {
	m := NewModel(clock.NewFake(testNow))

	m.UpdateFromTrade(TradeOutcome{Filled: false, TokenAddress: "tokenA"})
	s := m.Snapshot()

	assert.InDelta(t, 0.38, s.Confidence, 1e-9)
	assert.InDelta(t, 0.15, s.Regret, 1e-9)
	assert.InDelta(t, 0.3, s.Suspicion, 1e-9)
	assert.InDelta(t, 0.42, s.RiskAppetite, 1e-9)
	assert.Equal(t, 0, s.WinStreak)
	assert.Equal(t, 1, s.LossStreak)
	assert.InDelta(t, 0.35, s.TokenConvictions.Get("tokenA"), 1e-9)
}

func TestStreaksResetEachOther(t *testing.T) {
	m := NewModel(clock.NewFake(testNow))

	m.UpdateFromTrade(TradeOutcome{Filled: true})
	m.UpdateFromTrade(TradeOutcome{Filled: true})
	m.UpdateFromTrade(TradeOutcome{Filled: false})

	s := m.Snapshot()
	assert.Equal(t, 0, s.WinStreak)
	assert.Equal(t, 1, s.LossStreak)
}

func TestMoodPriorityRegretBeatsSuspicion(t *testing.T) {
	m := NewModel(clock.NewFake(testNow))
	m.Restore(State{
		Confidence: 0.5,
		Regret:     0.7,
		Suspicion:  0.9,
		Mode:       ModeActive,
	})

	s := m.Snapshot()
	assert.Equal(t, MoodRegretful, s.PrimaryMood)
	assert.Equal(t, MoodSuspicious, s.SecondaryMood)
}

func TestMoodCascade(t *testing.T) {
	cases := []struct {
		name  string
		state State
		want  Mood
	}{
		{"fatigued", State{Fatigue: 0.8}, MoodFatigued},
		{"suspicious", State{Suspicion: 0.7, Confidence: 0.5}, MoodSuspicious},
		{"confident", State{Confidence: 0.8, Conviction: 0.7}, MoodConfident},
		{"aggressive", State{Aggression: 0.7, Confidence: 0.55}, MoodAggressive},
		{"obsessed", State{Conviction: 0.8, Confidence: 0.5}, MoodObsessed},
		{"cautious", State{Confidence: 0.3}, MoodCautious},
		{"neutral", State{Confidence: 0.5}, MoodNeutral},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewModel(clock.NewFake(testNow))
			tc.state.Mode = ModeActive
			m.Restore(tc.state)
			assert.Equal(t, tc.want, m.Snapshot().PrimaryMood)
		})
	}
}

func TestSetModeDoesNotTouchParameters(t *testing.T) {
	m := NewModel(clock.NewFake(testNow))
	before := m.Snapshot()

	m.SetMode(ModeSafeMode)
	after := m.Snapshot()

	assert.Equal(t, ModeSafeMode, after.Mode)
	assert.Equal(t, before.Confidence, after.Confidence)
	assert.Equal(t, before.RiskAppetite, after.RiskAppetite)
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	m := NewModel(clock.NewFake(testNow))
	m.UpdateFromTrade(TradeOutcome{Filled: true, TokenAddress: "tokenA"})

	s := m.Snapshot()
	s.TokenConvictions["tokenA"] = 0.01

	require.InDelta(t, 0.6, m.Snapshot().TokenConvictions.Get("tokenA"), 1e-9)
}

func TestRestoreRoundtrip(t *testing.T) {
	clk := clock.NewFake(testNow)
	src := NewModel(clk)
	src.UpdateFromTrade(TradeOutcome{Filled: true, TokenAddress: "tokenA"})
	src.SetMode(ModeSafeMode)

	dst := NewModel(clk)
	dst.Restore(src.Snapshot())

	a, b := src.Snapshot(), dst.Snapshot()
	assert.Equal(t, a.Confidence, b.Confidence)
	assert.Equal(t, a.Mode, b.Mode)
	assert.Equal(t, a.WinStreak, b.WinStreak)
	assert.Equal(t, a.TokenConvictions, b.TokenConvictions)
}
