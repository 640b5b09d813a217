package paper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenmind/agent/internal/clock"
	"github.com/tokenmind/agent/internal/trade"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func approvedIntent(t trade.IntentType, token string, sizePct float64) *trade.Intent {
	return &trade.Intent{
		ID:           "intent-" + string(t),
		Type:         t,
		TokenAddress: token,
		SizePct:      sizePct,
		RiskApproved: true,
	}
}

// Mirrors the canonical lifecycle: 100 capital, enter 10% at 1.0, price
// moves to 1.2, exit. No slippage so the numbers come out exact.
func TestEnterMarkExitLifecycle(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(clock.NewFake(testNow), 100, 0)

	res := sim.Execute(ctx, approvedIntent(trade.IntentEnter, "tokenT", 10), 1.0)
	require.Equal(t, trade.StatusFilled, res.Status)
	assert.InDelta(t, 10.0, res.FilledAmount, 1e-9)
	assert.InDelta(t, 90.0, sim.Capital(), 1e-9)
	assert.InDelta(t, 100.0, sim.TotalValue(), 1e-9)

	sim.UpdatePositions(map[string]float64{"tokenT": 1.2})
	positions := sim.Positions()
	require.Len(t, positions, 1)
	assert.InDelta(t, 2.0, positions[0].UnrealizedPnL, 1e-9)
	assert.InDelta(t, 20.0, positions[0].UnrealizedPnLPct, 1e-9)
	assert.InDelta(t, 102.0, sim.TotalValue(), 1e-9)

	res = sim.Execute(ctx, approvedIntent(trade.IntentExit, "tokenT", 0), 1.2)
	require.Equal(t, trade.StatusFilled, res.Status)
	assert.InDelta(t, 2.0, res.RealizedPnL, 1e-9)
	assert.InDelta(t, 102.0, sim.Capital(), 1e-9)
	assert.Empty(t, sim.Positions())
}

func TestSlippageWorksAgainstBothSides(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(clock.NewFake(testNow), 100, 1.0)

	res := sim.Execute(ctx, approvedIntent(trade.IntentEnter, "tokenT", 10), 1.0)
	require.Equal(t, trade.StatusFilled, res.Status)
	assert.InDelta(t, 1.01, res.Price, 1e-9) // buys fill above market

	res = sim.Execute(ctx, approvedIntent(trade.IntentExit, "tokenT", 0), 1.0)
	require.Equal(t, trade.StatusFilled, res.Status)
	assert.InDelta(t, 0.99, res.Price, 1e-9) // sells fill below market
	assert.Less(t, res.RealizedPnL, 0.0)     // round trip at flat price loses the spread
}

func TestUnapprovedIntentFails(t *testing.T) {
	sim := NewSimulator(clock.NewFake(testNow), 100, 0)

	intent := approvedIntent(trade.IntentEnter, "tokenT", 10)
	intent.RiskApproved = false

	res := sim.Execute(context.Background(), intent, 1.0)
	assert.Equal(t, trade.StatusFailed, res.Status)
	assert.NotEmpty(t, res.Error)
	assert.InDelta(t, 100.0, sim.Capital(), 1e-9) // book untouched
}

func TestMissingPriceFails(t *testing.T) {
	sim := NewSimulator(clock.NewFake(testNow), 100, 0)

	res := sim.Execute(context.Background(), approvedIntent(trade.IntentEnter, "tokenT", 10), 0)
	assert.Equal(t, trade.StatusFailed, res.Status)
	assert.Contains(t, res.Error, "no valid price")
}

func TestDuplicateEnterFails(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(clock.NewFake(testNow), 100, 0)

	first := sim.Execute(ctx, approvedIntent(trade.IntentEnter, "tokenT", 10), 1.0)
	require.Equal(t, trade.StatusFilled, first.Status)

	second := sim.Execute(ctx, approvedIntent(trade.IntentEnter, "tokenT", 10), 1.0)
	assert.Equal(t, trade.StatusFailed, second.Status)
	assert.Contains(t, second.Error, "already open")
	require.Len(t, sim.Positions(), 1)
}

func TestAddAveragesEntryPrice(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(clock.NewFake(testNow), 100, 0)

	sim.Execute(ctx, approvedIntent(trade.IntentEnter, "tokenT", 10), 1.0) // 10 units at 1.0
	res := sim.Execute(ctx, approvedIntent(trade.IntentAdd, "tokenT", 10), 2.0)
	require.Equal(t, trade.StatusFilled, res.Status)

	// Second leg: 9 capital at 2.0 buys 4.5 units.
	// Weighted entry: (10*1.0 + 9.0) / (10 + 4.5) = 19/14.5.
	positions := sim.Positions()
	require.Len(t, positions, 1)
	assert.InDelta(t, 14.5, positions[0].Amount, 1e-9)
	assert.InDelta(t, 19.0/14.5, positions[0].AverageEntryPrice, 1e-9)
	assert.InDelta(t, 81.0, sim.Capital(), 1e-9)
}

func TestAddWithoutPositionFails(t *testing.T) {
	sim := NewSimulator(clock.NewFake(testNow), 100, 0)

	res := sim.Execute(context.Background(), approvedIntent(trade.IntentAdd, "tokenT", 10), 1.0)
	assert.Equal(t, trade.StatusFailed, res.Status)
	assert.Contains(t, res.Error, "no open position")
}

func TestReducePartiallyRealizes(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(clock.NewFake(testNow), 100, 0)

	sim.Execute(ctx, approvedIntent(trade.IntentEnter, "tokenT", 10), 1.0)

	res := sim.Execute(ctx, approvedIntent(trade.IntentReduce, "tokenT", 50), 1.5)
	require.Equal(t, trade.StatusFilled, res.Status)
	assert.InDelta(t, 5.0, res.FilledAmount, 1e-9)
	assert.InDelta(t, 2.5, res.RealizedPnL, 1e-9) // (1.5 - 1.0) * 5

	positions := sim.Positions()
	require.Len(t, positions, 1)
	assert.InDelta(t, 5.0, positions[0].Amount, 1e-9)
	assert.InDelta(t, 97.5, sim.Capital(), 1e-9)
}

func TestReduceToZeroKeepsPositionOpen(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(clock.NewFake(testNow), 100, 0)

	sim.Execute(ctx, approvedIntent(trade.IntentEnter, "tokenT", 10), 1.0)
	res := sim.Execute(ctx, approvedIntent(trade.IntentReduce, "tokenT", 100), 1.0)
	require.Equal(t, trade.StatusFilled, res.Status)

	positions := sim.Positions()
	require.Len(t, positions, 1, "a full reduce empties the position but does not close it")
	assert.InDelta(t, 0.0, positions[0].Amount, 1e-9)
}

func TestExitWithoutPositionFails(t *testing.T) {
	sim := NewSimulator(clock.NewFake(testNow), 100, 0)

	res := sim.Execute(context.Background(), approvedIntent(trade.IntentExit, "tokenT", 0), 1.0)
	assert.Equal(t, trade.StatusFailed, res.Status)
}

func TestEffectiveSizeUsesRiskAdjustment(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(clock.NewFake(testNow), 100, 0)

	intent := approvedIntent(trade.IntentEnter, "tokenT", 15)
	intent.AdjustedSizePct = 10

	res := sim.Execute(ctx, intent, 1.0)
	require.Equal(t, trade.StatusFilled, res.Status)
	assert.InDelta(t, 10.0, res.FilledAmount, 1e-9) // 10% of 100, not 15%
}

func TestUpdatePositionsSkipsMissingQuotes(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(clock.NewFake(testNow), 100, 0)

	sim.Execute(ctx, approvedIntent(trade.IntentEnter, "tokenT", 10), 1.0)
	sim.UpdatePositions(map[string]float64{"tokenT": 1.5})
	sim.UpdatePositions(map[string]float64{"other": 9.9}) // no quote for tokenT

	positions := sim.Positions()
	require.Len(t, positions, 1)
	assert.InDelta(t, 1.5, positions[0].CurrentPrice, 1e-9) // previous mark retained
}

func TestTotalValueConservedAcrossTrades(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(clock.NewFake(testNow), 1000, 0)

	sim.Execute(ctx, approvedIntent(trade.IntentEnter, "tokenA", 10), 2.0)
	assert.InDelta(t, 1000.0, sim.TotalValue(), 1e-9)

	sim.Execute(ctx, approvedIntent(trade.IntentAdd, "tokenA", 10), 2.0)
	assert.InDelta(t, 1000.0, sim.TotalValue(), 1e-9)

	sim.Execute(ctx, approvedIntent(trade.IntentReduce, "tokenA", 30), 2.0)
	assert.InDelta(t, 1000.0, sim.TotalValue(), 1e-9)

	sim.Execute(ctx, approvedIntent(trade.IntentExit, "tokenA", 0), 2.0)
	assert.InDelta(t, 1000.0, sim.TotalValue(), 1e-9)
	assert.Empty(t, sim.Positions())
}

func TestRestoreRebuildsBook(t *testing.T) {
	sim := NewSimulator(clock.NewFake(testNow), 100, 0)
	sim.Restore(250, []trade.Position{
		{TokenAddress: "tokenA", Amount: 10, AverageEntryPrice: 2, CurrentPrice: 3},
	})

	assert.InDelta(t, 250.0, sim.Capital(), 1e-9)
	assert.InDelta(t, 280.0, sim.TotalValue(), 1e-9)
	require.Len(t, sim.Positions(), 1)
}
