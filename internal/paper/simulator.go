// Package paper simulates execution against a virtual position book. It
// stands in for a real DEX executor and keeps the portfolio consistent:
// capital plus mark-to-market position value is conserved by construction.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tokenmind/agent/internal/clock"
	"github.com/tokenmind/agent/internal/trade"
)

// Executor is the contract a real (non-paper) executor must satisfy. Any
// real implementation must be wrapped with a timeout so the tick loop's
// single-intent-in-flight invariant holds.
type Executor interface {
	Execute(ctx context.Context, intent *trade.Intent, price float64) trade.Result
}

// Simulator is the paper Executor.
type Simulator struct {
	mu          sync.Mutex
	clk         clock.Clock
	capital     float64
	slippagePct float64
	positions   map[string]*trade.Position
}

// NewSimulator creates a simulator holding the given free capital.
func NewSimulator(clk clock.Clock, capital, slippagePct float64) *Simulator {
	return &Simulator{
		clk:         clk,
		capital:     capital,
		slippagePct: slippagePct,
		positions:   make(map[string]*trade.Position),
	}
}

// Execute turns an approved intent into a simulated fill. Every failure
// comes back as a FAILED result; this method never returns an error.
func (s *Simulator) Execute(_ context.Context, intent *trade.Intent, price float64) trade.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := trade.Result{
		ID:           uuid.New().String(),
		IntentID:     intent.ID,
		SignalIDs:    intent.SupportingSignalIDs,
		Type:         intent.Type,
		TokenAddress: intent.TokenAddress,
		SlippagePct:  s.slippagePct,
		Timestamp:    s.clk.Now(),
	}

	if !intent.RiskApproved {
		return s.fail(res, "intent not risk-approved")
	}
	if price <= 0 {
		return s.fail(res, fmt.Sprintf("no valid price for %s", intent.TokenAddress))
	}

	switch intent.Type {
	case trade.IntentEnter:
		return s.enter(res, intent, price)
	case trade.IntentAdd:
		return s.add(res, intent, price)
	case trade.IntentReduce:
		return s.reduce(res, intent, price)
	case trade.IntentExit:
		return s.exit(res, intent, price)
	default:
		return s.fail(res, fmt.Sprintf("intent type %s is not executable", intent.Type))
	}
}

// enter opens a new position. Must be called with the lock held.
func (s *Simulator) enter(res trade.Result, intent *trade.Intent, price float64) trade.Result {
	if intent.TokenAddress == "" {
		return s.fail(res, "enter requires a token address")
	}
	sizePct := intent.EffectiveSizePct()
	if sizePct <= 0 {
		return s.fail(res, "enter requires a position size")
	}
	if _, exists := s.positions[intent.TokenAddress]; exists {
		return s.fail(res, fmt.Sprintf("position already open for %s", intent.TokenAddress))
	}

	investAmount := s.capital * sizePct / 100
	if investAmount > s.capital {
		return s.fail(res, fmt.Sprintf("insufficient capital: need %.2f, have %.2f", investAmount, s.capital))
	}

	actualPrice := price * (1 + s.slippagePct/100)
	amount := investAmount / actualPrice
	now := s.clk.Now()

	s.positions[intent.TokenAddress] = &trade.Position{
		TokenAddress:      intent.TokenAddress,
		Amount:            amount,
		AverageEntryPrice: actualPrice,
		CurrentPrice:      actualPrice,
		OpenedAt:          now,
		LastUpdatedAt:     now,
		EntryIntentID:     intent.ID,
		TradeIDs:          []string{res.ID},
	}
	s.capital -= investAmount

	res.RequestedAmount = investAmount
	res.FilledAmount = amount
	res.Price = actualPrice
	res.Status = trade.StatusFilled
	res.TxSignature = paperSignature(res.ID)
	return res
}

// add grows an existing position at a capital-weighted average entry price.
// Must be called with the lock held.
func (s *Simulator) add(res trade.Result, intent *trade.Intent, price float64) trade.Result {
	pos, exists := s.positions[intent.TokenAddress]
	if !exists {
		return s.fail(res, fmt.Sprintf("no open position for %s", intent.TokenAddress))
	}
	sizePct := intent.EffectiveSizePct()
	if sizePct <= 0 {
		return s.fail(res, "add requires a position size")
	}

	investAmount := s.capital * sizePct / 100
	if investAmount > s.capital {
		return s.fail(res, fmt.Sprintf("insufficient capital: need %.2f, have %.2f", investAmount, s.capital))
	}

	actualPrice := price * (1 + s.slippagePct/100)
	newAmount := investAmount / actualPrice

	pos.AverageEntryPrice = (pos.Amount*pos.AverageEntryPrice + investAmount) / (pos.Amount + newAmount)
	pos.Amount += newAmount
	pos.LastUpdatedAt = s.clk.Now()
	pos.TradeIDs = append(pos.TradeIDs, res.ID)
	s.capital -= investAmount

	res.RequestedAmount = investAmount
	res.FilledAmount = newAmount
	res.Price = actualPrice
	res.Status = trade.StatusFilled
	res.TxSignature = paperSignature(res.ID)
	return res
}

// reduce sells a fraction of the position. A reduce to zero leaves the
// position open; closing it is the caller's call, not an implicit one.
// Must be called with the lock held.
func (s *Simulator) reduce(res trade.Result, intent *trade.Intent, price float64) trade.Result {
	pos, exists := s.positions[intent.TokenAddress]
	if !exists {
		return s.fail(res, fmt.Sprintf("no open position for %s", intent.TokenAddress))
	}
	sizePct := intent.EffectiveSizePct()
	if sizePct <= 0 || sizePct > 100 {
		return s.fail(res, fmt.Sprintf("reduce size %.1f%% out of range", sizePct))
	}

	sellAmount := pos.Amount * sizePct / 100
	sellPrice := price * (1 - s.slippagePct/100)
	proceeds := sellAmount * sellPrice

	pos.Amount -= sellAmount
	pos.LastUpdatedAt = s.clk.Now()
	pos.TradeIDs = append(pos.TradeIDs, res.ID)
	s.capital += proceeds

	res.RequestedAmount = sellAmount
	res.FilledAmount = sellAmount
	res.Price = sellPrice
	res.RealizedPnL = (sellPrice - pos.AverageEntryPrice) * sellAmount
	res.Status = trade.StatusFilled
	res.TxSignature = paperSignature(res.ID)
	return res
}

// exit sells the whole position and removes it. Must be called with the
// lock held.
func (s *Simulator) exit(res trade.Result, intent *trade.Intent, price float64) trade.Result {
	pos, exists := s.positions[intent.TokenAddress]
	if !exists {
		return s.fail(res, fmt.Sprintf("no open position for %s", intent.TokenAddress))
	}

	sellPrice := price * (1 - s.slippagePct/100)
	proceeds := pos.Amount * sellPrice

	s.capital += proceeds
	delete(s.positions, intent.TokenAddress)

	res.RequestedAmount = pos.Amount
	res.FilledAmount = pos.Amount
	res.Price = sellPrice
	res.RealizedPnL = proceeds - pos.Amount*pos.AverageEntryPrice
	res.Status = trade.StatusFilled
	res.TxSignature = paperSignature(res.ID)
	return res
}

// UpdatePositions re-marks every open position against a fresh price map.
// Positions without a quote are logged and left at their previous mark;
// capital is never touched here.
func (s *Simulator) UpdatePositions(prices map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	for token, pos := range s.positions {
		price, ok := prices[token]
		if !ok || price <= 0 {
			slog.Debug("position_mark_skipped", "token", token)
			continue
		}
		pos.CurrentPrice = price
		pos.UnrealizedPnL = (price - pos.AverageEntryPrice) * pos.Amount
		// PnL% divides by entry price, so it stays defined at zero amount.
		pos.UnrealizedPnLPct = (price - pos.AverageEntryPrice) / pos.AverageEntryPrice * 100
		pos.LastUpdatedAt = now
	}
}

// Capital returns the free simulated capital.
func (s *Simulator) Capital() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capital
}

// TotalValue returns free capital plus mark-to-market position value.
func (s *Simulator) TotalValue() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.capital
	for _, pos := range s.positions {
		total += pos.MarketValue()
	}
	return total
}

// Positions returns copies of the open positions, ordered by token for
// deterministic iteration downstream.
func (s *Simulator) Positions() []trade.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]trade.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		cp := *pos
		cp.TradeIDs = append([]string(nil), pos.TradeIDs...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenAddress < out[j].TokenAddress })
	return out
}

// Restore overwrites the book from persisted state.
func (s *Simulator) Restore(capital float64, positions []trade.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.capital = capital
	s.positions = make(map[string]*trade.Position, len(positions))
	for _, pos := range positions {
		cp := pos
		s.positions[pos.TokenAddress] = &cp
	}
}

// fail stamps the result as FAILED with a descriptive error.
func (s *Simulator) fail(res trade.Result, reason string) trade.Result {
	res.Status = trade.StatusFailed
	res.Error = reason
	slog.Warn("paper_execution_failed", "type", res.Type, "token", res.TokenAddress, "error", reason)
	return res
}

// paperSignature fabricates a recognizable fake transaction signature.
func paperSignature(id string) string {
	return "paper-" + id[:8]
}
