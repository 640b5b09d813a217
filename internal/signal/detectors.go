package signal

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tokenmind/agent/internal/market"
)

// Tuning constants for detector fields the pattern itself does not fix.
const (
	volumeSurgeUrgency   = 0.7
	earlyMomentumUrgency = 0.8
	exhaustionStrength   = 0.5
	exhaustionUrgency    = 0.4
	dormancyStrength     = 0.3
	dormancyUrgency      = 0.2
	hypeBurstUrgency     = 0.5
)

// windowView is the read-only slice of state a detector sees.
type windowView struct {
	Events  []market.Event
	Tracked []string
	Now     time.Time
}

// namedDetector pairs a detector with a stable name for logging.
type namedDetector struct {
	name string
	run  func(windowView) []Detection
}

// detectVolumeSurge fires when a token shows two or more volume spikes in
// the window. Confidence scales with the strongest reported multiplier.
func detectVolumeSurge(v windowView) []Detection {
	type acc struct {
		count      int
		multiplier float64
		ids        []string
	}
	byToken := make(map[string]*acc)
	for _, ev := range v.Events {
		if ev.Type != market.EventVolumeSpike || ev.Volume == nil {
			continue
		}
		a := byToken[ev.TokenAddress]
		if a == nil {
			a = &acc{}
			byToken[ev.TokenAddress] = a
		}
		a.count++
		a.multiplier = math.Max(a.multiplier, ev.Volume.Multiplier)
		a.ids = append(a.ids, ev.ID)
	}

	var out []Detection
	for token, a := range byToken {
		if a.count < 2 {
			continue
		}
		out = append(out, Detection{
			Type:           TypeVolumeSurge,
			TokenAddress:   token,
			Confidence:     math.Min(0.95, 0.5+0.15*(a.multiplier-1)),
			Strength:       math.Min(1, a.multiplier/5),
			Urgency:        volumeSurgeUrgency,
			Description:    fmt.Sprintf("%d volume spikes, peak %.1fx baseline", a.count, a.multiplier),
			SourceEventIDs: a.ids,
		})
	}
	return out
}

// detectEarlyMomentum fires on a price move above +5% co-occurring with
// volume activity for the same token.
func detectEarlyMomentum(v windowView) []Detection {
	bestPrice := make(map[string]market.Event)
	hasVolume := make(map[string]market.Event)
	for _, ev := range v.Events {
		switch {
		case ev.Type == market.EventPriceChange && ev.Price != nil && ev.Price.ChangePct > 5:
			if cur, ok := bestPrice[ev.TokenAddress]; !ok || ev.Price.ChangePct > cur.Price.ChangePct {
				bestPrice[ev.TokenAddress] = ev
			}
		case ev.Type == market.EventVolumeSpike && ev.Volume != nil:
			hasVolume[ev.TokenAddress] = ev
		}
	}

	var out []Detection
	for token, priceEv := range bestPrice {
		volEv, ok := hasVolume[token]
		if !ok {
			continue
		}
		change := priceEv.Price.ChangePct
		out = append(out, Detection{
			Type:           TypeEarlyMomentum,
			TokenAddress:   token,
			Confidence:     0.6,
			Strength:       math.Min(1, math.Abs(change)/20),
			Urgency:        earlyMomentumUrgency,
			Description:    fmt.Sprintf("price +%.1f%% with volume backing", change),
			SourceEventIDs: []string{priceEv.ID, volEv.ID},
		})
	}
	return out
}

// detectLiquidityPull fires on a liquidity drop deeper than 15%. Urgency
// steps up when the drop exceeds 30%.
func detectLiquidityPull(v windowView) []Detection {
	worst := make(map[string]market.Event)
	for _, ev := range v.Events {
		if ev.Type != market.EventLiquidityChange || ev.Liquidity == nil {
			continue
		}
		drop := -ev.Liquidity.ChangePct
		if drop <= 15 {
			continue
		}
		if cur, ok := worst[ev.TokenAddress]; !ok || drop > -cur.Liquidity.ChangePct {
			worst[ev.TokenAddress] = ev
		}
	}

	var out []Detection
	for token, ev := range worst {
		drop := -ev.Liquidity.ChangePct
		urgency := 0.6
		if drop > 30 {
			urgency = 0.9
		}
		out = append(out, Detection{
			Type:           TypeLiquidityPull,
			TokenAddress:   token,
			Confidence:     0.75,
			Strength:       math.Min(1, drop/50),
			Urgency:        urgency,
			Description:    fmt.Sprintf("liquidity down %.1f%%", drop),
			SourceEventIDs: []string{ev.ID},
		})
	}
	return out
}

// detectPriceExhaustion fires when a token that moved more than 10% earlier
// in the window has gone quiet: its three most recent price readings
// average under 2% change.
func detectPriceExhaustion(v windowView) []Detection {
	byToken := make(map[string][]market.Event)
	for _, ev := range v.Events {
		if ev.Type == market.EventPriceChange && ev.Price != nil {
			byToken[ev.TokenAddress] = append(byToken[ev.TokenAddress], ev)
		}
	}

	var out []Detection
	for token, evs := range byToken {
		if len(evs) < 3 {
			continue
		}
		sort.Slice(evs, func(i, j int) bool { return evs[i].Timestamp.Before(evs[j].Timestamp) })

		recent := evs[len(evs)-3:]
		var sum float64
		var ids []string
		for _, ev := range recent {
			sum += math.Abs(ev.Price.ChangePct)
			ids = append(ids, ev.ID)
		}
		if sum/3 >= 2 {
			continue
		}

		spiked := false
		for _, ev := range evs[:len(evs)-3] {
			if math.Abs(ev.Price.ChangePct) > 10 {
				spiked = true
				ids = append(ids, ev.ID)
				break
			}
		}
		if !spiked {
			continue
		}

		out = append(out, Detection{
			Type:           TypePriceExhaustion,
			TokenAddress:   token,
			Confidence:     0.55,
			Strength:       exhaustionStrength,
			Urgency:        exhaustionUrgency,
			Description:    "price flat after a >10% move",
			SourceEventIDs: ids,
		})
	}
	return out
}

// detectDormancy fires for every tracked token with zero in-window events.
func detectDormancy(v windowView) []Detection {
	seen := make(map[string]struct{}, len(v.Events))
	for _, ev := range v.Events {
		seen[ev.TokenAddress] = struct{}{}
	}

	var out []Detection
	for _, token := range v.Tracked {
		if _, ok := seen[token]; ok {
			continue
		}
		out = append(out, Detection{
			Type:         TypeDormancy,
			TokenAddress: token,
			Confidence:   0.7,
			Strength:     dormancyStrength,
			Urgency:      dormancyUrgency,
			Description:  "no activity in window",
		})
	}
	return out
}

// detectHypeBurst fires when the same token draws two or more social events
// (mention spikes or sentiment shifts) inside the window.
func detectHypeBurst(v windowView) []Detection {
	type acc struct {
		count int
		ids   []string
	}
	byKey := make(map[string]*acc)
	for _, ev := range v.Events {
		if !ev.Type.IsSocial() {
			continue
		}
		key := ev.TokenAddress
		if key == "" {
			key = ev.TokenSymbol
		}
		a := byKey[key]
		if a == nil {
			a = &acc{}
			byKey[key] = a
		}
		a.count++
		a.ids = append(a.ids, ev.ID)
	}

	var out []Detection
	for key, a := range byKey {
		if a.count < 2 {
			continue
		}
		out = append(out, Detection{
			Type:           TypeHypeBurst,
			TokenAddress:   key,
			Confidence:     0.5,
			Strength:       math.Min(1, float64(a.count)/5),
			Urgency:        hypeBurstUrgency,
			Description:    fmt.Sprintf("%d social events", a.count),
			SourceEventIDs: a.ids,
		})
	}
	return out
}
