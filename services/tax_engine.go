package services

import (
	"log"
	"math"
	"os"
	"strconv"
	"strings"
)

// TaxPolicy is the configurable settlement policy. The repeat-winner
// schedule and the solo rate are policy knobs, not algorithm constants:
// they can be overridden per deployment through the environment.
type TaxPolicy struct {
	// RepeatWinnerRates is indexed by total win count (previous wins plus
	// the win being settled). Index 0 applies to a player with no wins at
	// all and must be 0. Counts past the end clamp to the last entry, so
	// the schedule is monotone as long as the entries are non-decreasing.
	RepeatWinnerRates []float64

	// SoloTaxRate applies only when the player's team for the match had
	// exactly one member.
	SoloTaxRate float64

	// OrgShare is the fraction of total withheld tax booked to the
	// organization; the remainder goes to the community fund.
	OrgShare float64

	// SofteningFactor damps the participation adjustment so uneven match
	// attendance never overcorrects a share.
	SofteningFactor float64
}

// DefaultTaxPolicy returns the stock schedule. Every value can be
// overridden via TAX_REPEAT_SCHEDULE, TAX_SOLO_RATE and TAX_ORG_SHARE.
func DefaultTaxPolicy() TaxPolicy {
	return TaxPolicy{
		RepeatWinnerRates: []float64{0, 0.05, 0.10, 0.20, 0.30, 0.40, 0.50},
		SoloTaxRate:       0.10,
		OrgShare:          0.50,
		SofteningFactor:   0.5,
	}
}

// TaxPolicyFromEnv loads the default policy and applies any environment
// overrides. Malformed values are logged and ignored.
func TaxPolicyFromEnv() TaxPolicy {
	p := DefaultTaxPolicy()
	if raw := os.Getenv("TAX_REPEAT_SCHEDULE"); raw != "" {
		var rates []float64
		ok := true
		for _, part := range strings.Split(raw, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil || v < 0 || v >= 1 {
				log.Printf("[TaxPolicy] ignoring TAX_REPEAT_SCHEDULE, bad entry %q", part)
				ok = false
				break
			}
			rates = append(rates, v)
		}
		if ok && len(rates) > 0 {
			p.RepeatWinnerRates = rates
		}
	}
	if raw := os.Getenv("TAX_SOLO_RATE"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 && v < 1 {
			p.SoloTaxRate = v
		} else {
			log.Printf("[TaxPolicy] ignoring TAX_SOLO_RATE %q", raw)
		}
	}
	if raw := os.Getenv("TAX_ORG_SHARE"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 && v <= 1 {
			p.OrgShare = v
		} else {
			log.Printf("[TaxPolicy] ignoring TAX_ORG_SHARE %q", raw)
		}
	}
	return p
}

// RepeatRate returns the repeat-winner tax rate for a total win count
// (previous wins + 1 for the win being settled). Counts past the end of
// the schedule clamp to the final rate.
func (p TaxPolicy) RepeatRate(totalWins int) float64 {
	if totalWins <= 0 || len(p.RepeatWinnerRates) == 0 {
		return 0
	}
	if totalWins >= len(p.RepeatWinnerRates) {
		return p.RepeatWinnerRates[len(p.RepeatWinnerRates)-1]
	}
	return p.RepeatWinnerRates[totalWins]
}

// CombinedRate composes two tax rates multiplicatively, so sequential
// taxes compound instead of summing and the result stays below 1.
func CombinedRate(repeatRate, soloRate float64) float64 {
	return 1 - (1-repeatRate)*(1-soloRate)
}

// WinnerInput is one winning player fed into the engine.
type WinnerInput struct {
	PlayerID      string
	PreviousWins  int
	MatchesPlayed int
	IsSolo        bool
}

// PlacementInput is one winning placement: the prize and the team that
// earned it.
type PlacementInput struct {
	Position     int
	PrizeAmount  int64
	TotalMatches int
	Players      []WinnerInput
}

// TaxResult is the per-player settlement breakdown. It is computed, never
// stored: only the net effects persist as ledger rows.
type TaxResult struct {
	PlayerID          string  `json:"player_id"`
	Position          int     `json:"position"`
	ParticipationRate float64 `json:"participation_rate"`
	AdjustedAmount    int64   `json:"adjusted_amount"`
	TotalWins         int     `json:"total_wins"`
	RepeatRate        float64 `json:"repeat_winner_tax_rate"`
	SoloRate          float64 `json:"solo_tax_rate"`
	CombinedRate      float64 `json:"tax_rate"`
	NetAmount         int64   `json:"net_amount"`
	TaxWithheld       int64   `json:"tax_withheld"`
	IsSolo            bool    `json:"is_solo"`
}

// SettlePlacement computes every player's share of one placement prize.
// Pure: the tax preview and the winner-declaration commit both call this
// exact function, so their numbers can never diverge.
func (p TaxPolicy) SettlePlacement(in PlacementInput) []TaxResult {
	size := len(in.Players)
	if size == 0 || in.PrizeAmount <= 0 {
		return nil
	}

	base := in.PrizeAmount / int64(size)

	rates := make([]float64, size)
	var avgRate float64
	for i, w := range in.Players {
		rates[i] = participationRate(w.MatchesPlayed, in.TotalMatches)
		avgRate += rates[i]
	}
	avgRate /= float64(size)

	results := make([]TaxResult, 0, size)
	for i, w := range in.Players {
		adjustment := int64(math.Floor((rates[i] - avgRate) * float64(base) * p.SofteningFactor))
		adjusted := base + adjustment

		totalWins := w.PreviousWins + 1
		repeatRate := p.RepeatRate(totalWins)
		soloRate := 0.0
		if w.IsSolo {
			soloRate = p.SoloTaxRate
		}
		combined := CombinedRate(repeatRate, soloRate)

		net := int64(math.Floor(float64(adjusted) * (1 - combined)))
		results = append(results, TaxResult{
			PlayerID:          w.PlayerID,
			Position:          in.Position,
			ParticipationRate: rates[i],
			AdjustedAmount:    adjusted,
			TotalWins:         totalWins,
			RepeatRate:        repeatRate,
			SoloRate:          soloRate,
			CombinedRate:      combined,
			NetAmount:         net,
			TaxWithheld:       adjusted - net,
			IsSolo:            w.IsSolo,
		})
	}
	return results
}

// participationRate is matchesPlayed over totalMatches, defaulting to a
// full 1.0 when the tournament recorded no matches at all.
func participationRate(matchesPlayed, totalMatches int) float64 {
	if totalMatches <= 0 {
		return 1.0
	}
	return float64(matchesPlayed) / float64(totalMatches)
}

// TaxSummary aggregates withheld tax across a whole tournament settlement.
type TaxSummary struct {
	TotalTax         int64 `json:"total_tax"`
	SoloTax          int64 `json:"solo_tax"`
	OrgContribution  int64 `json:"org_contribution"`
	FundContribution int64 `json:"fund_contribution"`
}

// Summarize splits the total withheld tax between the organization and the
// community fund per the policy ratio.
func (p TaxPolicy) Summarize(results []TaxResult) TaxSummary {
	var sum TaxSummary
	for _, r := range results {
		sum.TotalTax += r.TaxWithheld
		if r.IsSolo {
			sum.SoloTax += r.TaxWithheld
		}
	}
	sum.OrgContribution = int64(math.Floor(float64(sum.TotalTax) * p.OrgShare))
	sum.FundContribution = sum.TotalTax - sum.OrgContribution
	return sum
}
