package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"strings"

	"team-tournament-system/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrNotEnoughPlayers means the pool is too small to form even one team
// or one solo entry.
var ErrNotEnoughPlayers = errors.New("not enough players to form any team")

var nameCaser = cases.Title(language.English)

// FormedTeam is one team produced by the balancer. Transient until the
// formation commit persists it.
type FormedTeam struct {
	Name     string         `json:"name"`
	Slot     int            `json:"slot"`
	IsSolo   bool           `json:"is_solo"`
	Players  []ScoredPlayer `json:"players"`
	ScoreSum float64        `json:"score_sum"`
	Kills    int64          `json:"kills"`
	Deaths   int64          `json:"deaths"`
}

// BalanceResult is the full output of one balancing run.
type BalanceResult struct {
	Teams        []FormedTeam `json:"teams"`
	GroupSize    int          `json:"group_size"`
	TeamPoolSize int          `json:"team_pool_size"`
	SoloCount    int          `json:"solo_count"`
}

// BuildTeams partitions scored players into teams of up to groupSize.
// Explicit SOLO voters always get a size-1 team. When groupSize > 1 and
// the remaining pool doesn't divide evenly, the highest-scoring leftovers
// are peeled off to solo instead of diluting team balance.
//
// Duos use sorted-pair matching (highest with lowest); sizes 3 and 4 use
// a snake draft. The final team list order is shuffled for presentation
// only — the shuffle never changes who is on which team.
func BuildTeams(players []ScoredPlayer, groupSize int) (*BalanceResult, error) {
	if groupSize < 1 || groupSize > 4 {
		return nil, fmt.Errorf("unsupported group size %d", groupSize)
	}

	var soloPlayers, teamPool []ScoredPlayer
	for _, p := range players {
		if p.Vote == models.VoteSolo {
			soloPlayers = append(soloPlayers, p)
		} else {
			teamPool = append(teamPool, p)
		}
	}

	sortByScoreDesc(teamPool)

	var rosters [][]ScoredPlayer
	switch {
	case groupSize == 1:
		for _, p := range teamPool {
			soloPlayers = append(soloPlayers, p)
		}
		teamPool = nil
	default:
		if leftover := len(teamPool) % groupSize; leftover > 0 {
			soloPlayers = append(soloPlayers, teamPool[:leftover]...)
			teamPool = teamPool[leftover:]
		}
		if groupSize == 2 {
			rosters = pairSorted(teamPool)
		} else {
			rosters = snakeDraft(teamPool, groupSize)
		}
	}

	if len(rosters) == 0 && len(soloPlayers) == 0 {
		return nil, ErrNotEnoughPlayers
	}

	teams := make([]FormedTeam, 0, len(rosters)+len(soloPlayers))
	for _, roster := range rosters {
		teams = append(teams, newFormedTeam(roster, false))
	}
	for _, p := range soloPlayers {
		teams = append(teams, newFormedTeam([]ScoredPlayer{p}, true))
	}

	// Presentation order only: membership is fixed above.
	rand.Shuffle(len(teams), func(i, j int) {
		teams[i], teams[j] = teams[j], teams[i]
	})
	for i := range teams {
		teams[i].Slot = i + 1
		if !teams[i].IsSolo {
			teams[i].Name = fmt.Sprintf("Team %d", i+1)
		}
	}

	logScoreSpread(teams)

	return &BalanceResult{
		Teams:        teams,
		GroupSize:    groupSize,
		TeamPoolSize: len(teamPool),
		SoloCount:    len(soloPlayers),
	}, nil
}

func newFormedTeam(roster []ScoredPlayer, solo bool) FormedTeam {
	t := FormedTeam{IsSolo: solo, Players: roster}
	for _, p := range roster {
		t.ScoreSum += p.Score
		t.Kills += p.Kills
		t.Deaths += p.Deaths
	}
	if solo && len(roster) == 1 {
		t.Name = nameCaser.String(strings.ToLower(roster[0].Player.DisplayName))
	}
	return t
}

func sortByScoreDesc(players []ScoredPlayer) {
	sort.Slice(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return players[i].Player.ID < players[j].Player.ID
	})
}

// pairSorted repeatedly pairs the strongest remaining player with the
// weakest, which pulls every duo's score sum toward the pool mean. On the
// same input this keeps the inter-duo spread below naive adjacent pairing.
func pairSorted(pool []ScoredPlayer) [][]ScoredPlayer {
	var rosters [][]ScoredPlayer
	for lo, hi := 0, len(pool)-1; lo < hi; lo, hi = lo+1, hi-1 {
		rosters = append(rosters, []ScoredPlayer{pool[lo], pool[hi]})
	}
	return rosters
}

// snakeDraft deals sorted players across teams round-robin, reversing
// direction each round so top scores don't pile up on the first team.
func snakeDraft(pool []ScoredPlayer, groupSize int) [][]ScoredPlayer {
	teamCount := len(pool) / groupSize
	if teamCount == 0 {
		return nil
	}
	rosters := make([][]ScoredPlayer, teamCount)
	for idx, p := range pool {
		round := idx / teamCount
		pos := idx % teamCount
		if round%2 == 1 {
			pos = teamCount - 1 - pos
		}
		rosters[pos] = append(rosters[pos], p)
	}
	return rosters
}

// logScoreSpread reports how even the non-solo teams came out. Diagnostic
// only — it never blocks or reshapes a formation.
func logScoreSpread(teams []FormedTeam) {
	var sums []float64
	for _, t := range teams {
		if !t.IsSolo {
			sums = append(sums, t.ScoreSum)
		}
	}
	if len(sums) == 0 {
		return
	}
	minSum, maxSum, total := sums[0], sums[0], 0.0
	for _, s := range sums {
		minSum = math.Min(minSum, s)
		maxSum = math.Max(maxSum, s)
		total += s
	}
	mean := total / float64(len(sums))
	variance := 0.0
	for _, s := range sums {
		variance += (s - mean) * (s - mean)
	}
	variance /= float64(len(sums))
	log.Printf("[Balancer] %d teams | score sum min=%.2f max=%.2f mean=%.2f variance=%.2f spread=%.2f",
		len(sums), minSum, maxSum, mean, variance, maxSum-minSum)
}
