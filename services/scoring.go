package services

import (
	"team-tournament-system/models"
)

// RecentWinWindow is how many of the season's most recent tournaments
// (excluding the one being formed) count toward the recent-win bonus.
const RecentWinWindow = 6

// tierWeight maps the admin-assigned skill category to a K/D multiplier.
var tierWeight = map[models.SkillCategory]float64{
	models.SkillCategoryRookie:  0.8,
	models.SkillCategoryRegular: 1.0,
	models.SkillCategoryVeteran: 1.15,
	models.SkillCategoryPro:     1.3,
}

// ScoredPlayer is the transient value the balancer works on: one eligible
// player plus everything the scorer derived for them. It never persists.
type ScoredPlayer struct {
	Player           models.Player
	Vote             models.VoteChoice
	Kills            int64
	Deaths           int64
	RecentPlacements []int // placements (1st, 2nd, ...) in the last RecentWinWindow season tournaments
	Score            float64
}

// KDRatio returns kills/deaths with deaths floored at 1, so a deathless
// season never divides by zero.
func KDRatio(kills, deaths int64) float64 {
	if deaths < 1 {
		deaths = 1
	}
	return float64(kills) / float64(deaths)
}

// RecentWinBonus awards 2 points per 1st-place finish and 1 point per
// 2nd-place finish across the recent-win window.
func RecentWinBonus(placements []int) float64 {
	var bonus float64
	for _, pos := range placements {
		switch pos {
		case 1:
			bonus += 2
		case 2:
			bonus += 1
		}
	}
	return bonus
}

// RecentWinCount counts podium (1st or 2nd) finishes in the window. It is
// what the preview surfaces as "recentWins".
func RecentWinCount(placements []int) int {
	n := 0
	for _, pos := range placements {
		if pos == 1 || pos == 2 {
			n++
		}
	}
	return n
}

// ScorePlayer turns a player's season stats and recent form into the single
// comparable number the balancer sorts on. Deterministic and side-effect
// free: identical inputs always produce the identical score.
func ScorePlayer(kills, deaths int64, placements []int, tier models.SkillCategory) float64 {
	weight, ok := tierWeight[tier]
	if !ok {
		weight = tierWeight[models.SkillCategoryRegular]
	}
	return KDRatio(kills, deaths)*weight + RecentWinBonus(placements)
}

// Rescore fills Score on every entry in place.
func Rescore(players []ScoredPlayer) {
	for i := range players {
		p := &players[i]
		p.Score = ScorePlayer(p.Kills, p.Deaths, p.RecentPlacements, p.Player.SkillCategory)
	}
}
