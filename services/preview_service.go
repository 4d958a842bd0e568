package services

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

// PreviewService runs the formation pipeline read-only. Each call
// re-randomizes the presentation order, so an organizer can regenerate
// candidate layouts freely before committing — nothing is written.
type PreviewService struct {
	Pool PoolLoader
}

func NewPreviewService(pool PoolLoader) *PreviewService {
	return &PreviewService{Pool: pool}
}

// PreviewTeams previews a formation run without persisting anything.
// GET /tournaments/:id/teams/preview?poll_id=&season_id=&group_size=&entry_fee=
func (s *PreviewService) PreviewTeams(c *fiber.Ctx) error {
	tournamentID := c.Params("id")
	pollID := c.Query("poll_id")
	seasonID := c.Query("season_id")
	groupSize := c.QueryInt("group_size", 4)
	entryFee := int64(c.QueryInt("entry_fee", 0))

	if pollID == "" || seasonID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "poll_id and season_id are required"})
	}
	if groupSize < 1 || groupSize > 4 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "group_size must be between 1 and 4"})
	}

	pool, err := s.Pool.LoadPool(c.Context(), pollID, tournamentID, seasonID)
	if err != nil {
		if errors.Is(err, ErrNoEligiblePlayers) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("ERROR loading pool for preview of poll %s: %v", pollID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load player pool"})
	}

	result, err := BuildTeams(pool, groupSize)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	views := make([]teamView, 0, len(result.Teams))
	for _, t := range result.Teams {
		tv := teamView{Name: t.Name, Slot: t.Slot, IsSolo: t.IsSolo, ScoreSum: t.ScoreSum}
		for _, sp := range t.Players {
			tv.Players = append(tv.Players, playerView{
				ID:          sp.Player.ID,
				DisplayName: sp.Player.DisplayName,
				Balance:     sp.Player.Balance,
				Kills:       sp.Kills,
				Deaths:      sp.Deaths,
				KD:          KDRatio(sp.Kills, sp.Deaths),
				RecentWins:  RecentWinCount(sp.RecentPlacements),
			})
		}
		views = append(views, tv)
	}

	return c.JSON(fiber.Map{
		"teams":                             views,
		"group_size":                        result.GroupSize,
		"team_pool_size":                    result.TeamPoolSize,
		"solo_count":                        result.SoloCount,
		"players_with_insufficient_balance": FlagInsufficient(pool, entryFee),
	})
}
