package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"team-tournament-system/models"
	"team-tournament-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SettlementService settles tournament prizes through the tax engine and
// serves the read-only tax preview. Preview and commit share the exact
// same engine calls: divergence between them would be a correctness bug.
type SettlementService struct {
	DB     *gorm.DB
	Pool   *PoolService
	Policy TaxPolicy
}

func NewSettlementService(db *gorm.DB, pool *PoolService, policy TaxPolicy) *SettlementService {
	return &SettlementService{DB: db, Pool: pool, Policy: policy}
}

// placementSpec is one parsed segment of the placements parameter:
// "position:amount:playerId1|playerId2".
type placementSpec struct {
	Position  int
	Amount    int64
	PlayerIDs []string
}

// parsePlacements decodes "1:1000:a|b,2:500:c". Malformed segments are
// skipped with a log line so one bad placement never blocks the rest.
func parsePlacements(raw string) []placementSpec {
	var specs []placementSpec
	if raw == "" {
		return specs
	}
	for _, segment := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(segment), ":", 3)
		if len(parts) != 3 {
			log.Printf("[Settlement] skipping malformed placement segment %q", segment)
			continue
		}
		position, err := strconv.Atoi(parts[0])
		if err != nil || position < 1 {
			log.Printf("[Settlement] skipping placement with bad position %q", segment)
			continue
		}
		amount, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || amount <= 0 {
			log.Printf("[Settlement] skipping placement with bad amount %q", segment)
			continue
		}
		var ids []string
		for _, id := range strings.Split(parts[2], "|") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			log.Printf("[Settlement] skipping placement with no players %q", segment)
			continue
		}
		specs = append(specs, placementSpec{Position: position, Amount: amount, PlayerIDs: ids})
	}
	return specs
}

// playerTaxContext is everything the engine needs about one player at
// settlement time.
type playerTaxContext struct {
	PreviousWins  int
	MatchesPlayed int
	IsSolo        bool
}

// taxContexts gathers previous wins, participation and solo status for a
// set of players in one tournament.
func (s *SettlementService) taxContexts(ctx context.Context, tournamentID, seasonID string, playerIDs []string) (map[string]playerTaxContext, int, error) {
	placements, err := s.Pool.RecentPlacements(ctx, seasonID, tournamentID)
	if err != nil {
		return nil, 0, err
	}

	var totalMatches int64
	if err := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where("tournament_id = ?", tournamentID).
		Count(&totalMatches).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count matches: %w", err)
	}

	type playedRow struct {
		PlayerID string
		Played   int
	}
	var played []playedRow
	if err := s.DB.WithContext(ctx).Model(&models.MatchAttendance{}).
		Select("player_id, count(*) as played").
		Where("tournament_id = ? AND player_id IN ?", tournamentID, playerIDs).
		Group("player_id").
		Scan(&played).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count attendance: %w", err)
	}
	playedBy := make(map[string]int, len(played))
	for _, r := range played {
		playedBy[r.PlayerID] = r.Played
	}

	// Latest-entry heuristic, used only for the bare per-player rates map
	// where no team is named. Placement settlement takes solo status from
	// the winning team itself.
	type soloRow struct {
		PlayerID string
		IsSolo   bool
	}
	var solos []soloRow
	if err := s.DB.WithContext(ctx).Table("match_attendances").
		Select("match_attendances.player_id, teams.is_solo").
		Joins("JOIN teams ON teams.id = match_attendances.team_id").
		Where("match_attendances.tournament_id = ? AND match_attendances.player_id IN ?", tournamentID, playerIDs).
		Order("match_attendances.created_at DESC").
		Scan(&solos).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to load solo flags: %w", err)
	}
	soloBy := make(map[string]bool, len(solos))
	for _, r := range solos {
		if _, seen := soloBy[r.PlayerID]; !seen {
			soloBy[r.PlayerID] = r.IsSolo
		}
	}

	out := make(map[string]playerTaxContext, len(playerIDs))
	for _, id := range playerIDs {
		out[id] = playerTaxContext{
			PreviousWins:  len(placements[id]),
			MatchesPlayed: playedBy[id],
			IsSolo:        soloBy[id],
		}
	}
	return out, int(totalMatches), nil
}

// TaxPreview lets an admin sanity-check payouts before declaring winners.
// GET /tournaments/:id/tax/preview?season_id=&player_ids=a,b&placements=1:1000:a|b
func (s *SettlementService) TaxPreview(c *fiber.Ctx) error {
	tournamentID := c.Params("id")
	seasonID := c.Query("season_id")
	rawIDs := c.Query("player_ids")
	if seasonID == "" || rawIDs == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "season_id and player_ids are required"})
	}

	var playerIDs []string
	for _, id := range strings.Split(rawIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			playerIDs = append(playerIDs, id)
		}
	}
	specs := parsePlacements(c.Query("placements"))
	for _, spec := range specs {
		playerIDs = append(playerIDs, spec.PlayerIDs...)
	}

	contexts, totalMatches, err := s.taxContexts(c.Context(), tournamentID, seasonID, playerIDs)
	if err != nil {
		log.Printf("ERROR loading tax contexts for tournament %s: %v", tournamentID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load settlement data"})
	}

	perPlayer := make(map[string]fiber.Map, len(contexts))
	for id, pc := range contexts {
		totalWins := pc.PreviousWins + 1
		repeatRate := s.Policy.RepeatRate(totalWins)
		soloRate := 0.0
		if pc.IsSolo {
			soloRate = s.Policy.SoloTaxRate
		}
		perPlayer[id] = fiber.Map{
			"previous_wins":          pc.PreviousWins,
			"total_wins":             totalWins,
			"tax_rate":               CombinedRate(repeatRate, soloRate),
			"repeat_winner_tax_rate": repeatRate,
			"solo_tax_rate":          soloRate,
			"is_solo":                pc.IsSolo,
			"matches_played":         pc.MatchesPlayed,
			"total_matches":          totalMatches,
			"participation_rate":     participationRate(pc.MatchesPlayed, totalMatches),
		}
	}

	response := fiber.Map{"players": perPlayer}

	if len(specs) > 0 {
		var all []TaxResult
		for _, spec := range specs {
			in := PlacementInput{
				Position:     spec.Position,
				PrizeAmount:  spec.Amount,
				TotalMatches: totalMatches,
			}
			// A one-player placement is a solo team's win; the solo tax
			// follows the winning roster, not the player's last match.
			soloPlacement := len(spec.PlayerIDs) == 1
			for _, id := range spec.PlayerIDs {
				pc := contexts[id]
				in.Players = append(in.Players, WinnerInput{
					PlayerID:      id,
					PreviousWins:  pc.PreviousWins,
					MatchesPlayed: pc.MatchesPlayed,
					IsSolo:        soloPlacement,
				})
			}
			all = append(all, s.Policy.SettlePlacement(in)...)
		}
		summary := s.Policy.Summarize(all)
		response["results"] = all
		response["total_tax"] = summary.TotalTax
		response["solo_tax"] = summary.SoloTax
		response["org_contribution"] = summary.OrgContribution
		response["fund_contribution"] = summary.FundContribution
	}

	return c.JSON(response)
}

type declareWinnersRequest struct {
	SeasonID   string `json:"season_id"`
	Placements []struct {
		Position    int    `json:"position"`
		PrizeAmount int64  `json:"prize_amount"`
		TeamID      string `json:"team_id"`
	} `json:"placements"`
}

// DeclareWinners settles a concluded tournament: winner rows, tax
// computation and prize credits in one transaction.
// POST /tournaments/:id/winners
func (s *SettlementService) DeclareWinners(c *fiber.Ctx) error {
	tournamentID := c.Params("id")

	var req declareWinnersRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.SeasonID == "" || len(req.Placements) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "season_id and placements are required"})
	}

	var tournament models.Tournament
	if err := s.DB.First(&tournament, "id = ?", tournamentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "tournament not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	// Resolve the winning teams first so the tax contexts cover everyone.
	// Each team must belong to the tournament being settled.
	rosters := make(map[string][]string, len(req.Placements))
	teamSolo := make(map[string]bool, len(req.Placements))
	var allPlayerIDs []string
	for _, p := range req.Placements {
		var team models.Team
		if err := s.DB.First(&team, "id = ? AND tournament_id = ?", p.TeamID, tournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("team %s does not belong to this tournament", p.TeamID)})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load team"})
		}
		var members []models.TeamPlayer
		if err := s.DB.Where("team_id = ?", p.TeamID).Find(&members).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load team roster"})
		}
		if len(members) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("team %s has no players", p.TeamID)})
		}
		ids := make([]string, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.PlayerID)
		}
		rosters[p.TeamID] = ids
		// Solo tax keys off the team that won, not whatever team the
		// player happened to enter last.
		teamSolo[p.TeamID] = team.IsSolo || len(members) == 1
		allPlayerIDs = append(allPlayerIDs, ids...)
	}

	ctx, cancel := context.WithTimeout(c.Context(), commitTimeout)
	defer cancel()

	contexts, totalMatches, err := s.taxContexts(ctx, tournamentID, req.SeasonID, allPlayerIDs)
	if err != nil {
		log.Printf("ERROR loading tax contexts for settlement of %s: %v", tournamentID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load settlement data"})
	}

	var allResults []TaxResult
	for _, p := range req.Placements {
		in := PlacementInput{
			Position:     p.Position,
			PrizeAmount:  p.PrizeAmount,
			TotalMatches: totalMatches,
		}
		for _, id := range rosters[p.TeamID] {
			pc := contexts[id]
			in.Players = append(in.Players, WinnerInput{
				PlayerID:      id,
				PreviousWins:  pc.PreviousWins,
				MatchesPlayed: pc.MatchesPlayed,
				IsSolo:        teamSolo[p.TeamID],
			})
		}
		allResults = append(allResults, s.Policy.SettlePlacement(in)...)
	}
	summary := s.Policy.Summarize(allResults)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range req.Placements {
			winner := models.TournamentWinner{
				ID:           uuid.NewString(),
				TournamentID: tournamentID,
				Position:     p.Position,
				TeamID:       p.TeamID,
				PrizeAmount:  p.PrizeAmount,
				Distributed:  true,
			}
			if err := tx.Create(&winner).Error; err != nil {
				return fmt.Errorf("create winner row: %w", err)
			}
		}

		for _, r := range allResults {
			if r.NetAmount <= 0 {
				continue
			}
			credit := models.WalletTransaction{
				ID:          uuid.NewString(),
				PlayerID:    r.PlayerID,
				Amount:      r.NetAmount,
				Reason:      models.ReasonTournamentPrize,
				ReferenceID: tournamentID,
			}
			if err := tx.Create(&credit).Error; err != nil {
				return fmt.Errorf("create prize transaction: %w", err)
			}
			res := tx.Model(&models.Player{}).
				Where("id = ?", r.PlayerID).
				UpdateColumn("balance", gorm.Expr("balance + ?", r.NetAmount))
			if res.Error != nil {
				return fmt.Errorf("credit prize: %w", res.Error)
			}
			if res.RowsAffected != 1 {
				return fmt.Errorf("credit prize: player %s not found", r.PlayerID)
			}
		}

		if err := tx.Model(&tournament).
			Updates(map[string]interface{}{"status": models.TournamentStatusCompleted, "end_time": time.Now()}).Error; err != nil {
			return fmt.Errorf("complete tournament: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "winners already declared for this tournament"})
		}
		log.Printf("ERROR settling tournament %s: %v", tournamentID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "settlement failed", "details": err.Error()})
	}

	// Archive is best-effort reporting; the settlement already committed.
	if utils.ReportsEnabled() {
		report := fiber.Map{
			"tournament_id": tournamentID,
			"season_id":     req.SeasonID,
			"settled_at":    time.Now().UTC(),
			"results":       allResults,
			"summary":       summary,
		}
		if url, err := utils.UploadSettlementReport(context.Background(), tournament.Name, report); err != nil {
			log.Printf("WARN failed to archive settlement report for %s: %v", tournamentID, err)
		} else {
			log.Printf("[Settlement] report archived at %s", url)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"results":           allResults,
		"total_tax":         summary.TotalTax,
		"solo_tax":          summary.SoloTax,
		"org_contribution":  summary.OrgContribution,
		"fund_contribution": summary.FundContribution,
	})
}
