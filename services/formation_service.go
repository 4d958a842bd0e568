package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"team-tournament-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// commitTimeout is deliberately generous: one formation commit batches
// every row for pools of 60+ players inside a single transaction.
const commitTimeout = 2 * time.Minute

// FormationPlan is the unit of work handed to the store: one balancer
// result plus the scope it belongs to.
type FormationPlan struct {
	PollID       string
	TournamentID string
	SeasonID     string
	GroupSize    int
	EntryFee     int64
	Teams        []FormedTeam
}

// FormationStore commits a formation plan as one atomic unit. Passing the
// plan through this interface keeps the transaction boundary explicit and
// testable without a live database.
type FormationStore interface {
	CommitFormation(ctx context.Context, plan *FormationPlan) (*models.Match, error)
}

// GormFormationStore is the production store: one GORM transaction, batch
// inserts throughout, atomic balance decrements.
type GormFormationStore struct {
	DB *gorm.DB
}

func NewGormFormationStore(db *gorm.DB) *GormFormationStore {
	return &GormFormationStore{DB: db}
}

// formationRows is every row one commit writes, built up front so the
// transaction body is pure persistence.
type formationRows struct {
	Match       *models.Match
	Teams       []models.Team
	TeamPlayers []models.TeamPlayer
	TeamStats   []models.TeamStats
	EntryStats  []models.TeamPlayerStats
	SeasonSeeds []models.PlayerStats
	Attendance  []models.MatchAttendance
	Ledger      []models.WalletTransaction
	FeePayers   []string
}

// buildFormationRows expands a plan into concrete rows: one match, the
// teams with their join rows, zeroed team stats, deaths=1 entry stats
// and season seeds, attendance, and one debit ledger row per fee payer.
// UC-exempt players never appear among the fee payers.
func buildFormationRows(plan *FormationPlan) *formationRows {
	rows := &formationRows{
		Match: &models.Match{
			ID:              uuid.NewString(),
			PollID:          plan.PollID,
			TournamentID:    plan.TournamentID,
			SeasonID:        plan.SeasonID,
			GroupSize:       plan.GroupSize,
			EntryFeeCharged: plan.EntryFee,
		},
	}

	for _, ft := range plan.Teams {
		team := models.Team{
			ID:            uuid.NewString(),
			MatchID:       rows.Match.ID,
			TournamentID:  plan.TournamentID,
			SeasonID:      plan.SeasonID,
			Name:          ft.Name,
			Slot:          ft.Slot,
			Size:          len(ft.Players),
			IsSolo:        ft.IsSolo,
			WeightedScore: ft.ScoreSum,
		}
		rows.Teams = append(rows.Teams, team)
		rows.TeamStats = append(rows.TeamStats, models.TeamStats{
			ID:           uuid.NewString(),
			TeamID:       team.ID,
			MatchID:      rows.Match.ID,
			TournamentID: plan.TournamentID,
			SeasonID:     plan.SeasonID,
		})

		for _, sp := range ft.Players {
			rows.TeamPlayers = append(rows.TeamPlayers, models.TeamPlayer{
				ID:       uuid.NewString(),
				TeamID:   team.ID,
				PlayerID: sp.Player.ID,
			})
			rows.EntryStats = append(rows.EntryStats, models.TeamPlayerStats{
				ID:       uuid.NewString(),
				TeamID:   team.ID,
				PlayerID: sp.Player.ID,
				MatchID:  rows.Match.ID,
				Deaths:   1,
			})
			rows.SeasonSeeds = append(rows.SeasonSeeds, models.PlayerStats{
				ID:       uuid.NewString(),
				PlayerID: sp.Player.ID,
				SeasonID: plan.SeasonID,
				Deaths:   1,
			})
			rows.Attendance = append(rows.Attendance, models.MatchAttendance{
				ID:           uuid.NewString(),
				MatchID:      rows.Match.ID,
				PlayerID:     sp.Player.ID,
				TournamentID: plan.TournamentID,
				TeamID:       team.ID,
			})
			if plan.EntryFee > 0 && !sp.Player.UCExempt {
				rows.FeePayers = append(rows.FeePayers, sp.Player.ID)
				rows.Ledger = append(rows.Ledger, models.WalletTransaction{
					ID:          uuid.NewString(),
					PlayerID:    sp.Player.ID,
					Amount:      -plan.EntryFee,
					Reason:      models.ReasonEntryFee,
					ReferenceID: rows.Match.ID,
				})
			}
		}
	}
	return rows
}

// CommitFormation persists the match, its teams, all stats seeds, the
// attendance rows and the entry-fee debits. Any failure rolls the whole
// batch back: no teams, no ledger rows, no attendance rows survive.
func (st *GormFormationStore) CommitFormation(ctx context.Context, plan *FormationPlan) (*models.Match, error) {
	rows := buildFormationRows(plan)
	match := rows.Match

	err := st.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(match).Error; err != nil {
			return fmt.Errorf("create match: %w", err)
		}
		if err := tx.Create(&rows.Teams).Error; err != nil {
			return fmt.Errorf("create teams: %w", err)
		}
		if err := tx.Create(&rows.TeamPlayers).Error; err != nil {
			return fmt.Errorf("create team players: %w", err)
		}
		if err := tx.Create(&rows.TeamStats).Error; err != nil {
			return fmt.Errorf("create team stats: %w", err)
		}
		if err := tx.Create(&rows.EntryStats).Error; err != nil {
			return fmt.Errorf("create team player stats: %w", err)
		}

		// Upsert: first entry this season creates the row, later entries
		// only add the automatic death credit.
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "player_id"}, {Name: "season_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"deaths":     gorm.Expr("player_stats.deaths + 1"),
				"updated_at": time.Now(),
			}),
		}).Create(&rows.SeasonSeeds).Error; err != nil {
			return fmt.Errorf("upsert player stats: %w", err)
		}

		if len(rows.FeePayers) > 0 {
			if err := tx.Create(&rows.Ledger).Error; err != nil {
				return fmt.Errorf("create fee transactions: %w", err)
			}
			// Atomic decrement, not read-modify-write: concurrent
			// settlements of overlapping tournaments must not double-charge.
			res := tx.Model(&models.Player{}).
				Where("id IN ?", rows.FeePayers).
				UpdateColumn("balance", gorm.Expr("balance - ?", plan.EntryFee))
			if res.Error != nil {
				return fmt.Errorf("debit entry fees: %w", res.Error)
			}
			if res.RowsAffected != int64(len(rows.FeePayers)) {
				return fmt.Errorf("debit entry fees: expected %d debits, got %d", len(rows.FeePayers), res.RowsAffected)
			}
		}

		if err := tx.Create(&rows.Attendance).Error; err != nil {
			return fmt.Errorf("create attendance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// FormationService drives the commit path: load pool, score, balance,
// persist.
type FormationService struct {
	Pool  PoolLoader
	Store FormationStore
}

func NewFormationService(pool PoolLoader, store FormationStore) *FormationService {
	return &FormationService{Pool: pool, Store: store}
}

type formTeamsRequest struct {
	PollID    string `json:"poll_id"`
	SeasonID  string `json:"season_id"`
	GroupSize int    `json:"group_size"`
	EntryFee  int64  `json:"entry_fee"`
}

// teamView is the wire shape for a formed team on both commit and preview.
type teamView struct {
	Name     string       `json:"name"`
	Slot     int          `json:"slot"`
	IsSolo   bool         `json:"is_solo"`
	ScoreSum float64      `json:"score_sum"`
	Players  []playerView `json:"players"`
}

// Zero is a real value for all of these (an empty wallet, a kill-less
// season), so none of the stat fields are omitempty.
type playerView struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Balance     int64   `json:"balance"`
	Kills       int64   `json:"kills"`
	Deaths      int64   `json:"deaths"`
	KD          float64 `json:"kd"`
	RecentWins  int     `json:"recent_wins"`
}

// FormTeams commits a formation run for a poll.
// POST /tournaments/:id/teams
func (s *FormationService) FormTeams(c *fiber.Ctx) error {
	tournamentID := c.Params("id")

	var req formTeamsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.PollID == "" || req.SeasonID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "poll_id and season_id are required"})
	}
	if req.GroupSize < 1 || req.GroupSize > 4 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "group_size must be between 1 and 4"})
	}
	if req.EntryFee < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "entry_fee cannot be negative"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), commitTimeout)
	defer cancel()

	pool, err := s.Pool.LoadPool(ctx, req.PollID, tournamentID, req.SeasonID)
	if err != nil {
		if errors.Is(err, ErrNoEligiblePlayers) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("ERROR loading pool for poll %s: %v", req.PollID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load player pool"})
	}

	result, err := BuildTeams(pool, req.GroupSize)
	if err != nil {
		if errors.Is(err, ErrNotEnoughPlayers) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	plan := &FormationPlan{
		PollID:       req.PollID,
		TournamentID: tournamentID,
		SeasonID:     req.SeasonID,
		GroupSize:    req.GroupSize,
		EntryFee:     req.EntryFee,
		Teams:        result.Teams,
	}

	match, err := s.Store.CommitFormation(ctx, plan)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "teams already formed for this poll"})
		}
		log.Printf("ERROR committing formation for poll %s: %v", req.PollID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "formation commit failed", "details": err.Error()})
	}

	views := make([]teamView, 0, len(result.Teams))
	for _, t := range result.Teams {
		tv := teamView{Name: t.Name, Slot: t.Slot, IsSolo: t.IsSolo, ScoreSum: t.ScoreSum}
		for _, sp := range t.Players {
			tv.Players = append(tv.Players, playerView{ID: sp.Player.ID, DisplayName: sp.Player.DisplayName})
		}
		views = append(views, tv)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"match_id":                          match.ID,
		"teams":                             views,
		"players_with_insufficient_balance": FlagInsufficient(pool, req.EntryFee),
		"entry_fee_charged":                 req.EntryFee,
	})
}
