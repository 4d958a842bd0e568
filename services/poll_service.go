package services

import (
	"errors"
	"log"
	"time"

	"team-tournament-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PollService manages participation polls and vote casting.
type PollService struct {
	DB *gorm.DB
}

func NewPollService(db *gorm.DB) *PollService {
	return &PollService{DB: db}
}

// CreatePoll opens a participation poll for a tournament.
// POST /polls
func (s *PollService) CreatePoll(c *fiber.Ctx) error {
	var req struct {
		TournamentID string    `json:"tournament_id"`
		SeasonID     string    `json:"season_id"`
		Question     string    `json:"question"`
		ClosesAt     time.Time `json:"closes_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.TournamentID == "" || req.SeasonID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "tournament_id and season_id are required"})
	}

	poll := models.Poll{
		ID:           uuid.NewString(),
		TournamentID: req.TournamentID,
		SeasonID:     req.SeasonID,
		Question:     req.Question,
		Status:       models.PollStatusOpen,
		ClosesAt:     req.ClosesAt,
	}
	if poll.ClosesAt.IsZero() {
		var tournament models.Tournament
		if err := s.DB.First(&tournament, "id = ?", req.TournamentID).Error; err == nil {
			poll.ClosesAt = tournament.StartTime
		}
	}

	if err := s.DB.Create(&poll).Error; err != nil {
		log.Printf("DB Error creating poll: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create poll"})
	}
	return c.Status(fiber.StatusCreated).JSON(poll)
}

// CastVote records or overwrites a player's vote while the poll is open.
// POST /polls/:id/votes
func (s *PollService) CastVote(c *fiber.Ctx) error {
	pollID := c.Params("id")

	var req struct {
		PlayerID string            `json:"player_id"`
		Choice   models.VoteChoice `json:"choice"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.PlayerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "player_id is required"})
	}
	switch req.Choice {
	case models.VoteIn, models.VoteOut, models.VoteSolo:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "choice must be in, out or solo"})
	}

	var poll models.Poll
	if err := s.DB.First(&poll, "id = ?", pollID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "poll not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	if poll.Status != models.PollStatusOpen {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "poll is closed"})
	}

	vote := models.PollVote{
		ID:       uuid.NewString(),
		PollID:   pollID,
		PlayerID: req.PlayerID,
		Choice:   req.Choice,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "poll_id"}, {Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"choice", "updated_at"}),
	}).Create(&vote).Error; err != nil {
		log.Printf("DB Error casting vote: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to cast vote"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"poll_id":   pollID,
		"player_id": req.PlayerID,
		"choice":    req.Choice,
	})
}
