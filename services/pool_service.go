package services

import (
	"context"
	"errors"
	"fmt"

	"team-tournament-system/models"

	"gorm.io/gorm"
)

// ErrNoEligiblePlayers means the voter pool is empty after filtering.
var ErrNoEligiblePlayers = errors.New("no eligible players voted for this poll")

// PoolLoader yields the scored voter pool for a poll. The formation and
// preview paths depend on this rather than on the database directly.
type PoolLoader interface {
	LoadPool(ctx context.Context, pollID, tournamentID, seasonID string) ([]ScoredPlayer, error)
}

// PoolService loads the eligible voter pool for a formation run.
type PoolService struct {
	DB *gorm.DB
}

func NewPoolService(db *gorm.DB) *PoolService {
	return &PoolService{DB: db}
}

// InsufficientBalance flags a player whose wallet can't cover the entry
// fee. Participation is never balance-gated — this is a display warning
// for the organizer, by business policy.
type InsufficientBalance struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Balance     int64  `json:"balance"`
}

// LoadPool returns every non-banned player whose vote for the poll is not
// OUT, annotated with season stats, recent placements and the computed
// weighted score.
func (s *PoolService) LoadPool(ctx context.Context, pollID, tournamentID, seasonID string) ([]ScoredPlayer, error) {
	type votedRow struct {
		models.Player
		Choice models.VoteChoice
	}

	var rows []votedRow
	err := s.DB.WithContext(ctx).
		Table("poll_votes").
		Select("players.*, poll_votes.choice").
		Joins("JOIN players ON players.id = poll_votes.player_id").
		Where("poll_votes.poll_id = ?", pollID).
		Where("poll_votes.choice <> ?", models.VoteOut).
		Where("players.is_banned = ?", false).
		Where("players.deleted_at IS NULL").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load voter pool: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoEligiblePlayers
	}

	playerIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		playerIDs = append(playerIDs, r.Player.ID)
	}

	stats, err := s.seasonStats(ctx, seasonID, playerIDs)
	if err != nil {
		return nil, err
	}
	placements, err := s.RecentPlacements(ctx, seasonID, tournamentID)
	if err != nil {
		return nil, err
	}

	pool := make([]ScoredPlayer, 0, len(rows))
	for _, r := range rows {
		sp := ScoredPlayer{
			Player:           r.Player,
			Vote:             r.Choice,
			RecentPlacements: placements[r.Player.ID],
		}
		if st, ok := stats[r.Player.ID]; ok {
			sp.Kills = st.Kills
			sp.Deaths = st.Deaths
		}
		pool = append(pool, sp)
	}
	Rescore(pool)
	return pool, nil
}

// seasonStats returns the PlayerStats rows for the given players, keyed
// by player ID. Players without a row simply score from zero.
func (s *PoolService) seasonStats(ctx context.Context, seasonID string, playerIDs []string) (map[string]models.PlayerStats, error) {
	var rows []models.PlayerStats
	err := s.DB.WithContext(ctx).
		Where("season_id = ? AND player_id IN ?", seasonID, playerIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load season stats: %w", err)
	}
	out := make(map[string]models.PlayerStats, len(rows))
	for _, st := range rows {
		out[st.PlayerID] = st
	}
	return out, nil
}

// RecentPlacements returns, per player, the placements they earned in the
// last RecentWinWindow tournaments of the season that started before the
// given tournament. The tournament being formed never counts.
func (s *PoolService) RecentPlacements(ctx context.Context, seasonID, tournamentID string) (map[string][]int, error) {
	var current models.Tournament
	if err := s.DB.WithContext(ctx).First(&current, "id = ?", tournamentID).Error; err != nil {
		return nil, fmt.Errorf("failed to load tournament %s: %w", tournamentID, err)
	}

	var recentIDs []string
	err := s.DB.WithContext(ctx).
		Model(&models.Tournament{}).
		Where("season_id = ? AND id <> ? AND start_time < ?", seasonID, tournamentID, current.StartTime).
		Order("start_time DESC").
		Limit(RecentWinWindow).
		Pluck("id", &recentIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent tournaments: %w", err)
	}
	if len(recentIDs) == 0 {
		return map[string][]int{}, nil
	}

	type placementRow struct {
		PlayerID string
		Position int
	}
	var rows []placementRow
	err = s.DB.WithContext(ctx).
		Table("tournament_winners").
		Select("team_players.player_id, tournament_winners.position").
		Joins("JOIN team_players ON team_players.team_id = tournament_winners.team_id").
		Where("tournament_winners.tournament_id IN ?", recentIDs).
		Where("tournament_winners.deleted_at IS NULL").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent placements: %w", err)
	}

	out := make(map[string][]int)
	for _, r := range rows {
		out[r.PlayerID] = append(out[r.PlayerID], r.Position)
	}
	return out, nil
}

// FlagInsufficient lists pool players whose balance can't cover the fee.
// UC-exempt players never pay, so they are never flagged.
func FlagInsufficient(pool []ScoredPlayer, entryFee int64) []InsufficientBalance {
	flags := []InsufficientBalance{}
	if entryFee <= 0 {
		return flags
	}
	for _, p := range pool {
		if !p.Player.UCExempt && p.Player.Balance < entryFee {
			flags = append(flags, InsufficientBalance{
				ID:          p.Player.ID,
				DisplayName: p.Player.DisplayName,
				Balance:     p.Player.Balance,
			})
		}
	}
	return flags
}
