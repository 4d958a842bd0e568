package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"team-tournament-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// openTestDB opens a per-test in-memory database carrying the tables the
// formation and settlement paths touch. IDs are always assigned in code,
// so the postgres-only column defaults are not recreated here.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE players (id text PRIMARY KEY, external_user_id text UNIQUE, display_name text,
			skill_category text, balance integer, is_banned boolean, uc_exempt boolean,
			created_at datetime, updated_at datetime, deleted_at datetime)`,
		`CREATE TABLE player_stats (id text PRIMARY KEY, player_id text, season_id text,
			kills integer, deaths integer, created_at datetime, updated_at datetime, deleted_at datetime,
			UNIQUE (player_id, season_id))`,
		`CREATE TABLE tournaments (id text PRIMARY KEY, season_id text, name text, status text,
			start_time datetime, end_time datetime, entry_fee integer, prize_pool text,
			created_at datetime, updated_at datetime, deleted_at datetime)`,
		`CREATE TABLE matches (id text PRIMARY KEY, poll_id text NOT NULL UNIQUE, tournament_id text,
			season_id text, group_size integer, entry_fee_charged integer,
			created_at datetime, updated_at datetime, deleted_at datetime)`,
		`CREATE TABLE match_attendances (id text PRIMARY KEY, match_id text, player_id text,
			tournament_id text, team_id text, created_at datetime, updated_at datetime, deleted_at datetime)`,
		`CREATE TABLE teams (id text PRIMARY KEY, match_id text, tournament_id text, season_id text,
			name text, slot integer, size integer, is_solo boolean, weighted_score real,
			created_at datetime, updated_at datetime, deleted_at datetime)`,
		`CREATE TABLE team_players (id text PRIMARY KEY, team_id text, player_id text,
			created_at datetime, updated_at datetime, deleted_at datetime)`,
		`CREATE TABLE team_stats (id text PRIMARY KEY, team_id text, match_id text, tournament_id text,
			season_id text, kills integer, deaths integer,
			created_at datetime, updated_at datetime, deleted_at datetime)`,
		`CREATE TABLE team_player_stats (id text PRIMARY KEY, team_id text, player_id text, match_id text,
			kills integer, deaths integer, created_at datetime, updated_at datetime, deleted_at datetime)`,
		`CREATE TABLE wallet_transactions (id text PRIMARY KEY, player_id text, amount integer,
			reason text, reference_id text, created_at datetime, updated_at datetime, deleted_at datetime)`,
		`CREATE TABLE tournament_winners (id text PRIMARY KEY, tournament_id text, position integer,
			team_id text, prize_amount integer, distributed boolean,
			created_at datetime, updated_at datetime, deleted_at datetime,
			UNIQUE (tournament_id, position))`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func seedPlayers(t *testing.T, db *gorm.DB, pool []ScoredPlayer) {
	t.Helper()
	for _, sp := range pool {
		p := sp.Player
		if p.ExternalUserID == "" {
			p.ExternalUserID = "ext-" + p.ID
		}
		require.NoError(t, db.Create(&p).Error)
	}
}

func tableCount(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestGormFormationStore_CommitPersistsEverything(t *testing.T) {
	db := openTestDB(t)
	pool := feePool(8, 2) // p00 and p01 are fee-exempt
	seedPlayers(t, db, pool)

	result, err := BuildTeams(pool, 2)
	require.NoError(t, err)

	store := NewGormFormationStore(db)
	match, err := store.CommitFormation(context.Background(), &FormationPlan{
		PollID:       "poll-1",
		TournamentID: "tour-1",
		SeasonID:     "season-1",
		GroupSize:    2,
		EntryFee:     10,
		Teams:        result.Teams,
	})
	require.NoError(t, err)
	require.NotNil(t, match)

	assert.Equal(t, int64(1), tableCount(t, db, &models.Match{}))
	assert.Equal(t, int64(4), tableCount(t, db, &models.Team{}))
	assert.Equal(t, int64(4), tableCount(t, db, &models.TeamStats{}))
	assert.Equal(t, int64(8), tableCount(t, db, &models.TeamPlayer{}))
	assert.Equal(t, int64(8), tableCount(t, db, &models.TeamPlayerStats{}))
	assert.Equal(t, int64(8), tableCount(t, db, &models.MatchAttendance{}))
	assert.Equal(t, int64(6), tableCount(t, db, &models.WalletTransaction{}))

	// Non-exempt players paid 10 each; exempt wallets untouched.
	var payer, exempt models.Player
	require.NoError(t, db.First(&payer, "id = ?", "p02").Error)
	assert.Equal(t, int64(90), payer.Balance)
	require.NoError(t, db.First(&exempt, "id = ?", "p00").Error)
	assert.Equal(t, int64(100), exempt.Balance)

	// Season stats seeded with the automatic entry death.
	var seeded models.PlayerStats
	require.NoError(t, db.First(&seeded, "player_id = ? AND season_id = ?", "p02", "season-1").Error)
	assert.Equal(t, int64(1), seeded.Deaths)
	assert.Equal(t, int64(0), seeded.Kills)
}

func TestGormFormationStore_SecondCommitForSamePollConflicts(t *testing.T) {
	db := openTestDB(t)
	pool := feePool(4, 0)
	seedPlayers(t, db, pool)

	result, err := BuildTeams(pool, 2)
	require.NoError(t, err)
	plan := &FormationPlan{
		PollID:       "poll-1",
		TournamentID: "tour-1",
		SeasonID:     "season-1",
		GroupSize:    2,
		EntryFee:     10,
		Teams:        result.Teams,
	}

	store := NewGormFormationStore(db)
	_, err = store.CommitFormation(context.Background(), plan)
	require.NoError(t, err)

	_, err = store.CommitFormation(context.Background(), plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// The losing commit left nothing behind: one match, one fee cycle.
	assert.Equal(t, int64(1), tableCount(t, db, &models.Match{}))
	assert.Equal(t, int64(2), tableCount(t, db, &models.Team{}))
	assert.Equal(t, int64(4), tableCount(t, db, &models.WalletTransaction{}))

	var p models.Player
	require.NoError(t, db.First(&p, "id = ?", "p00").Error)
	assert.Equal(t, int64(90), p.Balance)
}

func TestGormFormationStore_FailureRollsBackEverything(t *testing.T) {
	db := openTestDB(t)
	pool := feePool(4, 0)
	seedPlayers(t, db, pool)

	result, err := BuildTeams(pool, 2)
	require.NoError(t, err)

	// Fail the attendance insert, the last write of the batch, so every
	// earlier step has already run inside the transaction.
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("fail_attendance", func(tx *gorm.DB) {
		if tx.Statement.Table == "match_attendances" {
			tx.AddError(errors.New("forced failure"))
		}
	}))

	store := NewGormFormationStore(db)
	_, err = store.CommitFormation(context.Background(), &FormationPlan{
		PollID:       "poll-1",
		TournamentID: "tour-1",
		SeasonID:     "season-1",
		GroupSize:    2,
		EntryFee:     10,
		Teams:        result.Teams,
	})
	require.Error(t, err)

	assert.Equal(t, int64(0), tableCount(t, db, &models.Match{}))
	assert.Equal(t, int64(0), tableCount(t, db, &models.Team{}))
	assert.Equal(t, int64(0), tableCount(t, db, &models.TeamStats{}))
	assert.Equal(t, int64(0), tableCount(t, db, &models.TeamPlayerStats{}))
	assert.Equal(t, int64(0), tableCount(t, db, &models.PlayerStats{}))
	assert.Equal(t, int64(0), tableCount(t, db, &models.MatchAttendance{}))
	assert.Equal(t, int64(0), tableCount(t, db, &models.WalletTransaction{}))

	// No money moved either.
	for _, id := range []string{"p00", "p01", "p02", "p03"} {
		var p models.Player
		require.NoError(t, db.First(&p, "id = ?", id).Error)
		assert.Equal(t, int64(100), p.Balance)
	}
}
