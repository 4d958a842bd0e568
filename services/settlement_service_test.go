package services

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"team-tournament-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestParsePlacements(t *testing.T) {
	specs := parsePlacements("1:1000:a|b,2:500:c")
	require.Len(t, specs, 2)

	assert.Equal(t, 1, specs[0].Position)
	assert.Equal(t, int64(1000), specs[0].Amount)
	assert.Equal(t, []string{"a", "b"}, specs[0].PlayerIDs)

	assert.Equal(t, 2, specs[1].Position)
	assert.Equal(t, int64(500), specs[1].Amount)
	assert.Equal(t, []string{"c"}, specs[1].PlayerIDs)
}

func TestParsePlacements_SkipsMalformedSegments(t *testing.T) {
	// One bad segment never blocks the rest.
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{"empty", "", 0},
		{"missing fields", "1:1000", 0},
		{"bad position", "zero:1000:a", 0},
		{"position below one", "0:1000:a", 0},
		{"bad amount", "1:lots:a", 0},
		{"zero amount", "1:0:a", 0},
		{"no players", "1:1000:", 0},
		{"only separators", "1:1000:| |", 0},
		{"good after bad", "garbage,2:500:c", 1},
		{"whitespace tolerated", " 1:1000:a|b ", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, parsePlacements(tc.raw), tc.want)
		})
	}
}

func settlementApp(db *gorm.DB) *fiber.App {
	app := fiber.New()
	svc := NewSettlementService(db, NewPoolService(db), DefaultTaxPolicy())
	app.Get("/tournaments/:id/tax/preview", svc.TaxPreview)
	app.Post("/tournaments/:id/winners", svc.DeclareWinners)
	return app
}

func TestDeclareWinners_SoloTaxFollowsWinningTeam(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	require.NoError(t, db.Create(&models.Tournament{
		ID: "tour-1", SeasonID: "season-1", Name: "Friday Night",
		Status: models.TournamentStatusRunning, StartTime: now.Add(-2 * time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.Player{ID: "p1", ExternalUserID: "ext-p1", DisplayName: "One", Balance: 0}).Error)
	require.NoError(t, db.Create(&models.Player{ID: "p2", ExternalUserID: "ext-p2", DisplayName: "Two", Balance: 0}).Error)

	require.NoError(t, db.Create(&models.Match{ID: "m1", PollID: "poll-a", TournamentID: "tour-1", SeasonID: "season-1", GroupSize: 1}).Error)
	require.NoError(t, db.Create(&models.Match{ID: "m2", PollID: "poll-b", TournamentID: "tour-1", SeasonID: "season-1", GroupSize: 2}).Error)

	require.NoError(t, db.Create(&models.Team{ID: "team-a", MatchID: "m1", TournamentID: "tour-1", SeasonID: "season-1", Name: "One", Size: 1, IsSolo: true}).Error)
	require.NoError(t, db.Create(&models.Team{ID: "team-b", MatchID: "m2", TournamentID: "tour-1", SeasonID: "season-1", Name: "Team 1", Size: 2, IsSolo: false}).Error)
	require.NoError(t, db.Create(&models.TeamPlayer{ID: "tp-1", TeamID: "team-a", PlayerID: "p1"}).Error)
	require.NoError(t, db.Create(&models.TeamPlayer{ID: "tp-2", TeamID: "team-b", PlayerID: "p1"}).Error)
	require.NoError(t, db.Create(&models.TeamPlayer{ID: "tp-3", TeamID: "team-b", PlayerID: "p2"}).Error)

	// p1's latest entry is the duo; the solo win came earlier.
	require.NoError(t, db.Create(&models.MatchAttendance{
		ID: "at-1", MatchID: "m1", PlayerID: "p1", TournamentID: "tour-1", TeamID: "team-a",
		Timestamps: models.Timestamps{CreatedAt: now.Add(-90 * time.Minute)},
	}).Error)
	require.NoError(t, db.Create(&models.MatchAttendance{
		ID: "at-2", MatchID: "m2", PlayerID: "p1", TournamentID: "tour-1", TeamID: "team-b",
		Timestamps: models.Timestamps{CreatedAt: now.Add(-30 * time.Minute)},
	}).Error)
	require.NoError(t, db.Create(&models.MatchAttendance{
		ID: "at-3", MatchID: "m2", PlayerID: "p2", TournamentID: "tour-1", TeamID: "team-b",
		Timestamps: models.Timestamps{CreatedAt: now.Add(-30 * time.Minute)},
	}).Error)

	app := settlementApp(db)

	// Preview first: a one-player placement is a solo win there too.
	previewReq := httptest.NewRequest("GET",
		"/tournaments/tour-1/tax/preview?season_id=season-1&player_ids=p1&placements=1:1000:p1", nil)
	previewResp, err := app.Test(previewReq)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, previewResp.StatusCode)
	var preview struct {
		Results []TaxResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(previewResp.Body).Decode(&preview))
	require.Len(t, preview.Results, 1)
	assert.True(t, preview.Results[0].IsSolo)
	assert.Equal(t, 0.10, preview.Results[0].SoloRate)

	body := `{"season_id":"season-1","placements":[{"position":1,"prize_amount":1000,"team_id":"team-a"}]}`
	req := httptest.NewRequest("POST", "/tournaments/tour-1/winners", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var payload struct {
		Results  []TaxResult `json:"results"`
		TotalTax int64       `json:"total_tax"`
		SoloTax  int64       `json:"solo_tax"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Len(t, payload.Results, 1)

	// The win was on the solo team, so the solo tax applies even though
	// p1's most recent match entry was on a duo.
	got := payload.Results[0]
	assert.True(t, got.IsSolo)
	assert.Equal(t, 0.10, got.SoloRate)
	assert.Greater(t, got.TaxWithheld, int64(0))
	assert.Equal(t, payload.TotalTax, payload.SoloTax)

	var winner models.TournamentWinner
	require.NoError(t, db.First(&winner, "tournament_id = ? AND position = ?", "tour-1", 1).Error)
	assert.Equal(t, "team-a", winner.TeamID)
	assert.True(t, winner.Distributed)

	var p1 models.Player
	require.NoError(t, db.First(&p1, "id = ?", "p1").Error)
	assert.Equal(t, got.NetAmount, p1.Balance)

	var tournament models.Tournament
	require.NoError(t, db.First(&tournament, "id = ?", "tour-1").Error)
	assert.Equal(t, models.TournamentStatusCompleted, tournament.Status)
}

func TestDeclareWinners_RejectsTeamFromOtherTournament(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	require.NoError(t, db.Create(&models.Tournament{
		ID: "tour-1", SeasonID: "season-1", Name: "Friday Night",
		Status: models.TournamentStatusRunning, StartTime: now,
	}).Error)
	require.NoError(t, db.Create(&models.Tournament{
		ID: "tour-2", SeasonID: "season-1", Name: "Saturday Night",
		Status: models.TournamentStatusRunning, StartTime: now,
	}).Error)
	require.NoError(t, db.Create(&models.Player{ID: "p1", ExternalUserID: "ext-p1", DisplayName: "One", Balance: 0}).Error)
	require.NoError(t, db.Create(&models.Team{ID: "team-x", MatchID: "m9", TournamentID: "tour-2", SeasonID: "season-1", Name: "Team X", Size: 1, IsSolo: true}).Error)
	require.NoError(t, db.Create(&models.TeamPlayer{ID: "tp-1", TeamID: "team-x", PlayerID: "p1"}).Error)

	app := settlementApp(db)
	body := `{"season_id":"season-1","placements":[{"position":1,"prize_amount":1000,"team_id":"team-x"}]}`
	req := httptest.NewRequest("POST", "/tournaments/tour-1/winners", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Nothing was settled or credited.
	assert.Equal(t, int64(0), tableCount(t, db, &models.TournamentWinner{}))
	assert.Equal(t, int64(0), tableCount(t, db, &models.WalletTransaction{}))
	var p1 models.Player
	require.NoError(t, db.First(&p1, "id = ?", "p1").Error)
	assert.Equal(t, int64(0), p1.Balance)
}
