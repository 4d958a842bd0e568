package services

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func previewApp(pool PoolLoader) *fiber.App {
	app := fiber.New()
	svc := NewPreviewService(pool)
	app.Get("/tournaments/:id/teams/preview", svc.PreviewTeams)
	return app
}

func TestPreviewTeams_ReadOnlyRun(t *testing.T) {
	pool := feePool(8, 0)
	pool[0].Player.Balance = 2
	app := previewApp(&stubPool{pool: pool})

	req := httptest.NewRequest("GET", "/tournaments/t1/teams/preview?poll_id=p1&season_id=s1&group_size=2&entry_fee=10", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Teams []struct {
			Slot    int  `json:"slot"`
			IsSolo  bool `json:"is_solo"`
			Players []struct {
				ID string `json:"id"`
			} `json:"players"`
		} `json:"teams"`
		GroupSize int                   `json:"group_size"`
		SoloCount int                   `json:"solo_count"`
		Flagged   []InsufficientBalance `json:"players_with_insufficient_balance"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))

	assert.Equal(t, 2, payload.GroupSize)
	assert.Equal(t, 0, payload.SoloCount)
	require.Len(t, payload.Teams, 4)
	for _, team := range payload.Teams {
		assert.Len(t, team.Players, 2)
	}
	require.Len(t, payload.Flagged, 1)
	assert.Equal(t, "p00", payload.Flagged[0].ID)
}

func TestPreviewTeams_ZeroStatsStayVisible(t *testing.T) {
	pool := feePool(2, 0)
	pool[1].Player.Balance = 0 // flagged — and its zero must still render
	app := previewApp(&stubPool{pool: pool})

	req := httptest.NewRequest("GET", "/tournaments/t1/teams/preview?poll_id=p1&season_id=s1&group_size=2&entry_fee=10", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// An empty wallet and a kill-less season are real values; the payload
	// must carry them rather than dropping the fields.
	assert.Contains(t, string(body), `"balance":0`)
	assert.Contains(t, string(body), `"kills":0`)
	assert.Contains(t, string(body), `"deaths":0`)
	assert.Contains(t, string(body), `"recent_wins":0`)
}

func TestPreviewTeams_ValidationErrors(t *testing.T) {
	app := previewApp(&stubPool{})

	for _, path := range []string{
		"/tournaments/t1/teams/preview?season_id=s1",
		"/tournaments/t1/teams/preview?poll_id=p1",
		"/tournaments/t1/teams/preview?poll_id=p1&season_id=s1&group_size=9",
	} {
		req := httptest.NewRequest("GET", path, nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equalf(t, fiber.StatusBadRequest, resp.StatusCode, "path %s", path)
	}
}

func TestPreviewTeams_EmptyPool(t *testing.T) {
	app := previewApp(&stubPool{err: ErrNoEligiblePlayers})

	req := httptest.NewRequest("GET", "/tournaments/t1/teams/preview?poll_id=p1&season_id=s1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
