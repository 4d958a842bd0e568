package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"team-tournament-system/models"

	"gorm.io/gorm"
)

// KillUpdate is one kill-count delta reported by the game results
// service for a player's match entry.
type KillUpdate struct {
	MatchID    string    `json:"match_id"`
	TeamID     string    `json:"team_id"`
	PlayerID   string    `json:"player_id"`
	SeasonID   string    `json:"season_id"`
	Kills      int64     `json:"kills"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ResultsSyncClient polls the game results service for kill counts and
// applies them to the stats rows seeded at formation time.
type ResultsSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewResultsSyncClient(db *gorm.DB) *ResultsSyncClient {
	baseURL := os.Getenv("RESULTS_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("RESULTS_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("TOURNAMENT_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("TOURNAMENT_SERVICE_TOKEN environment variable is required for results sync")
	}

	return &ResultsSyncClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetKillUpdates fetches kill deltas recorded since the given time.
func (c *ResultsSyncClient) GetKillUpdates(ctx context.Context, since time.Time) ([]KillUpdate, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/kill-feed", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results service URL: %w", err)
	}
	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call results service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("results service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Updates []KillUpdate `json:"updates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode results service response: %w", err)
	}
	return response.Updates, nil
}

// applyBatch increments the three stats surfaces for each delta inside
// one transaction, so a partial batch never leaves them disagreeing.
func (c *ResultsSyncClient) applyBatch(ctx context.Context, updates []KillUpdate) error {
	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			if u.Kills <= 0 {
				continue
			}
			res := tx.Model(&models.TeamPlayerStats{}).
				Where("team_id = ? AND player_id = ?", u.TeamID, u.PlayerID).
				UpdateColumn("kills", gorm.Expr("kills + ?", u.Kills))
			if res.Error != nil {
				return fmt.Errorf("update team player stats: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				log.Printf("[ResultsSync] no stats row for team=%s player=%s, skipping", u.TeamID, u.PlayerID)
				continue
			}
			if err := tx.Model(&models.TeamStats{}).
				Where("team_id = ?", u.TeamID).
				UpdateColumn("kills", gorm.Expr("kills + ?", u.Kills)).Error; err != nil {
				return fmt.Errorf("update team stats: %w", err)
			}
			if err := tx.Model(&models.PlayerStats{}).
				Where("player_id = ? AND season_id = ?", u.PlayerID, u.SeasonID).
				UpdateColumn("kills", gorm.Expr("kills + ?", u.Kills)).Error; err != nil {
				return fmt.Errorf("update player stats: %w", err)
			}
		}
		return nil
	})
}

// PollKillFeed runs the sync loop until the context is cancelled.
func PollKillFeed(ctx context.Context, client *ResultsSyncClient, pollInterval time.Duration) {
	log.Println("Starting kill-feed polling...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Kill-feed polling stopped.")
			return
		case <-ticker.C:
			tickStart := time.Now().UTC()

			updates, err := client.GetKillUpdates(ctx, lastSyncTime)
			if err != nil {
				log.Printf("[ResultsSync] poll failed: %v", err)
				continue
			}
			if len(updates) == 0 {
				continue
			}

			if err := client.applyBatch(ctx, updates); err != nil {
				// Keep the window: retry the same batch next tick.
				log.Printf("[ResultsSync] failed to apply %d update(s): %v", len(updates), err)
				continue
			}

			lastSyncTime = tickStart
			log.Printf("[ResultsSync] applied %d kill update(s)", len(updates))
		}
	}
}
