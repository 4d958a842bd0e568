package models

// Team is one roster produced by a formation run. The roster is immutable
// after commit; swaps happen through a separate admin flow that rebuilds
// the team rows.
type Team struct {
	ID           string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	MatchID      string `gorm:"index;not null" json:"match_id"`
	TournamentID string `gorm:"index;not null" json:"tournament_id"`
	SeasonID     string `gorm:"index;not null" json:"season_id"`

	Name string `gorm:"not null" json:"name"`
	// Slot is the display position assigned by the presentation shuffle.
	Slot int `gorm:"default:0" json:"slot"`

	Size          int     `gorm:"not null" json:"size"`
	IsSolo        bool    `gorm:"default:false" json:"is_solo"`
	WeightedScore float64 `gorm:"default:0" json:"weighted_score"`

	Players []TeamPlayer `json:"players,omitempty" gorm:"foreignKey:TeamID"`

	Timestamps
}

// TeamPlayer links one player to one team.
type TeamPlayer struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TeamID   string `gorm:"not null;uniqueIndex:idx_team_player" json:"team_id"`
	PlayerID string `gorm:"not null;uniqueIndex:idx_team_player" json:"player_id"`

	Timestamps
}

// TeamStats is the per-team aggregate for one match, created zeroed at
// formation and filled by the results sync worker.
type TeamStats struct {
	ID           string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TeamID       string `gorm:"uniqueIndex;not null" json:"team_id"`
	MatchID      string `gorm:"index;not null" json:"match_id"`
	TournamentID string `gorm:"index;not null" json:"tournament_id"`
	SeasonID     string `gorm:"index;not null" json:"season_id"`

	Kills  int64 `gorm:"default:0" json:"kills"`
	Deaths int64 `gorm:"default:0" json:"deaths"`

	Timestamps
}

// TeamPlayerStats is the per-player row for one match entry. Deaths is
// seeded at 1: every tournament entry credits one death up front.
type TeamPlayerStats struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TeamID   string `gorm:"not null;uniqueIndex:idx_teamstats_player" json:"team_id"`
	PlayerID string `gorm:"not null;uniqueIndex:idx_teamstats_player" json:"player_id"`
	MatchID  string `gorm:"index;not null" json:"match_id"`

	Kills  int64 `gorm:"default:0" json:"kills"`
	Deaths int64 `gorm:"default:1" json:"deaths"`

	Timestamps
}
