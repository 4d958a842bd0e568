package models

// Match is the grouping object created once per formation run. It owns
// every Team produced by that run. The unique index on PollID is the
// guard against two concurrent formation commits for the same poll:
// the second insert fails and its whole transaction rolls back.
type Match struct {
	ID           string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	PollID       string `gorm:"uniqueIndex;not null" json:"poll_id"`
	TournamentID string `gorm:"index;not null" json:"tournament_id"`
	SeasonID     string `gorm:"index;not null" json:"season_id"`

	GroupSize       int   `gorm:"not null" json:"group_size"`
	EntryFeeCharged int64 `gorm:"default:0" json:"entry_fee_charged"`

	Teams []Team `json:"teams,omitempty" gorm:"foreignKey:MatchID"`

	Timestamps
}

// MatchAttendance links a player to the match they entered and the team
// they entered it on, for participation-rate lookups at settlement time.
type MatchAttendance struct {
	ID           string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	MatchID      string `gorm:"not null;uniqueIndex:idx_match_player" json:"match_id"`
	PlayerID     string `gorm:"not null;uniqueIndex:idx_match_player" json:"player_id"`
	TournamentID string `gorm:"index;not null" json:"tournament_id"`
	TeamID       string `gorm:"index;not null" json:"team_id"`

	Timestamps
}
