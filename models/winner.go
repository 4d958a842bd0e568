package models

// TournamentWinner records one winning placement at settlement time.
type TournamentWinner struct {
	ID           string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TournamentID string `gorm:"not null;uniqueIndex:idx_tournament_position" json:"tournament_id"`
	Position     int    `gorm:"not null;uniqueIndex:idx_tournament_position" json:"position"`
	TeamID       string `gorm:"index;not null" json:"team_id"`

	PrizeAmount int64 `gorm:"not null" json:"prize_amount"`
	Distributed bool  `gorm:"default:false" json:"distributed"`

	Timestamps
}
