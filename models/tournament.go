package models

import "time"

// TournamentStatus lifecycle: draft → published → running → completed.
type TournamentStatus string

const (
	TournamentStatusDraft     TournamentStatus = "draft"
	TournamentStatusPublished TournamentStatus = "published"
	TournamentStatusRunning   TournamentStatus = "running"
	TournamentStatusCompleted TournamentStatus = "completed"
)

// Tournament is one recurring team event inside a season.
type Tournament struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	SeasonID string `gorm:"index;not null" json:"season_id"`
	Name     string `gorm:"not null" json:"name"`

	Status    TournamentStatus `gorm:"type:varchar(16);default:'draft'" json:"status"`
	StartTime time.Time        `gorm:"not null;index" json:"start_time"`
	EndTime   time.Time        `json:"end_time"`

	// EntryFee is the default UC entry fee; formation requests may override it.
	EntryFee  int64  `gorm:"default:0" json:"entry_fee"`
	PrizePool string `json:"prize_pool"`

	Timestamps
}
