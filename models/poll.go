package models

import "time"

// VoteChoice is a player's stated intent for an upcoming tournament.
type VoteChoice string

const (
	VoteIn   VoteChoice = "in"   // join a team
	VoteOut  VoteChoice = "out"  // not participating
	VoteSolo VoteChoice = "solo" // participate, but always as a size-1 team
)

// PollStatus tracks whether a poll still accepts votes.
type PollStatus string

const (
	PollStatusOpen   PollStatus = "open"
	PollStatusClosed PollStatus = "closed"
)

// Poll is the participation poll for one tournament.
type Poll struct {
	ID           string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TournamentID string     `gorm:"index;not null" json:"tournament_id"`
	SeasonID     string     `gorm:"index;not null" json:"season_id"`
	Question     string     `json:"question"`
	Status       PollStatus `gorm:"type:varchar(16);default:'open'" json:"status"`
	ClosesAt     time.Time  `json:"closes_at"`

	Timestamps
}

// PollVote is one player's vote on one poll. A player votes at most once
// per poll; re-voting overwrites the previous choice while the poll is open.
type PollVote struct {
	ID       string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	PollID   string     `gorm:"not null;uniqueIndex:idx_poll_player" json:"poll_id"`
	PlayerID string     `gorm:"not null;uniqueIndex:idx_poll_player" json:"player_id"`
	Choice   VoteChoice `gorm:"type:varchar(8);not null" json:"choice"`

	Timestamps
}
