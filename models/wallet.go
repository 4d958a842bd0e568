package models

// TransactionReason classifies wallet ledger entries.
type TransactionReason string

const (
	ReasonEntryFee        TransactionReason = "tournament_entry_fee"
	ReasonTournamentPrize TransactionReason = "tournament_prize"
	ReasonManualAdjust    TransactionReason = "manual_adjustment"
)

// WalletTransaction is one append-only wallet ledger row. Amount is signed
// UC units: debits are negative, credits positive. Every change to
// Player.Balance is paired 1:1 with exactly one of these rows.
type WalletTransaction struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	PlayerID string `gorm:"index;not null" json:"player_id"`

	Amount int64             `gorm:"not null" json:"amount"`
	Reason TransactionReason `gorm:"type:varchar(32);not null" json:"reason"`
	// ReferenceID points at the match or tournament that caused the entry.
	ReferenceID string `gorm:"index" json:"reference_id,omitempty"`

	Timestamps
}
