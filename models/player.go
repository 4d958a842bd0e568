package models

// SkillCategory is the tier label assigned to a player by the admins.
// It feeds the weighted scorer; it is not derived from stats automatically.
type SkillCategory string

const (
	SkillCategoryRookie  SkillCategory = "rookie"
	SkillCategoryRegular SkillCategory = "regular"
	SkillCategoryVeteran SkillCategory = "veteran"
	SkillCategoryPro     SkillCategory = "pro"
)

// Player is the local player record for the tournament service.
// Players are never hard-deleted — IsBanned is the soft removal flag.
type Player struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // profile service UUID
	DisplayName    string `gorm:"index;not null" json:"display_name"`

	SkillCategory SkillCategory `gorm:"type:varchar(16);default:'regular'" json:"skill_category"`

	// Balance is the cached UC wallet balance in integer currency units.
	// It must never change without a matching WalletTransaction row.
	Balance int64 `gorm:"default:0" json:"balance"`

	IsBanned bool `gorm:"default:false" json:"is_banned"`
	// UCExempt players join tournaments without paying entry fees.
	UCExempt bool `gorm:"default:false" json:"uc_exempt"`

	Timestamps
}

// PlayerStats is the per-season aggregate ledger for a player.
// Deaths is incremented by 1 on every tournament entry (one death is
// credited automatically per entry); kills arrive later from the
// results sync worker.
type PlayerStats struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	PlayerID string `gorm:"not null;uniqueIndex:idx_player_season" json:"player_id"`
	SeasonID string `gorm:"not null;uniqueIndex:idx_player_season" json:"season_id"`

	Kills  int64 `gorm:"default:0" json:"kills"`
	Deaths int64 `gorm:"default:0" json:"deaths"`

	Timestamps
}
