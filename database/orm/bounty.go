package orm

import "time"

// Bounty is a gorm table definition represents the funding programs.
// Amounts are in lamports. PaidOut and ValidSubmissions are mutated
// only by the settlement commit.
type Bounty struct {
	ID                  string `gorm:"primary_key;size:36"`
	CompanyID           string `gorm:"size:36;index"`
	Title               string
	Description         string `gorm:"type:text"`
	RewardPerSubmission int64
	// MaxSubmissions caps how many submissions can be paid out.
	// Zero means unlimited.
	MaxSubmissions   uint32
	ValidSubmissions uint32
	EscrowAddress    string
	PaidOut          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
