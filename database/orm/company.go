package orm

import "time"

// Company is a gorm table definition represents the companies funding
// bounties. The aggregate totals are mutated only by the settlement
// commit.
type Company struct {
	ID                      string `gorm:"primary_key;size:36"`
	Name                    string `gorm:"uniqueIndex"`
	WalletAddress           string
	TotalBountiesPaid       int64
	ResolvedVulnerabilities uint64
	CreatedAt               time.Time
	UpdatedAt               time.Time
}
