package orm

import "time"

// CompanyMember is a gorm table definition represents capability
// grants of a user scoped to one company. Read-only to the settlement
// core.
type CompanyMember struct {
	ID                string `gorm:"primary_key;size:36"`
	UserID            string `gorm:"size:36;index:idx_member_user_company,unique"`
	CompanyID         string `gorm:"size:36;index:idx_member_user_company,unique"`
	CanReviewBounty   bool
	CanApprovePayment bool
	CanManageMembers  bool
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
