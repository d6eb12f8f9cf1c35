package orm

import "time"

// Role represents the global role of a user
type Role uint8

const (
	RoleBountyHunter Role = iota + 1
	RoleCompanyAdmin
	RoleAdmin
)

var (
	roleValue = map[Role]string{
		RoleBountyHunter: "BOUNTY_HUNTER",
		RoleCompanyAdmin: "COMPANY_ADMIN",
		RoleAdmin:        "ADMIN",
	}

	roleValueType = map[string]Role{
		"BOUNTY_HUNTER": RoleBountyHunter,
		"COMPANY_ADMIN": RoleCompanyAdmin,
		"ADMIN":         RoleAdmin,
	}
)

// StrToRole converts role string to role
func StrToRole(str string) Role {
	return roleValueType[str]
}

// String returns the string of role
func (r Role) String() string {
	if _, ok := roleValue[r]; !ok {
		return "unknown"
	}

	return roleValue[r]
}

// User is a gorm table definition represents the users. TotalEarnings
// is kept in lamports and mutated only by the settlement commit.
type User struct {
	ID            string `gorm:"primary_key;size:36"`
	Email         string `gorm:"uniqueIndex"`
	Username      string `gorm:"uniqueIndex"`
	Role          Role
	WalletAddress string
	Reputation    int64
	TotalEarnings int64
	TotalBounties uint64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
