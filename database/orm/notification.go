package orm

import "time"

// Notification is a gorm table definition represents the user
// notifications produced by review decisions and settlements.
type Notification struct {
	ID        string `gorm:"primary_key;size:36"`
	UserID    string `gorm:"size:36;index"`
	Title     string
	Message   string `gorm:"type:text"`
	Type      string
	ActionURL string
	IsRead    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
