package orm

import "time"

// AuditLog is a gorm table definition represents the append-only
// audit trail. Rows are written once per settlement and never mutated
// or deleted.
type AuditLog struct {
	ID         uint64 `gorm:"primary_key"`
	ActorID    string `gorm:"size:36;index"`
	Action     string
	EntityType string
	EntityID   string `gorm:"size:36;index"`
	OldValue   string `gorm:"type:text"`
	NewValue   string `gorm:"type:text"`
	CreatedAt  time.Time
}

// TableName change default table name
func (a AuditLog) TableName() string {
	return "audit_logs"
}
