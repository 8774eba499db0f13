package models

// AuditLog is an append-only record of a privileged action.
type AuditLog struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ActorID   int64  `gorm:"index;not null"`
	ActorName string `gorm:"size:255"`
	Action    string `gorm:"type:text"`
	Timestamp string `gorm:"size:32"` // local time, 2006-01-02 15:04:05
}

func (AuditLog) TableName() string { return "audit_logs" }

// Role is the allow-list class of a user.
type Role int

const (
	RoleNone Role = iota
	RoleMod
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "ADMIN"
	case RoleMod:
		return "MOD"
	default:
		return "NONE"
	}
}

// Actor is the user behind an audited action.
type Actor struct {
	ID   int64
	Name string
	Role Role
}
