package models

import "time"

// IPStatus is the lifecycle state of an allow-list entry.
type IPStatus string

const (
	IPActive   IPStatus = "active"
	IPInactive IPStatus = "inactive"
)

// AuthorizedIP is a network address a user may call authenticated endpoints from.
type AuthorizedIP struct {
	ID          int        `db:"id" json:"id"`
	UserID      int        `db:"user_id" json:"user_id"`
	IPAddress   string     `db:"ip_address" json:"ip_address"`
	Description *string    `db:"description" json:"description"`
	Status      IPStatus   `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	LastUsedAt  *time.Time `db:"last_used_at" json:"last_used_at"`
}

// IsActive reports whether the entry currently grants access.
func (ip AuthorizedIP) IsActive() bool {
	return ip.Status == IPActive
}

// RegisterOutcome tells which branch an allow-list upsert took.
type RegisterOutcome int

const (
	IPCreated RegisterOutcome = iota + 1
	IPReactivated
	IPAlreadyActive
)

func (o RegisterOutcome) String() string {
	switch o {
	case IPCreated:
		return "created"
	case IPReactivated:
		return "reactivated"
	case IPAlreadyActive:
		return "already_active"
	default:
		return "skipped"
	}
}
