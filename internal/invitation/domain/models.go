package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusPending  = "PENDING"
	StatusAccepted = "ACCEPTED"
	StatusExpired  = "EXPIRED"
	StatusRevoked  = "REVOKED"
)

// Invitation is an offer for an email address to join an org with a role.
// Only PENDING rows can transition; every other status is terminal.
type Invitation struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID  `gorm:"column:org_id;not null;index" json:"org_id"`
	Email      string        `gorm:"column:email;type:text;not null;index" json:"email"`
	Role       string        `gorm:"column:role;type:text;not null" json:"role"`
	Status     string        `gorm:"column:status;type:text;not null;index" json:"status"`
	Code       string        `gorm:"column:code;type:text;not null;uniqueIndex" json:"-"`
	InvitedBy  snowflake.ID  `gorm:"column:invited_by;not null" json:"invited_by"`
	ExpiresAt  time.Time     `gorm:"column:expires_at;not null" json:"expires_at"`
	AcceptedBy *snowflake.ID `gorm:"column:accepted_by" json:"accepted_by,omitempty"`
	AcceptedAt *time.Time    `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "organization_invitations" }

func (i Invitation) IsPending() bool { return i.Status == StatusPending }

func (i Invitation) ExpiredAt(now time.Time) bool { return !now.Before(i.ExpiresAt) }
