package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateInvitations(ctx context.Context, invitations []Invitation) error
	// ListPending returns PENDING invitations that have not expired at now.
	ListPending(ctx context.Context, orgID snowflake.ID, now time.Time) ([]Invitation, error)
	GetByID(ctx context.Context, orgID, id snowflake.ID) (*Invitation, error)
	GetByCode(ctx context.Context, code string) (*Invitation, error)
	// Transition moves a PENDING invitation to status and reports whether a
	// row changed.
	Transition(ctx context.Context, id snowflake.ID, status string, acceptedBy *snowflake.ID, at time.Time) (bool, error)
	RevokePendingForEmail(ctx context.Context, orgID snowflake.ID, email string, at time.Time) error
	// ExpirePending marks up to limit PENDING invitations past their expiry as
	// EXPIRED.
	ExpirePending(ctx context.Context, now time.Time, limit int) (int64, error)
}
