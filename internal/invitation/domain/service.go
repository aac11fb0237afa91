package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateInvitationsRequest) ([]InvitationResponse, error)
	ListPending(ctx context.Context, orgID snowflake.ID) ([]InvitationResponse, error)
	Revoke(ctx context.Context, orgID, invitationID snowflake.ID) error
	Accept(ctx context.Context, req AcceptRequest) (*AcceptResult, error)
}

type InviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type CreateInvitationsRequest struct {
	OrgID       snowflake.ID
	InviterID   snowflake.ID
	InviterRole string
	Invitations []InviteRequest
}

type AcceptRequest struct {
	Code   string
	UserID snowflake.ID
	Email  string
}

type AcceptResult struct {
	InvitationID snowflake.ID
	OrgID        snowflake.ID
	Role         string
}

// InvitationResponse carries Code only on creation.
type InvitationResponse struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	Code      string    `json:"code,omitempty"`
	InvitedBy string    `json:"invited_by"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

const MaxBatchSize = 50

var (
	ErrNoInvitations      = errors.New("invalid_invitations")
	ErrTooManyInvitations = errors.New("too_many_invitations")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidRole        = errors.New("invalid_role")
	ErrRoleExceedsInviter = errors.New("role_exceeds_inviter")
	ErrNotFound           = errors.New("invitation_not_found")
	ErrNotPending         = errors.New("invitation_not_pending")
	ErrExpired            = errors.New("invitation_expired")
	ErrEmailMismatch      = errors.New("invitation_email_mismatch")
	ErrAlreadyMember      = errors.New("already_member")
)
