package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateOrganizationRequest) (*OrganizationResponse, error)
	GetByID(ctx context.Context, orgID snowflake.ID) (*OrganizationResponse, error)
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListResponseItem, error)

	GetMember(ctx context.Context, orgID, userID snowflake.ID) (*OrganizationMember, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]MemberResponse, error)
	UpdateMemberRole(ctx context.Context, req UpdateMemberRoleRequest) (*MemberResponse, error)
	RemoveMember(ctx context.Context, req RemoveMemberRequest) error

	// SwitchActiveOrg persists orgID as the user's active org and returns the
	// member's role. The pointer is untouched on any error.
	SwitchActiveOrg(ctx context.Context, userID, orgID snowflake.ID) (string, error)
}

type CreateOrganizationRequest struct {
	Name string
}

type UpdateMemberRoleRequest struct {
	OrgID     snowflake.ID
	ActorID   snowflake.ID
	ActorRole string
	UserID    snowflake.ID
	Role      string
}

type RemoveMemberRequest struct {
	OrgID     snowflake.ID
	ActorID   snowflake.ID
	ActorRole string
	UserID    snowflake.ID
}

type OrganizationResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

type OrganizationListResponseItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type MemberResponse struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joined_at"`
}

var (
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidRole          = errors.New("invalid_role")
	ErrForbidden            = errors.New("forbidden")
	ErrOrganizationNotFound = errors.New("organization_not_found")
	ErrMemberNotFound       = errors.New("member_not_found")
	ErrUserNotFound         = errors.New("user_not_found")
	ErrLastOwner            = errors.New("last_owner")
)
