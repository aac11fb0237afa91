package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type OrganizationListItem struct {
	ID        snowflake.ID
	Name      string
	Slug      string
	Role      string
	CreatedAt time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrganization(ctx context.Context, org Organization) error
	GetOrganization(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListItem, error)

	AddMember(ctx context.Context, member OrganizationMember) error
	GetMember(ctx context.Context, orgID, userID snowflake.ID) (*OrganizationMember, error)
	ListActiveMembers(ctx context.Context, orgID snowflake.ID) ([]MemberView, error)
	CountActiveOwners(ctx context.Context, orgID snowflake.ID) (int64, error)
	UpdateMember(ctx context.Context, orgID, userID snowflake.ID, role, status string, updatedAt time.Time) error

	SetActiveOrg(ctx context.Context, userID, orgID snowflake.ID, updatedAt time.Time) error
	ClearActiveOrg(ctx context.Context, userID, orgID snowflake.ID, updatedAt time.Time) error
}
