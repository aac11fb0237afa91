package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/promptlab/internal/organization/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organizations (id, name, slug, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		org.ID,
		org.Name,
		org.Slug,
		org.CreatedBy,
		org.CreatedAt,
		org.CreatedAt,
	).Error
}

func (r *repository) GetOrganization(ctx context.Context, orgID snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Where("id = ?", orgID).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListItem, error) {
	var items []domain.OrganizationListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, o.slug, m.role, o.created_at
		 FROM organizations o
		 JOIN organization_members m ON m.org_id = o.id
		 WHERE m.user_id = ? AND m.status = ?
		 ORDER BY o.created_at ASC, o.id ASC`,
		userID,
		domain.MemberStatusActive,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *repository) AddMember(ctx context.Context, member domain.OrganizationMember) error {
	status := member.Status
	if status == "" {
		status = domain.MemberStatusActive
	}
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organization_members (id, org_id, user_id, role, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		member.ID,
		member.OrgID,
		member.UserID,
		member.Role,
		status,
		member.CreatedAt,
		member.CreatedAt,
	).Error
}

func (r *repository) GetMember(ctx context.Context, orgID, userID snowflake.ID) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) ListActiveMembers(ctx context.Context, orgID snowflake.ID) ([]domain.MemberView, error) {
	var members []domain.MemberView
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.user_id, u.email, u.display_name AS name, m.role, m.status, m.created_at
		 FROM organization_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.org_id = ? AND m.status = ?
		 ORDER BY m.created_at ASC, m.id ASC`,
		orgID,
		domain.MemberStatusActive,
	).Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) CountActiveOwners(ctx context.Context, orgID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.OrganizationMember{}).
		Where("org_id = ? AND role = ? AND status = ?", orgID, domain.RoleOwner, domain.MemberStatusActive).
		Count(&count).Error
	return count, err
}

func (r *repository) UpdateMember(ctx context.Context, orgID, userID snowflake.ID, role, status string, updatedAt time.Time) error {
	tx := r.db.WithContext(ctx).Exec(
		`UPDATE organization_members SET role = ?, status = ?, updated_at = ?
		 WHERE org_id = ? AND user_id = ?`,
		role,
		status,
		updatedAt,
		orgID,
		userID,
	)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

func (r *repository) SetActiveOrg(ctx context.Context, userID, orgID snowflake.ID, updatedAt time.Time) error {
	tx := r.db.WithContext(ctx).Exec(
		`UPDATE users SET active_org_id = ?, updated_at = ? WHERE id = ?`,
		orgID,
		updatedAt,
		userID,
	)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *repository) ClearActiveOrg(ctx context.Context, userID, orgID snowflake.ID, updatedAt time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE users SET active_org_id = NULL, updated_at = ? WHERE id = ? AND active_org_id = ?`,
		updatedAt,
		userID,
		orgID,
	).Error
}
