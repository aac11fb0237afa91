package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/promptlab/internal/invitation/domain"
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

func (r *repository) CreateInvitations(ctx context.Context, invitations []domain.Invitation) error {
	if len(invitations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&invitations).Error
}

func (r *repository) ListPending(ctx context.Context, orgID snowflake.ID, now time.Time) ([]domain.Invitation, error) {
	var items []domain.Invitation
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND status = ? AND expires_at > ?", orgID, domain.StatusPending, now).
		Order("created_at DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) GetByID(ctx context.Context, orgID, id snowflake.ID) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) Transition(ctx context.Context, id snowflake.ID, status string, acceptedBy *snowflake.ID, at time.Time) (bool, error) {
	fields := map[string]any{
		"status":     status,
		"updated_at": at,
	}
	if status == domain.StatusAccepted {
		fields["accepted_by"] = acceptedBy
		fields["accepted_at"] = at
	}

	tx := r.db.WithContext(ctx).
		Model(&domain.Invitation{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(fields)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *repository) RevokePendingForEmail(ctx context.Context, orgID snowflake.ID, email string, at time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organization_invitations SET status = ?, updated_at = ?
		 WHERE org_id = ? AND email = ? AND status = ?`,
		domain.StatusRevoked,
		at,
		orgID,
		email,
		domain.StatusPending,
	).Error
}

func (r *repository) ExpirePending(ctx context.Context, now time.Time, limit int) (int64, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).
		Model(&domain.Invitation{}).
		Where("status = ? AND expires_at <= ?", domain.StatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tx := r.db.WithContext(ctx).
		Model(&domain.Invitation{}).
		Where("id IN ? AND status = ?", ids, domain.StatusPending).
		Updates(map[string]any{
			"status":     domain.StatusExpired,
			"updated_at": now,
		})
	return tx.RowsAffected, tx.Error
}
