package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/promptlab/internal/clock"
	"github.com/smallbiznis/promptlab/internal/config"
	"github.com/smallbiznis/promptlab/internal/invitation/domain"
	orgdomain "github.com/smallbiznis/promptlab/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultInvitationTTL = 7 * 24 * time.Hour

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Cfg     config.Config
	Repo    domain.Repository
	OrgRepo orgdomain.Repository
	GenID   *snowflake.Node
	Clock   clock.Clock
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	orgRepo orgdomain.Repository
	genID   *snowflake.Node
	clock   clock.Clock
	ttl     time.Duration
}

func NewService(p Params) domain.Service {
	ttl := p.Cfg.InvitationTTL
	if ttl <= 0 {
		ttl = defaultInvitationTTL
	}
	return &service{
		db:      p.DB,
		log:     p.Log.Named("invitation.service"),
		repo:    p.Repo,
		orgRepo: p.OrgRepo,
		genID:   p.GenID,
		clock:   p.Clock,
		ttl:     ttl,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateInvitationsRequest) ([]domain.InvitationResponse, error) {
	if len(req.Invitations) == 0 {
		return nil, domain.ErrNoInvitations
	}
	if len(req.Invitations) > domain.MaxBatchSize {
		return nil, domain.ErrTooManyInvitations
	}

	now := s.clock.Now()
	seen := make(map[string]struct{}, len(req.Invitations))
	invitations := make([]domain.Invitation, 0, len(req.Invitations))
	for _, item := range req.Invitations {
		email, err := normalizeEmail(item.Email)
		if err != nil {
			return nil, domain.ErrInvalidEmail
		}
		role, ok := orgdomain.NormalizeRole(item.Role)
		if !ok {
			return nil, domain.ErrInvalidRole
		}
		if orgdomain.RoleRank(role) > orgdomain.RoleRank(req.InviterRole) {
			return nil, domain.ErrRoleExceedsInviter
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}

		invitations = append(invitations, domain.Invitation{
			ID:        s.genID.Generate(),
			OrgID:     req.OrgID,
			Email:     email,
			Role:      role,
			Status:    domain.StatusPending,
			Code:      ulid.Make().String(),
			InvitedBy: req.InviterID,
			ExpiresAt: now.Add(s.ttl),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, inv := range invitations {
			if err := repo.RevokePendingForEmail(ctx, inv.OrgID, inv.Email, now); err != nil {
				return err
			}
		}
		return repo.CreateInvitations(ctx, invitations)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invitations created",
		zap.String("org_id", req.OrgID.String()),
		zap.Int("count", len(invitations)),
	)

	resp := make([]domain.InvitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		item := toResponse(inv)
		item.Code = inv.Code
		resp = append(resp, item)
	}
	return resp, nil
}

func (s *service) ListPending(ctx context.Context, orgID snowflake.ID) ([]domain.InvitationResponse, error) {
	items, err := s.repo.ListPending(ctx, orgID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	resp := make([]domain.InvitationResponse, 0, len(items))
	for _, inv := range items {
		resp = append(resp, toResponse(inv))
	}
	return resp, nil
}

func (s *service) Revoke(ctx context.Context, orgID, invitationID snowflake.ID) error {
	inv, err := s.repo.GetByID(ctx, orgID, invitationID)
	if err != nil {
		return err
	}
	if !inv.IsPending() {
		return domain.ErrNotPending
	}

	ok, err := s.repo.Transition(ctx, inv.ID, domain.StatusRevoked, nil, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotPending
	}
	return nil
}

func (s *service) Accept(ctx context.Context, req domain.AcceptRequest) (*domain.AcceptResult, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, domain.ErrNotFound
	}

	inv, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !inv.IsPending() {
		return nil, domain.ErrNotPending
	}

	email, err := normalizeEmail(req.Email)
	if err != nil || email != inv.Email {
		return nil, domain.ErrEmailMismatch
	}

	now := s.clock.Now()
	if inv.ExpiredAt(now) {
		if _, err := s.repo.Transition(ctx, inv.ID, domain.StatusExpired, nil, now); err != nil {
			return nil, err
		}
		return nil, domain.ErrExpired
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Transition(ctx, inv.ID, domain.StatusAccepted, &req.UserID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotPending
		}

		orgRepo := s.orgRepo.WithTx(tx)
		member, err := orgRepo.GetMember(ctx, inv.OrgID, req.UserID)
		switch {
		case err == nil && member.IsActive():
			return domain.ErrAlreadyMember
		case err == nil:
			return orgRepo.UpdateMember(ctx, inv.OrgID, req.UserID, inv.Role, orgdomain.MemberStatusActive, now)
		case errors.Is(err, orgdomain.ErrMemberNotFound):
			return orgRepo.AddMember(ctx, orgdomain.OrganizationMember{
				ID:        s.genID.Generate(),
				OrgID:     inv.OrgID,
				UserID:    req.UserID,
				Role:      inv.Role,
				Status:    orgdomain.MemberStatusActive,
				CreatedAt: now,
			})
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invitation accepted",
		zap.String("org_id", inv.OrgID.String()),
		zap.String("user_id", req.UserID.String()),
	)

	return &domain.AcceptResult{
		InvitationID: inv.ID,
		OrgID:        inv.OrgID,
		Role:         inv.Role,
	}, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func toResponse(inv domain.Invitation) domain.InvitationResponse {
	return domain.InvitationResponse{
		ID:        inv.ID.String(),
		OrgID:     inv.OrgID.String(),
		Email:     inv.Email,
		Role:      inv.Role,
		Status:    inv.Status,
		InvitedBy: inv.InvitedBy.String(),
		ExpiresAt: inv.ExpiresAt,
		CreatedAt: inv.CreatedAt,
	}
}
