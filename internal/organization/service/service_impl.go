package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/promptlab/internal/clock"
	"github.com/smallbiznis/promptlab/internal/organization/domain"
	"github.com/smallbiznis/promptlab/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxNameLength = 120

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	GenID *snowflake.Node
	Clock clock.Clock
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("organization.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now()
	orgID := s.genID.Generate()
	org := domain.Organization{
		ID:        orgID,
		Name:      name,
		Slug:      makeSlug(name, orgID, false),
		CreatedBy: userID,
		CreatedAt: now,
	}

	create := func(org domain.Organization) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if err := repo.CreateOrganization(ctx, org); err != nil {
				return err
			}

			return repo.AddMember(ctx, domain.OrganizationMember{
				ID:        s.genID.Generate(),
				OrgID:     org.ID,
				UserID:    userID,
				Role:      domain.RoleOwner,
				Status:    domain.MemberStatusActive,
				CreatedAt: now,
			})
		})
	}

	err := create(org)
	if err != nil && db.IsDuplicateKeyErr(err) {
		org.Slug = makeSlug(name, orgID, true)
		err = create(org)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("org_id", orgID.String()),
		zap.String("owner_user_id", userID.String()),
	)

	return &domain.OrganizationResponse{
		ID:        orgID.String(),
		Name:      org.Name,
		Slug:      org.Slug,
		CreatedAt: org.CreatedAt,
	}, nil
}

func (s *service) GetByID(ctx context.Context, orgID snowflake.ID) (*domain.OrganizationResponse, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	return &domain.OrganizationResponse{
		ID:        org.ID.String(),
		Name:      org.Name,
		Slug:      org.Slug,
		CreatedAt: org.CreatedAt,
	}, nil
}

func (s *service) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListResponseItem, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.OrganizationListResponseItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.OrganizationListResponseItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			Slug:      item.Slug,
			Role:      item.Role,
			CreatedAt: item.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) GetMember(ctx context.Context, orgID, userID snowflake.ID) (*domain.OrganizationMember, error) {
	return s.repo.GetMember(ctx, orgID, userID)
}

func (s *service) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.MemberResponse, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	members, err := s.repo.ListActiveMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.MemberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, toMemberResponse(m))
	}
	return resp, nil
}

func (s *service) UpdateMemberRole(ctx context.Context, req domain.UpdateMemberRoleRequest) (*domain.MemberResponse, error) {
	role, ok := domain.NormalizeRole(req.Role)
	if !ok {
		return nil, domain.ErrInvalidRole
	}

	var updated *domain.MemberView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		target, err := activeMember(ctx, repo, req.OrgID, req.UserID)
		if err != nil {
			return err
		}

		if err := checkOwnerChange(req.ActorRole, target.Role, role); err != nil {
			return err
		}
		if target.Role == domain.RoleOwner && role != domain.RoleOwner {
			if err := ensureAnotherOwner(ctx, repo, req.OrgID); err != nil {
				return err
			}
		}

		if err := repo.UpdateMember(ctx, req.OrgID, req.UserID, role, domain.MemberStatusActive, s.clock.Now()); err != nil {
			return err
		}

		members, err := repo.ListActiveMembers(ctx, req.OrgID)
		if err != nil {
			return err
		}
		for i := range members {
			if members[i].UserID == req.UserID {
				updated = &members[i]
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, domain.ErrMemberNotFound
	}

	s.log.Info("member role updated",
		zap.String("org_id", req.OrgID.String()),
		zap.String("user_id", req.UserID.String()),
		zap.String("role", role),
	)

	resp := toMemberResponse(*updated)
	return &resp, nil
}

func (s *service) RemoveMember(ctx context.Context, req domain.RemoveMemberRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		target, err := activeMember(ctx, repo, req.OrgID, req.UserID)
		if err != nil {
			return err
		}

		if target.Role == domain.RoleOwner {
			if domain.RoleRank(req.ActorRole) < domain.RoleRank(domain.RoleOwner) {
				return domain.ErrForbidden
			}
			if err := ensureAnotherOwner(ctx, repo, req.OrgID); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		if err := repo.UpdateMember(ctx, req.OrgID, req.UserID, target.Role, domain.MemberStatusRemoved, now); err != nil {
			return err
		}
		return repo.ClearActiveOrg(ctx, req.UserID, req.OrgID, now)
	})
}

func (s *service) SwitchActiveOrg(ctx context.Context, userID, orgID snowflake.ID) (string, error) {
	if userID == 0 {
		return "", domain.ErrInvalidUser
	}
	if orgID == 0 {
		return "", domain.ErrInvalidOrganization
	}

	var role string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		member, err := repo.GetMember(ctx, orgID, userID)
		if err != nil {
			if errors.Is(err, domain.ErrMemberNotFound) {
				return domain.ErrForbidden
			}
			return err
		}
		if !member.IsActive() {
			return domain.ErrForbidden
		}

		if err := repo.SetActiveOrg(ctx, userID, orgID, s.clock.Now()); err != nil {
			return err
		}
		role = member.Role
		return nil
	})
	if err != nil {
		return "", err
	}

	s.log.Debug("active org switched",
		zap.String("user_id", userID.String()),
		zap.String("org_id", orgID.String()),
	)
	return role, nil
}

func activeMember(ctx context.Context, repo domain.Repository, orgID, userID snowflake.ID) (*domain.OrganizationMember, error) {
	member, err := repo.GetMember(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if !member.IsActive() {
		return nil, domain.ErrMemberNotFound
	}
	return member, nil
}

// Only owners may grant or revoke OWNER.
func checkOwnerChange(actorRole, currentRole, newRole string) error {
	if currentRole != domain.RoleOwner && newRole != domain.RoleOwner {
		return nil
	}
	if domain.RoleRank(actorRole) < domain.RoleRank(domain.RoleOwner) {
		return domain.ErrForbidden
	}
	return nil
}

func ensureAnotherOwner(ctx context.Context, repo domain.Repository, orgID snowflake.ID) error {
	owners, err := repo.CountActiveOwners(ctx, orgID)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return domain.ErrLastOwner
	}
	return nil
}

func makeSlug(name string, orgID snowflake.ID, withSuffix bool) string {
	base := slug.Make(name)
	if base == "" {
		base = "org"
	}
	if !withSuffix {
		return base
	}
	id := orgID.Base36()
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return base + "-" + id
}

func toMemberResponse(m domain.MemberView) domain.MemberResponse {
	return domain.MemberResponse{
		UserID:   m.UserID.String(),
		Email:    m.Email,
		Name:     m.Name,
		Role:     m.Role,
		Status:   m.Status,
		JoinedAt: m.CreatedAt,
	}
}
