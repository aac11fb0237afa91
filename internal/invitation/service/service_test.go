package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/promptlab/internal/auth/domain"
	"github.com/smallbiznis/promptlab/internal/clock"
	"github.com/smallbiznis/promptlab/internal/config"
	"github.com/smallbiznis/promptlab/internal/invitation/domain"
	"github.com/smallbiznis/promptlab/internal/invitation/repository"
	"github.com/smallbiznis/promptlab/internal/migration"
	orgdomain "github.com/smallbiznis/promptlab/internal/organization/domain"
	orgrepository "github.com/smallbiznis/promptlab/internal/organization/repository"
	"github.com/smallbiznis/promptlab/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	svc     domain.Service
	orgRepo orgdomain.Repository
	genID   *snowflake.Node
	clock   *clock.FakeClock
	orgID   snowflake.ID
	ownerID snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))
	orgRepo := orgrepository.NewRepository(conn)

	f := &fixture{
		db:      conn,
		orgRepo: orgRepo,
		genID:   node,
		clock:   clk,
		svc: NewService(Params{
			DB:      conn,
			Log:     zaptest.NewLogger(t),
			Cfg:     config.Config{InvitationTTL: 48 * time.Hour},
			Repo:    repository.NewRepository(conn),
			OrgRepo: orgRepo,
			GenID:   node,
			Clock:   clk,
		}),
	}

	f.ownerID = f.user(t, "owner@example.com")
	f.orgID = node.Generate()
	ctx := context.Background()
	require.NoError(t, orgRepo.CreateOrganization(ctx, orgdomain.Organization{
		ID: f.orgID, Name: "Acme", Slug: "acme", CreatedBy: f.ownerID, CreatedAt: clk.Now(),
	}))
	require.NoError(t, orgRepo.AddMember(ctx, orgdomain.OrganizationMember{
		ID: node.Generate(), OrgID: f.orgID, UserID: f.ownerID, Role: orgdomain.RoleOwner,
		Status: orgdomain.MemberStatusActive, CreatedAt: clk.Now(),
	}))
	return f
}

func (f *fixture) user(t *testing.T, email string) snowflake.ID {
	t.Helper()
	u := authdomain.User{ID: f.genID.Generate(), Email: email, DisplayName: email, CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now()}
	require.NoError(t, f.db.Create(&u).Error)
	return u.ID
}

func (f *fixture) invite(t *testing.T, email, role string) domain.InvitationResponse {
	t.Helper()
	resp, err := f.svc.Create(context.Background(), domain.CreateInvitationsRequest{
		OrgID:       f.orgID,
		InviterID:   f.ownerID,
		InviterRole: orgdomain.RoleOwner,
		Invitations: []domain.InviteRequest{{Email: email, Role: role}},
	})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	return resp[0]
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreateInvitationsRequest{OrgID: f.orgID, InviterRole: orgdomain.RoleOwner})
	assert.ErrorIs(t, err, domain.ErrNoInvitations)

	_, err = f.svc.Create(ctx, domain.CreateInvitationsRequest{
		OrgID: f.orgID, InviterRole: orgdomain.RoleOwner,
		Invitations: []domain.InviteRequest{{Email: "nope", Role: "MEMBER"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = f.svc.Create(ctx, domain.CreateInvitationsRequest{
		OrgID: f.orgID, InviterRole: orgdomain.RoleOwner,
		Invitations: []domain.InviteRequest{{Email: "a@example.com", Role: "GOD"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	_, err = f.svc.Create(ctx, domain.CreateInvitationsRequest{
		OrgID: f.orgID, InviterRole: orgdomain.RoleAdmin,
		Invitations: []domain.InviteRequest{{Email: "a@example.com", Role: orgdomain.RoleOwner}},
	})
	assert.ErrorIs(t, err, domain.ErrRoleExceedsInviter)
}

func TestCreateIssuesCodesAndDedupes(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Create(context.Background(), domain.CreateInvitationsRequest{
		OrgID: f.orgID, InviterID: f.ownerID, InviterRole: orgdomain.RoleOwner,
		Invitations: []domain.InviteRequest{
			{Email: "Eve@Example.com", Role: "member"},
			{Email: "eve@example.com", Role: "admin"},
			{Email: "frank@example.com", Role: "viewer"},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp, 2)
	assert.Equal(t, "eve@example.com", resp[0].Email)
	assert.Equal(t, orgdomain.RoleMember, resp[0].Role)
	assert.Len(t, resp[0].Code, 26)
	assert.NotEqual(t, resp[0].Code, resp[1].Code)
	assert.Equal(t, f.clock.Now().Add(48*time.Hour), resp[0].ExpiresAt)
}

func TestListPendingExcludesOtherStatuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.invite(t, "pending@example.com", orgdomain.RoleMember)
	revoked := f.invite(t, "revoked@example.com", orgdomain.RoleMember)
	accepted := f.invite(t, "accepted@example.com", orgdomain.RoleViewer)

	revokedID, err := snowflake.ParseString(revoked.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Revoke(ctx, f.orgID, revokedID))

	acceptor := f.user(t, "accepted@example.com")
	_, err = f.svc.Accept(ctx, domain.AcceptRequest{Code: accepted.Code, UserID: acceptor, Email: "accepted@example.com"})
	require.NoError(t, err)

	items, err := f.svc.ListPending(ctx, f.orgID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, pending.ID, items[0].ID)
	assert.Equal(t, domain.StatusPending, items[0].Status)
	assert.Empty(t, items[0].Code)

	f.clock.Advance(49 * time.Hour)
	items, err = f.svc.ListPending(ctx, f.orgID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReinviteRevokesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.invite(t, "gina@example.com", orgdomain.RoleViewer)
	f.invite(t, "gina@example.com", orgdomain.RoleMember)

	items, err := f.svc.ListPending(ctx, f.orgID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, orgdomain.RoleMember, items[0].Role)

	gina := f.user(t, "gina@example.com")
	_, err = f.svc.Accept(ctx, domain.AcceptRequest{Code: first.Code, UserID: gina, Email: "gina@example.com"})
	assert.ErrorIs(t, err, domain.ErrNotPending)
}

func TestAcceptAddsActiveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.invite(t, "hank@example.com", orgdomain.RoleAdmin)
	hank := f.user(t, "hank@example.com")

	_, err := f.svc.Accept(ctx, domain.AcceptRequest{Code: inv.Code, UserID: hank, Email: "other@example.com"})
	assert.ErrorIs(t, err, domain.ErrEmailMismatch)

	result, err := f.svc.Accept(ctx, domain.AcceptRequest{Code: inv.Code, UserID: hank, Email: "HANK@example.com"})
	require.NoError(t, err)
	assert.Equal(t, f.orgID, result.OrgID)
	assert.Equal(t, orgdomain.RoleAdmin, result.Role)

	member, err := f.orgRepo.GetMember(ctx, f.orgID, hank)
	require.NoError(t, err)
	assert.True(t, member.IsActive())
	assert.Equal(t, orgdomain.RoleAdmin, member.Role)

	_, err = f.svc.Accept(ctx, domain.AcceptRequest{Code: inv.Code, UserID: hank, Email: "hank@example.com"})
	assert.ErrorIs(t, err, domain.ErrNotPending)

	_, err = f.svc.Accept(ctx, domain.AcceptRequest{Code: "missing", UserID: hank, Email: "hank@example.com"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAcceptReactivatesRemovedMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ivy := f.user(t, "ivy@example.com")
	require.NoError(t, f.orgRepo.AddMember(ctx, orgdomain.OrganizationMember{
		ID: f.genID.Generate(), OrgID: f.orgID, UserID: ivy, Role: orgdomain.RoleAdmin,
		Status: orgdomain.MemberStatusRemoved, CreatedAt: f.clock.Now(),
	}))

	inv := f.invite(t, "ivy@example.com", orgdomain.RoleViewer)
	_, err := f.svc.Accept(ctx, domain.AcceptRequest{Code: inv.Code, UserID: ivy, Email: "ivy@example.com"})
	require.NoError(t, err)

	member, err := f.orgRepo.GetMember(ctx, f.orgID, ivy)
	require.NoError(t, err)
	assert.True(t, member.IsActive())
	assert.Equal(t, orgdomain.RoleViewer, member.Role)
}

func TestAcceptRejectsExistingActiveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.invite(t, "owner@example.com", orgdomain.RoleViewer)
	_, err := f.svc.Accept(ctx, domain.AcceptRequest{Code: inv.Code, UserID: f.ownerID, Email: "owner@example.com"})
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)

	items, err := f.svc.ListPending(ctx, f.orgID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestAcceptExpiredMarksExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.invite(t, "jo@example.com", orgdomain.RoleMember)
	jo := f.user(t, "jo@example.com")
	f.clock.Advance(48 * time.Hour)

	_, err := f.svc.Accept(ctx, domain.AcceptRequest{Code: inv.Code, UserID: jo, Email: "jo@example.com"})
	assert.ErrorIs(t, err, domain.ErrExpired)

	var stored domain.Invitation
	require.NoError(t, f.db.First(&stored, "code = ?", inv.Code).Error)
	assert.Equal(t, domain.StatusExpired, stored.Status)

	_, err = f.orgRepo.GetMember(ctx, f.orgID, jo)
	assert.ErrorIs(t, err, orgdomain.ErrMemberNotFound)
}

func TestRevokeOnlyPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.invite(t, "kim@example.com", orgdomain.RoleMember)
	id, err := snowflake.ParseString(inv.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, f.orgID, id))
	assert.ErrorIs(t, f.svc.Revoke(ctx, f.orgID, id), domain.ErrNotPending)
	assert.ErrorIs(t, f.svc.Revoke(ctx, snowflake.ID(1), id), domain.ErrNotFound)
}
