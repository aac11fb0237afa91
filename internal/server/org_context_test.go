package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/promptlab/internal/audit/domain"
	authdomain "github.com/smallbiznis/promptlab/internal/auth/domain"
	"github.com/smallbiznis/promptlab/internal/orgcontext"
	orgdomain "github.com/smallbiznis/promptlab/internal/organization/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrgRoutesRequireSession(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/orgs/42/members", nil, orgClaim(42))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthenticated", errorType(t, w))

	w = h.do(t, http.MethodPost, "/orgs/42/switch", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	bogus := &http.Cookie{Name: "_sid", Value: "not-a-session"}
	w = h.do(t, http.MethodGet, "/auth/me", nil, bogus)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrgRoutesRequireClaim(t *testing.T) {
	h := newHarness(t)
	_, sid := h.signup(t, "ada@example.com")
	orgID := h.createOrg(t, sid, "Acme")

	w := h.do(t, http.MethodGet, "/orgs/"+orgID.String()+"/members", nil, sid)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "org_required", errorType(t, w))
}

func TestOrgContextResolutionDoesNotWrite(t *testing.T) {
	h := newHarness(t)
	userID, sid := h.signup(t, "ada@example.com")
	orgID := h.createOrg(t, sid, "Acme")

	var before authdomain.Session
	require.NoError(t, h.db.Where("user_id = ?", userID).First(&before).Error)
	var memberBefore orgdomain.OrganizationMember
	require.NoError(t, h.db.Where("org_id = ? AND user_id = ?", orgID, userID).First(&memberBefore).Error)

	h.clock.Advance(time.Hour)
	path := "/orgs/" + orgID.String() + "/members"
	first := h.do(t, http.MethodGet, path, nil, sid, orgClaim(orgID))
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	second := h.do(t, http.MethodGet, path, nil, sid, orgClaim(orgID))
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	var after authdomain.Session
	require.NoError(t, h.db.First(&after, "id = ?", before.ID).Error)
	assert.True(t, before.LastSeenAt.Equal(after.LastSeenAt))
	var memberAfter orgdomain.OrganizationMember
	require.NoError(t, h.db.First(&memberAfter, "id = ?", memberBefore.ID).Error)
	assert.True(t, memberBefore.UpdatedAt.Equal(memberAfter.UpdatedAt))

	// session-only routes still record activity
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/auth/me", nil, sid).Code)
	require.NoError(t, h.db.First(&after, "id = ?", before.ID).Error)
	assert.True(t, h.clock.Now().Equal(after.LastSeenAt.UTC()))
}

func TestUserWithoutMembershipNeverGetsContext(t *testing.T) {
	h := newHarness(t)
	_, ownerSID := h.signup(t, "owner@example.com")
	orgID := h.createOrg(t, ownerSID, "Acme")

	_, sid := h.signup(t, "stranger@example.com")
	path := "/orgs/" + orgID.String() + "/members"

	w := h.do(t, http.MethodGet, path, nil, sid)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodGet, path, nil, sid, orgClaim(orgID))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", errorType(t, w))

	w = h.do(t, http.MethodGet, path, nil, sid, &http.Cookie{Name: orgcontext.CookieActiveOrgID, Value: "garbage"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSwitchSetsClaimCookiesAndPersistsPointer(t *testing.T) {
	h := newHarness(t)
	_, sid := h.signup(t, "ada@example.com")
	orgID := h.createOrg(t, sid, "Acme")

	w := h.do(t, http.MethodPost, "/orgs/"+orgID.String()+"/switch", nil, sid)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp switchOrgResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, orgID.String(), resp.ActiveOrgID)
	assert.Equal(t, orgdomain.RoleOwner, resp.OrgRole)

	active := responseCookie(w, orgcontext.CookieActiveOrgID)
	require.NotNil(t, active)
	assert.Equal(t, orgID.String(), active.Value)
	assert.Equal(t, "/", active.Path)
	assert.False(t, active.HttpOnly)

	role := responseCookie(w, orgcontext.CookieOrgRole)
	require.NotNil(t, role)
	assert.Equal(t, orgdomain.RoleOwner, role.Value)
	assert.Equal(t, "/", role.Path)
	assert.False(t, role.HttpOnly)

	w = h.do(t, http.MethodGet, "/orgs/"+orgID.String()+"/members", nil, sid, active)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(t, http.MethodGet, "/auth/me", nil, sid)
	require.Equal(t, http.StatusOK, w.Code)
	var me userResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	require.NotNil(t, me.ActiveOrgID)
	assert.Equal(t, orgID.String(), *me.ActiveOrgID)
	require.NotNil(t, me.OrgRole)
	assert.Equal(t, orgdomain.RoleOwner, *me.OrgRole)

	var count int64
	require.NoError(t, h.db.Model(&auditdomain.AuditLog{}).Where("action = ?", "organization.switched").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSwitchForbiddenKeepsPointer(t *testing.T) {
	h := newHarness(t)
	_, ownerSID := h.signup(t, "owner@example.com")
	otherOrg := h.createOrg(t, ownerSID, "Other")

	userID, sid := h.signup(t, "ada@example.com")
	ownOrg := h.createOrg(t, sid, "Acme")
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/orgs/"+ownOrg.String()+"/switch", nil, sid).Code)

	w := h.do(t, http.MethodPost, "/orgs/"+otherOrg.String()+"/switch", nil, sid)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, responseCookie(w, orgcontext.CookieActiveOrgID))

	h.addMember(t, otherOrg, userID, orgdomain.RoleMember, orgdomain.MemberStatusRemoved)
	w = h.do(t, http.MethodPost, "/orgs/"+otherOrg.String()+"/switch", nil, sid)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var user authdomain.User
	require.NoError(t, h.db.First(&user, "id = ?", userID).Error)
	require.NotNil(t, user.ActiveOrgID)
	assert.Equal(t, ownOrg, *user.ActiveOrgID)
}

func TestMembersRequireActiveOrgToMatchPath(t *testing.T) {
	h := newHarness(t)
	_, ownerSID := h.signup(t, "owner@example.com")
	orgA := h.createOrg(t, ownerSID, "A")

	userID, sid := h.signup(t, "u@example.com")
	orgB := h.createOrg(t, sid, "B")
	h.addMember(t, orgA, userID, orgdomain.RoleAdmin, orgdomain.MemberStatusActive)

	w := h.do(t, http.MethodGet, "/orgs/"+orgA.String()+"/members", nil, sid, orgClaim(orgB))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodGet, "/orgs/"+orgA.String()+"/members", nil, sid, orgClaim(orgA))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMembersListsActiveOnly(t *testing.T) {
	h := newHarness(t)
	ownerID, sid := h.signup(t, "owner@example.com")
	orgID := h.createOrg(t, sid, "Acme")

	viewerID, _ := h.signup(t, "viewer@example.com")
	goneID, _ := h.signup(t, "gone@example.com")
	h.addMember(t, orgID, viewerID, orgdomain.RoleViewer, orgdomain.MemberStatusActive)
	h.addMember(t, orgID, goneID, orgdomain.RoleMember, orgdomain.MemberStatusRemoved)

	w := h.do(t, http.MethodGet, "/orgs/"+orgID.String()+"/members", nil, sid, orgClaim(orgID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Members []orgdomain.MemberResponse `json:"members"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	ids := make([]string, 0, len(resp.Members))
	for _, m := range resp.Members {
		assert.Equal(t, orgdomain.MemberStatusActive, m.Status)
		ids = append(ids, m.UserID)
	}
	assert.ElementsMatch(t, []string{ownerID.String(), viewerID.String()}, ids)
}

func TestMemberManagementRespectsCapabilities(t *testing.T) {
	h := newHarness(t)
	_, ownerSID := h.signup(t, "owner@example.com")
	orgID := h.createOrg(t, ownerSID, "Acme")

	viewerID, viewerSID := h.signup(t, "viewer@example.com")
	memberID, _ := h.signup(t, "member@example.com")
	h.addMember(t, orgID, viewerID, orgdomain.RoleViewer, orgdomain.MemberStatusActive)
	h.addMember(t, orgID, memberID, orgdomain.RoleMember, orgdomain.MemberStatusActive)

	path := "/orgs/" + orgID.String() + "/members/" + memberID.String()

	w := h.do(t, http.MethodPatch, path, updateMemberRoleRequest{Role: orgdomain.RoleAdmin}, viewerSID, orgClaim(orgID))
	assert.Equal(t, http.StatusForbidden, w.Code)

	var denied int64
	require.NoError(t, h.db.Model(&auditdomain.AuditLog{}).Where("action = ?", "authorization.denied").Count(&denied).Error)
	assert.Equal(t, int64(1), denied)

	w = h.do(t, http.MethodPatch, path, updateMemberRoleRequest{Role: orgdomain.RoleAdmin}, ownerSID, orgClaim(orgID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated orgdomain.MemberResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, orgdomain.RoleAdmin, updated.Role)

	w = h.do(t, http.MethodDelete, path, nil, ownerSID, orgClaim(orgID))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = h.do(t, http.MethodDelete, "/orgs/"+orgID.String()+"/members/"+snowflake.ID(12345).String(), nil, ownerSID, orgClaim(orgID))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoginRestoresClaimCookies(t *testing.T) {
	h := newHarness(t)
	_, sid := h.signup(t, "ada@example.com")
	orgID := h.createOrg(t, sid, "Acme")
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/orgs/"+orgID.String()+"/switch", nil, sid).Code)

	w := h.do(t, http.MethodPost, "/auth/logout", nil, sid)
	require.Equal(t, http.StatusNoContent, w.Code)
	cleared := responseCookie(w, orgcontext.CookieActiveOrgID)
	require.NotNil(t, cleared)
	assert.Equal(t, "", cleared.Value)

	w = h.do(t, http.MethodGet, "/auth/me", nil, sid)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodPost, "/auth/login", LoginRequest{Email: "ada@example.com", Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code)
	active := responseCookie(w, orgcontext.CookieActiveOrgID)
	require.NotNil(t, active)
	assert.Equal(t, orgID.String(), active.Value)
	role := responseCookie(w, orgcontext.CookieOrgRole)
	require.NotNil(t, role)
	assert.Equal(t, orgdomain.RoleOwner, role.Value)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "ada@example.com")

	w := h.do(t, http.MethodPost, "/auth/login", LoginRequest{Email: "ada@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, responseCookie(w, "_sid"))

	w = h.do(t, http.MethodPost, "/auth/signup", SignupRequest{Email: "ada@example.com", Password: testPassword})
	assert.Equal(t, http.StatusConflict, w.Code)
}
