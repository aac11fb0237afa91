package authorization

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/smallbiznis/promptlab/internal/config"
	orgdomain "github.com/smallbiznis/promptlab/internal/organization/domain"
	"github.com/smallbiznis/promptlab/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func ctxWithRole(role string) orgcontext.Context {
	return orgcontext.Context{UserID: 1, ActiveOrgID: 2, Role: role}
}

func defaultChecker(t *testing.T) *Checker {
	t.Helper()
	c, err := NewChecker(DefaultGrants())
	require.NoError(t, err)
	return c
}

func TestCanDefaultTable(t *testing.T) {
	c := defaultChecker(t)

	cases := []struct {
		role     string
		action   string
		resource string
		want     bool
	}{
		{orgdomain.RoleAdmin, ActionManage, ResourceMembers, true},
		{orgdomain.RoleViewer, ActionManage, ResourceMembers, false},
		{orgdomain.RoleAdmin, ActionRead, "billing", false},
		{orgdomain.RoleOwner, ActionRead, "billing", false},
		{orgdomain.RoleViewer, ActionRead, ResourceMembers, true},
		{orgdomain.RoleMember, ActionWrite, ResourceScenarios, true},
		{orgdomain.RoleViewer, ActionWrite, ResourceScenarios, false},
		{orgdomain.RoleMember, ActionWrite, ResourcePrompts, true},
		{orgdomain.RoleViewer, ActionWrite, ResourcePrompts, false},
		{orgdomain.RoleOwner, ActionManage, "invitations", false},
		{orgdomain.RoleMember, ActionRead, ResourceAuditLogs, false},
		{orgdomain.RoleAdmin, ActionRead, ResourceAuditLogs, true},
		{orgdomain.RoleAdmin, ActionManage, ResourceOrganization, false},
		{orgdomain.RoleOwner, ActionManage, ResourceOrganization, true},
		{orgdomain.RoleOwner, "delete", ResourceMembers, false},
		{"GUEST", ActionRead, ResourceMembers, false},
		{"", ActionRead, ResourceMembers, false},
	}

	for _, tc := range cases {
		got := c.Can(ctxWithRole(tc.role), tc.action, tc.resource)
		assert.Equal(t, tc.want, got, "%s %s %s", tc.role, tc.action, tc.resource)
	}
}

func TestCanIsMonotonicInRole(t *testing.T) {
	c := defaultChecker(t)
	roles := orgdomain.Roles()

	for _, g := range DefaultGrants() {
		for i, role := range roles {
			if !c.Can(ctxWithRole(role), g.Action, g.Resource) {
				continue
			}
			for _, higher := range roles[i:] {
				assert.True(t, c.Can(ctxWithRole(higher), g.Action, g.Resource),
					"%s allowed %s/%s but %s is not", role, g.Resource, g.Action, higher)
			}
		}
	}
}

func TestCanRequiresOrgContext(t *testing.T) {
	c := defaultChecker(t)
	assert.False(t, c.Can(orgcontext.Context{UserID: 1, Role: orgdomain.RoleOwner}, ActionRead, ResourceMembers))
	assert.True(t, c.Can(ctxWithRole("admin"), ActionManage, ResourceMembers))
}

func TestMergeGrants(t *testing.T) {
	merged := MergeGrants(DefaultGrants(), []Grant{
		{Resource: "billing", Action: "read", MinRole: "owner"},
		{Resource: ResourceScenarios, Action: ActionWrite, MinRole: orgdomain.RoleAdmin},
		{Resource: ResourceAuditLogs, Action: ActionRead, MinRole: RoleNone},
	})
	require.NoError(t, ValidateGrants(merged))

	c, err := NewChecker(merged)
	require.NoError(t, err)
	assert.True(t, c.Can(ctxWithRole(orgdomain.RoleOwner), ActionRead, "billing"))
	assert.False(t, c.Can(ctxWithRole(orgdomain.RoleMember), ActionWrite, ResourceScenarios))
	assert.False(t, c.Can(ctxWithRole(orgdomain.RoleOwner), ActionRead, ResourceAuditLogs))
}

func TestApplyKeepsPreviousTableOnError(t *testing.T) {
	c := defaultChecker(t)
	err := c.Apply([]Grant{{Resource: ResourceMembers, Action: ActionRead, MinRole: "SUPERUSER"}})
	require.Error(t, err)
	assert.True(t, c.Can(ctxWithRole(orgdomain.RoleViewer), ActionRead, ResourceMembers))
	assert.Len(t, c.Grants(), len(DefaultGrants()))
}

func TestLoadCheckerFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rbac.yml")
	require.NoError(t, os.WriteFile(path, []byte(`grants:
  - resource: billing
    action: read
    min_role: ADMIN
`), 0o600))

	c, err := LoadChecker(config.Config{RBACPolicyFile: path}, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, c.Can(ctxWithRole(orgdomain.RoleAdmin), ActionRead, "billing"))
	assert.False(t, c.Can(ctxWithRole(orgdomain.RoleMember), ActionRead, "billing"))
}

func TestLoadCheckerWithoutFileUsesDefaults(t *testing.T) {
	c, err := LoadChecker(config.Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, c.Can(ctxWithRole(orgdomain.RoleAdmin), ActionRead, "billing"))
}

func TestLoadCheckerRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rbac.yml")
	require.NoError(t, os.WriteFile(path, []byte(`grants:
  - resource: members
    action: read
    min_role: ROOT
`), 0o600))

	_, err := LoadChecker(config.Config{RBACPolicyFile: path}, zap.NewNop())
	assert.Error(t, err)
}
