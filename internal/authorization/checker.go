package authorization

import (
	_ "embed"
	"strings"
	"sync/atomic"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	orgdomain "github.com/smallbiznis/promptlab/internal/organization/domain"
	"github.com/smallbiznis/promptlab/internal/orgcontext"
)

//go:embed model.conf
var modelText string

type snapshot struct {
	enforcer *casbin.SyncedEnforcer
	grants   []Grant
}

// Checker answers capability questions against an in-memory table. The table
// is swapped atomically on reload; each call sees one consistent snapshot.
type Checker struct {
	current atomic.Pointer[snapshot]
}

// NewChecker builds a Checker over grants.
func NewChecker(grants []Grant) (*Checker, error) {
	c := &Checker{}
	if err := c.Apply(grants); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply validates grants and replaces the active table. The previous table
// stays in place when grants are invalid.
func (c *Checker) Apply(grants []Grant) error {
	if err := ValidateGrants(grants); err != nil {
		return err
	}
	enforcer, err := buildEnforcer(grants)
	if err != nil {
		return err
	}
	copied := make([]Grant, len(grants))
	for i, g := range grants {
		copied[i] = normalizeGrant(g)
	}
	c.current.Store(&snapshot{enforcer: enforcer, grants: copied})
	return nil
}

// Can reports whether the member described by oc may perform action on
// resource. Unknown roles, resources and actions are denied.
func (c *Checker) Can(oc orgcontext.Context, action, resource string) bool {
	if oc.ActiveOrgID == 0 || oc.UserID == 0 {
		return false
	}
	role, ok := orgdomain.NormalizeRole(oc.Role)
	if !ok {
		return false
	}
	snap := c.current.Load()
	if snap == nil {
		return false
	}

	allowed, err := snap.enforcer.Enforce(
		subject(role),
		strings.ToLower(strings.TrimSpace(resource)),
		strings.ToLower(strings.TrimSpace(action)),
	)
	return err == nil && allowed
}

// Grants returns a copy of the active table.
func (c *Checker) Grants() []Grant {
	snap := c.current.Load()
	if snap == nil {
		return nil
	}
	out := make([]Grant, len(snap.grants))
	copy(out, snap.grants)
	return out
}

func subject(role string) string {
	return "role:" + strings.ToLower(role)
}

func buildEnforcer(grants []Grant) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}

	// Each role inherits everything granted to the role below it.
	roles := orgdomain.Roles()
	hierarchy := make([][]string, 0, len(roles)-1)
	for i := len(roles) - 1; i > 0; i-- {
		hierarchy = append(hierarchy, []string{subject(roles[i]), subject(roles[i-1])})
	}
	if _, err := enforcer.AddGroupingPolicies(hierarchy); err != nil {
		return nil, err
	}

	policies := make([][]string, 0, len(grants))
	for _, g := range grants {
		g = normalizeGrant(g)
		policies = append(policies, []string{subject(g.MinRole), g.Resource, g.Action})
	}
	if _, err := enforcer.AddPolicies(policies); err != nil {
		return nil, err
	}
	return enforcer, nil
}
