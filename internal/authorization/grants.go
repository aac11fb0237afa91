package authorization

import (
	"errors"
	"fmt"
	"strings"

	orgdomain "github.com/smallbiznis/promptlab/internal/organization/domain"
)

const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionManage = "manage"
)

const (
	ResourceOrganization = "organization"
	ResourceMembers      = "members"
	ResourceScenarios    = "scenarios"
	ResourcePrompts      = "prompts"
	ResourceAuditLogs    = "audit_logs"
)

// RoleNone in an override removes the grant.
const RoleNone = "NONE"

// Grant gives MinRole and every higher role Action on Resource.
type Grant struct {
	Resource string `mapstructure:"resource"`
	Action   string `mapstructure:"action"`
	MinRole  string `mapstructure:"min_role"`
}

func (g Grant) key() string { return g.Resource + "/" + g.Action }

// DefaultGrants is the built-in capability table. Pairs not listed are denied.
func DefaultGrants() []Grant {
	return []Grant{
		{ResourceOrganization, ActionRead, orgdomain.RoleViewer},
		{ResourceOrganization, ActionWrite, orgdomain.RoleAdmin},
		{ResourceOrganization, ActionManage, orgdomain.RoleOwner},

		{ResourceMembers, ActionRead, orgdomain.RoleViewer},
		{ResourceMembers, ActionWrite, orgdomain.RoleAdmin},
		{ResourceMembers, ActionManage, orgdomain.RoleAdmin},

		{ResourceScenarios, ActionRead, orgdomain.RoleViewer},
		{ResourceScenarios, ActionWrite, orgdomain.RoleMember},
		{ResourceScenarios, ActionManage, orgdomain.RoleAdmin},

		{ResourcePrompts, ActionRead, orgdomain.RoleViewer},
		{ResourcePrompts, ActionWrite, orgdomain.RoleMember},
		{ResourcePrompts, ActionManage, orgdomain.RoleAdmin},

		{ResourceAuditLogs, ActionRead, orgdomain.RoleAdmin},
	}
}

// MergeGrants applies overrides on top of base. An override with MinRole
// NONE drops the pair.
func MergeGrants(base, overrides []Grant) []Grant {
	index := make(map[string]int, len(base))
	merged := make([]Grant, 0, len(base)+len(overrides))
	for _, g := range base {
		g = normalizeGrant(g)
		index[g.key()] = len(merged)
		merged = append(merged, g)
	}
	for _, g := range overrides {
		g = normalizeGrant(g)
		if i, ok := index[g.key()]; ok {
			merged[i] = g
			continue
		}
		index[g.key()] = len(merged)
		merged = append(merged, g)
	}

	out := merged[:0]
	for _, g := range merged {
		if g.MinRole == RoleNone {
			continue
		}
		out = append(out, g)
	}
	return out
}

func ValidateGrants(grants []Grant) error {
	if len(grants) == 0 {
		return errors.New("capability table cannot be empty")
	}
	seen := make(map[string]struct{}, len(grants))
	for _, g := range grants {
		g = normalizeGrant(g)
		if g.Resource == "" || g.Action == "" {
			return fmt.Errorf("grant %q: resource and action are required", g.key())
		}
		if _, ok := orgdomain.NormalizeRole(g.MinRole); !ok {
			return fmt.Errorf("grant %q: unknown role %q", g.key(), g.MinRole)
		}
		if _, dup := seen[g.key()]; dup {
			return fmt.Errorf("grant %q: duplicated", g.key())
		}
		seen[g.key()] = struct{}{}
	}
	return nil
}

func normalizeGrant(g Grant) Grant {
	return Grant{
		Resource: strings.ToLower(strings.TrimSpace(g.Resource)),
		Action:   strings.ToLower(strings.TrimSpace(g.Action)),
		MinRole:  strings.ToUpper(strings.TrimSpace(g.MinRole)),
	}
}
