package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/promptlab/internal/audit/domain"
	obslogger "github.com/smallbiznis/promptlab/internal/observability/logger"
	"github.com/smallbiznis/promptlab/internal/orgcontext"
	organizationdomain "github.com/smallbiznis/promptlab/internal/organization/domain"
	"go.uber.org/zap"
)

type switchOrgResponse struct {
	OK          bool   `json:"ok"`
	ActiveOrgID string `json:"active_org_id"`
	OrgRole     string `json:"org_role"`
}

func (s *Server) ListUserOrgs(c *gin.Context) {
	identity, ok := identityFromGin(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgs, err := s.organizationSvc.ListOrganizationsByUser(c.Request.Context(), identity.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orgs": orgs})
}

// SwitchOrg makes :id the caller's active organization and re-issues the
// claim cookies.
func (s *Server) SwitchOrg(c *gin.Context) {
	identity, ok := identityFromGin(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	ctx := c.Request.Context()
	orgID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || orgID <= 0 {
		s.obsMetrics.RecordOrgSwitch(ctx, "forbidden")
		AbortWithError(c, orgcontext.ErrForbidden)
		return
	}

	role, err := s.organizationSvc.SwitchActiveOrg(ctx, identity.UserID, orgID)
	if err != nil {
		result := "internal_error"
		if errors.Is(err, organizationdomain.ErrForbidden) {
			result = "forbidden"
		}
		s.obsMetrics.RecordOrgSwitch(ctx, result)
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordOrgSwitch(ctx, "ok")

	s.orgCookies.Set(c.Writer, orgID, role)

	obslogger.WithOrgContext(obslogger.WithContext(ctx, s.log), orgID.String(), identity.UserID.String(), role).
		Info("active organization switched")

	if s.auditSvc != nil {
		actorID := identity.UserID.String()
		targetID := orgID.String()
		if err := s.auditSvc.AuditLog(ctx, &orgID, string(auditdomain.ActorTypeUser), &actorID, "organization.switched", "organization", &targetID, map[string]any{
			"role": role,
		}); err != nil {
			s.log.Warn("audit org switch", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, switchOrgResponse{
		OK:          true,
		ActiveOrgID: orgID.String(),
		OrgRole:     role,
	})
}
