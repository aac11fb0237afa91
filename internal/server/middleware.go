package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/promptlab/internal/audit/domain"
	authdomain "github.com/smallbiznis/promptlab/internal/auth/domain"
	obscontext "github.com/smallbiznis/promptlab/internal/observability/context"
	"github.com/smallbiznis/promptlab/internal/orgcontext"
	"go.uber.org/zap"
)

const (
	contextIdentityKey = "identity"
	contextOrgKey      = "org_context"
)

// WebAuthRequired resolves the session and stores the caller identity. It is
// the only place last_seen_at is refreshed; org-scoped routes stay read-only.
func (s *Server) WebAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := s.orgResolver.Identify(c.Request)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		if err := s.authsvc.TouchSession(c.Request.Context(), identity.SessionID); err != nil {
			s.log.Warn("session touch failed", zap.String("session_id", identity.SessionID.String()), zap.Error(err))
		}

		c.Set(contextIdentityKey, identity)
		ctx := obscontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeUser), identity.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OrgContextRequired re-validates the org claim against the membership store
// on every request.
func (s *Server) OrgContextRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		oc, err := s.orgResolver.Require(c.Request)
		if err != nil {
			s.obsMetrics.RecordOrgContextFailure(c.Request.Context(), orgContextFailureReason(err))
			AbortWithError(c, err)
			return
		}

		c.Set(contextOrgKey, oc)
		ctx := orgcontext.WithContext(c.Request.Context(), oc)
		ctx = obscontext.WithOrgID(ctx, oc.ActiveOrgID.String())
		ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeUser), oc.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireActiveOrgParam rejects requests whose :id is not the verified active
// org, whatever role the caller holds in :id.
func (s *Server) RequireActiveOrgParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		oc, ok := orgContextFromGin(c)
		if !ok {
			AbortWithError(c, orgcontext.ErrOrgRequired)
			return
		}

		orgID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
		if err != nil || orgID != oc.ActiveOrgID {
			AbortWithError(c, orgcontext.ErrForbidden)
			return
		}
		c.Next()
	}
}

// RequireCapability gates the route on the capability table. Denials are
// audited.
func (s *Server) RequireCapability(action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		oc, ok := orgContextFromGin(c)
		if !ok {
			AbortWithError(c, orgcontext.ErrOrgRequired)
			return
		}

		if !s.allowed(c, oc, action, resource) {
			return
		}
		c.Next()
	}
}

// allowed is the in-handler form of RequireCapability. It aborts on deny.
func (s *Server) allowed(c *gin.Context, oc orgcontext.Context, action, resource string) bool {
	ok := s.checker.Can(oc, action, resource)
	s.obsMetrics.RecordAuthzDecision(c.Request.Context(), resource, action, ok)
	if !ok {
		s.auditDenied(c, oc, action, resource)
		AbortWithError(c, orgcontext.ErrForbidden)
	}
	return ok
}

// OrgSwitchRateLimit throttles switches per user when a limiter is
// configured. Limiter failures let the request through.
func (s *Server) OrgSwitchRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.switchLimiter.Enabled() {
			c.Next()
			return
		}

		identity, ok := identityFromGin(c)
		if !ok {
			AbortWithError(c, orgcontext.ErrUnauthenticated)
			return
		}

		res, err := s.switchLimiter.Allow(c.Request.Context(), identity.UserID)
		if err != nil {
			s.log.Warn("org switch rate limit unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), "org_switch", "user")
			c.Header("Retry-After", retryAfterSeconds(res.RetryAfter.Seconds()))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func (s *Server) auditDenied(c *gin.Context, oc orgcontext.Context, action, resource string) {
	if s.auditSvc == nil {
		return
	}
	orgID := oc.ActiveOrgID
	actorID := oc.UserID.String()
	_ = s.auditSvc.AuditLog(c.Request.Context(), &orgID, string(auditdomain.ActorTypeUser), &actorID, "authorization.denied", resource, nil, map[string]any{
		"action": action,
		"role":   oc.Role,
		"route":  c.FullPath(),
	})
}

func identityFromGin(c *gin.Context) (*authdomain.Identity, bool) {
	value, ok := c.Get(contextIdentityKey)
	if !ok {
		return nil, false
	}
	identity, ok := value.(*authdomain.Identity)
	return identity, ok && identity != nil
}

func orgContextFromGin(c *gin.Context) (orgcontext.Context, bool) {
	value, ok := c.Get(contextOrgKey)
	if !ok {
		return orgcontext.Context{}, false
	}
	oc, ok := value.(orgcontext.Context)
	return oc, ok
}

func orgContextFailureReason(err error) string {
	switch {
	case errors.Is(err, orgcontext.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, orgcontext.ErrOrgRequired):
		return "org_required"
	case errors.Is(err, orgcontext.ErrForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
