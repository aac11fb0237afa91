package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/promptlab/internal/audit/domain"
	authdomain "github.com/smallbiznis/promptlab/internal/auth/domain"
	"go.uber.org/zap"
)

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type userResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	ActiveOrgID *string `json:"active_org_id,omitempty"`
	OrgRole     *string `json:"org_role,omitempty"`
}

func (s *Server) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.authsvc.CreateUser(c.Request.Context(), authdomain.CreateUserRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.Name,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, userResponse{
		ID:    user.ID.String(),
		Email: user.Email,
		Name:  user.DisplayName,
	})
}

func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	email := strings.TrimSpace(req.Email)
	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:     email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		if s.auditSvc != nil {
			_ = s.auditSvc.AuditLog(c.Request.Context(), nil, string(auditdomain.ActorTypeUser), nil, "user.login_failed", "user", nil, map[string]any{
				"email": email,
			})
		}
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c.Writer, result.RawToken, result.ExpiresAt)

	resp := userResponse{
		ID:    result.User.ID.String(),
		Email: result.User.Email,
		Name:  result.User.DisplayName,
	}
	s.restoreOrgCookies(c, result.User, &resp)

	if s.auditSvc != nil {
		userID := result.User.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, string(auditdomain.ActorTypeUser), &userID, "user.login", "user", &userID, map[string]any{
			"email": email,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// restoreOrgCookies re-emits the claim cookies from the persisted active org
// pointer while that membership is still active.
func (s *Server) restoreOrgCookies(c *gin.Context, user *authdomain.User, resp *userResponse) {
	if user.ActiveOrgID == nil || *user.ActiveOrgID == 0 {
		s.orgCookies.Clear(c.Writer)
		return
	}

	member, err := s.organizationSvc.GetMember(c.Request.Context(), *user.ActiveOrgID, user.ID)
	if err != nil || !member.IsActive() {
		if err != nil {
			s.log.Debug("skip org cookies on login", zap.String("user_id", user.ID.String()), zap.Error(err))
		}
		s.orgCookies.Clear(c.Writer)
		return
	}

	s.orgCookies.Set(c.Writer, member.OrgID, member.Role)
	orgID := member.OrgID.String()
	role := member.Role
	resp.ActiveOrgID = &orgID
	resp.OrgRole = &role
}

func (s *Server) Logout(c *gin.Context) {
	token, ok := s.sessions.ReadToken(c.Request)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.authsvc.Logout(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Clear(c.Writer)
	s.orgCookies.Clear(c.Writer)
	c.Status(http.StatusNoContent)
}

func (s *Server) Me(c *gin.Context) {
	identity, ok := identityFromGin(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	user, err := s.authsvc.GetUser(c.Request.Context(), identity.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := userResponse{
		ID:    user.ID.String(),
		Email: user.Email,
		Name:  user.DisplayName,
	}
	if user.ActiveOrgID != nil && *user.ActiveOrgID != 0 {
		orgID := user.ActiveOrgID.String()
		resp.ActiveOrgID = &orgID
		if member, err := s.organizationSvc.GetMember(c.Request.Context(), *user.ActiveOrgID, user.ID); err == nil && member.IsActive() {
			role := member.Role
			resp.OrgRole = &role
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ChangePassword(c *gin.Context) {
	identity, ok := identityFromGin(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.CurrentPassword) == "" {
		AbortWithError(c, newValidationError("current_password", "required", "current password is required"))
		return
	}

	if err := s.authsvc.ChangePassword(c.Request.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		userID := identity.UserID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, string(auditdomain.ActorTypeUser), &userID, "user.password_changed", "user", &userID, nil)
	}

	c.Status(http.StatusNoContent)
}
