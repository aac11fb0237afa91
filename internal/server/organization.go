package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/promptlab/internal/audit/domain"
	"github.com/smallbiznis/promptlab/internal/orgcontext"
	organizationdomain "github.com/smallbiznis/promptlab/internal/organization/domain"
)

type createOrganizationRequest struct {
	Name string `json:"name"`
}

type updateMemberRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) CreateOrganization(c *gin.Context) {
	identity, ok := identityFromGin(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.organizationSvc.Create(c.Request.Context(), identity.UserID, organizationdomain.CreateOrganizationRequest{
		Name: strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) GetOrganization(c *gin.Context) {
	oc, ok := orgContextFromGin(c)
	if !ok {
		AbortWithError(c, orgcontext.ErrOrgRequired)
		return
	}

	resp, err := s.organizationSvc.GetByID(c.Request.Context(), oc.ActiveOrgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListMembers(c *gin.Context) {
	oc, ok := orgContextFromGin(c)
	if !ok {
		AbortWithError(c, orgcontext.ErrOrgRequired)
		return
	}

	members, err := s.organizationSvc.ListMembers(c.Request.Context(), oc.ActiveOrgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) UpdateMemberRole(c *gin.Context) {
	oc, ok := orgContextFromGin(c)
	if !ok {
		AbortWithError(c, orgcontext.ErrOrgRequired)
		return
	}

	userID, err := pathID(c, "userId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	member, err := s.organizationSvc.UpdateMemberRole(c.Request.Context(), organizationdomain.UpdateMemberRoleRequest{
		OrgID:     oc.ActiveOrgID,
		ActorID:   oc.UserID,
		ActorRole: oc.Role,
		UserID:    userID,
		Role:      req.Role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		orgID := oc.ActiveOrgID
		actorID := oc.UserID.String()
		targetID := userID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), &orgID, string(auditdomain.ActorTypeUser), &actorID, "member.role_changed", "user", &targetID, map[string]any{
			"role": member.Role,
		})
	}

	c.JSON(http.StatusOK, member)
}

func (s *Server) RemoveMember(c *gin.Context) {
	oc, ok := orgContextFromGin(c)
	if !ok {
		AbortWithError(c, orgcontext.ErrOrgRequired)
		return
	}

	userID, err := pathID(c, "userId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.organizationSvc.RemoveMember(c.Request.Context(), organizationdomain.RemoveMemberRequest{
		OrgID:     oc.ActiveOrgID,
		ActorID:   oc.UserID,
		ActorRole: oc.Role,
		UserID:    userID,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		orgID := oc.ActiveOrgID
		actorID := oc.UserID.String()
		targetID := userID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), &orgID, string(auditdomain.ActorTypeUser), &actorID, "member.removed", "user", &targetID, nil)
	}

	c.Status(http.StatusNoContent)
}
