package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/promptlab/internal/audit/domain"
	invitationdomain "github.com/smallbiznis/promptlab/internal/invitation/domain"
	"github.com/smallbiznis/promptlab/internal/orgcontext"
)

type createInvitationsRequest struct {
	Invites []invitationdomain.InviteRequest `json:"invites"`
}

type acceptInvitationResponse struct {
	OrgID   string `json:"org_id"`
	OrgRole string `json:"org_role"`
}

func (s *Server) ListInvitations(c *gin.Context) {
	oc, ok := orgContextFromGin(c)
	if !ok {
		AbortWithError(c, orgcontext.ErrOrgRequired)
		return
	}

	items, err := s.invitationSvc.ListPending(c.Request.Context(), oc.ActiveOrgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": items})
}

func (s *Server) CreateInvitations(c *gin.Context) {
	oc, ok := orgContextFromGin(c)
	if !ok {
		AbortWithError(c, orgcontext.ErrOrgRequired)
		return
	}

	var req createInvitationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	created, err := s.invitationSvc.Create(c.Request.Context(), invitationdomain.CreateInvitationsRequest{
		OrgID:       oc.ActiveOrgID,
		InviterID:   oc.UserID,
		InviterRole: oc.Role,
		Invitations: req.Invites,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		orgID := oc.ActiveOrgID
		actorID := oc.UserID.String()
		for _, inv := range created {
			targetID := inv.ID
			_ = s.auditSvc.AuditLog(c.Request.Context(), &orgID, string(auditdomain.ActorTypeUser), &actorID, "invitation.created", "invitation", &targetID, map[string]any{
				"email": inv.Email,
				"role":  inv.Role,
			})
		}
	}

	c.JSON(http.StatusCreated, gin.H{"invitations": created})
}

func (s *Server) RevokeInvitation(c *gin.Context) {
	oc, ok := orgContextFromGin(c)
	if !ok {
		AbortWithError(c, orgcontext.ErrOrgRequired)
		return
	}

	invitationID, err := pathID(c, "inviteId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.invitationSvc.Revoke(c.Request.Context(), oc.ActiveOrgID, invitationID); err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		orgID := oc.ActiveOrgID
		actorID := oc.UserID.String()
		targetID := invitationID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), &orgID, string(auditdomain.ActorTypeUser), &actorID, "invitation.revoked", "invitation", &targetID, nil)
	}

	c.Status(http.StatusNoContent)
}

// AcceptInvitation only needs a session: the caller is not a member yet.
func (s *Server) AcceptInvitation(c *gin.Context) {
	identity, ok := identityFromGin(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		AbortWithError(c, invitationdomain.ErrNotFound)
		return
	}

	result, err := s.invitationSvc.Accept(c.Request.Context(), invitationdomain.AcceptRequest{
		Code:   code,
		UserID: identity.UserID,
		Email:  identity.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		orgID := result.OrgID
		actorID := identity.UserID.String()
		targetID := result.InvitationID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), &orgID, string(auditdomain.ActorTypeUser), &actorID, "invitation.accepted", "invitation", &targetID, map[string]any{
			"role": result.Role,
			"code": code,
		})
	}

	c.JSON(http.StatusOK, acceptInvitationResponse{
		OrgID:   result.OrgID.String(),
		OrgRole: result.Role,
	})
}
