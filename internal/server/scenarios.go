package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/promptlab/internal/authorization"
	"github.com/smallbiznis/promptlab/internal/orgcontext"
	scenariodomain "github.com/smallbiznis/promptlab/internal/scenario/domain"
)

func (s *Server) ListScenarios(c *gin.Context) {
	oc, ok := orgContextFromGin(c)
	if !ok {
		AbortWithError(c, orgcontext.ErrOrgRequired)
		return
	}

	var req scenariodomain.ListScenarioRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.scenarioSvc.List(c.Request.Context(), oc.ActiveOrgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Scenarios, "page_info": resp.PageInfo})
}

func (s *Server) CreateScenario(c *gin.Context) {
	oc, ok := orgContextFromGin(c)
	if !ok {
		AbortWithError(c, orgcontext.ErrOrgRequired)
		return
	}

	var req scenariodomain.CreateScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if !s.allowed(c, oc, authorization.ActionWrite, authorization.ResourcePrompts) {
		return
	}

	created, err := s.scenarioSvc.Create(c.Request.Context(), oc.ActiveOrgID, oc.UserID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (s *Server) GetScenario(c *gin.Context) {
	oc, ok := orgContextFromGin(c)
	if !ok {
		AbortWithError(c, orgcontext.ErrOrgRequired)
		return
	}

	id, err := pathID(c, "scenarioId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := s.scenarioSvc.Get(c.Request.Context(), oc.ActiveOrgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (s *Server) UpdateScenario(c *gin.Context) {
	oc, ok := orgContextFromGin(c)
	if !ok {
		AbortWithError(c, orgcontext.ErrOrgRequired)
		return
	}

	id, err := pathID(c, "scenarioId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req scenariodomain.UpdateScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.TouchesPrompt() && !s.allowed(c, oc, authorization.ActionWrite, authorization.ResourcePrompts) {
		return
	}

	updated, err := s.scenarioSvc.Update(c.Request.Context(), oc.ActiveOrgID, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (s *Server) DeleteScenario(c *gin.Context) {
	oc, ok := orgContextFromGin(c)
	if !ok {
		AbortWithError(c, orgcontext.ErrOrgRequired)
		return
	}

	id, err := pathID(c, "scenarioId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.scenarioSvc.Delete(c.Request.Context(), oc.ActiveOrgID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
