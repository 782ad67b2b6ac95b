package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	exemptiondomain "github.com/smallbiznis/cuotas/internal/exemption/domain"
)

func (s *Server) ListExemptions(c *gin.Context) {
	var query struct {
		PersonID string `form:"person_id"`
		Status   string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	filter := exemptiondomain.ListFilter{Status: exemptiondomain.Status(strings.TrimSpace(query.Status))}
	personID, err := parseOptionalSnowflakeID(query.PersonID)
	if err != nil {
		AbortWithError(c, newValidationError("person_id", "invalid_person_id", "invalid person_id"))
		return
	}
	if personID != nil {
		filter.PersonID = *personID
	}

	resp, err := s.exemptionSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateExemption(c *gin.Context) {
	var req exemptiondomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Actor = actorFromRequest(c)

	resp, err := s.exemptionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetExemption(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.exemptionSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateExemption(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req exemptiondomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = id
	req.Actor = actorFromRequest(c)

	resp, err := s.exemptionSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApproveExemption(c *gin.Context) {
	s.transitionExemption(c, s.exemptionSvc.Approve)
}

func (s *Server) RejectExemption(c *gin.Context) {
	s.transitionExemption(c, s.exemptionSvc.Reject)
}

func (s *Server) RevokeExemption(c *gin.Context) {
	s.transitionExemption(c, s.exemptionSvc.Revoke)
}

func (s *Server) transitionExemption(c *gin.Context, apply func(context.Context, exemptiondomain.TransitionRequest) (*exemptiondomain.Exemption, error)) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	body, ok := bindTransition(c)
	if !ok {
		return
	}

	resp, err := apply(c.Request.Context(), exemptiondomain.TransitionRequest{
		ID:     id,
		Reason: body.Reason,
		Actor:  actorFromRequest(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
