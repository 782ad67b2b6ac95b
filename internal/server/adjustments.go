package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	adjustmentdomain "github.com/smallbiznis/cuotas/internal/adjustment/domain"
)

type transitionRequest struct {
	Reason string `json:"reason"`
}

// bindTransition reads the optional reason body of a state transition.
func bindTransition(c *gin.Context) (transitionRequest, bool) {
	var req transitionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return req, false
		}
	}
	req.Reason = strings.TrimSpace(req.Reason)
	return req, true
}

func (s *Server) ListAdjustments(c *gin.Context) {
	var query struct {
		PersonID string `form:"person_id"`
		Status   string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	filter := adjustmentdomain.ListFilter{Status: adjustmentdomain.Status(strings.TrimSpace(query.Status))}
	personID, err := parseOptionalSnowflakeID(query.PersonID)
	if err != nil {
		AbortWithError(c, newValidationError("person_id", "invalid_person_id", "invalid person_id"))
		return
	}
	if personID != nil {
		filter.PersonID = *personID
	}

	resp, err := s.adjustmentSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateAdjustment(c *gin.Context) {
	var req adjustmentdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Actor = actorFromRequest(c)

	resp, err := s.adjustmentSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetAdjustment(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.adjustmentSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateAdjustment(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req adjustmentdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = id
	req.Actor = actorFromRequest(c)

	resp, err := s.adjustmentSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateAdjustment(c *gin.Context) {
	s.transitionAdjustment(c, s.adjustmentSvc.Deactivate)
}

func (s *Server) ReactivateAdjustment(c *gin.Context) {
	s.transitionAdjustment(c, s.adjustmentSvc.Reactivate)
}

func (s *Server) DeleteAdjustment(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	body, ok := bindTransition(c)
	if !ok {
		return
	}

	err = s.adjustmentSvc.Delete(c.Request.Context(), adjustmentdomain.TransitionRequest{
		ID:     id,
		Reason: body.Reason,
		Actor:  actorFromRequest(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type adjustmentTransition func(ctx context.Context, req adjustmentdomain.TransitionRequest) (*adjustmentdomain.Adjustment, error)

func (s *Server) transitionAdjustment(c *gin.Context, apply adjustmentTransition) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	body, ok := bindTransition(c)
	if !ok {
		return
	}

	resp, err := apply(c.Request.Context(), adjustmentdomain.TransitionRequest{
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
