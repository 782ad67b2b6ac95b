package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
	"gorm.io/datatypes"
)

// ruleRequest is a rule definition with its conditions and formula in the
// stored {"type", "params"} form.
type ruleRequest struct {
	discountdomain.RuleInput
	Conditions json.RawMessage `json:"conditions"`
	Formula    json.RawMessage `json:"formula"`
}

func (r ruleRequest) input() (discountdomain.RuleInput, error) {
	in := r.RuleInput

	conds, err := discountdomain.DecodeConditions(datatypes.JSON(r.Conditions))
	if err != nil {
		return in, err
	}
	in.Conditions = conds

	if len(r.Formula) == 0 {
		return in, newValidationError("formula", "required", "formula is required")
	}
	formula, err := discountdomain.DecodeFormula(datatypes.JSON(r.Formula))
	if err != nil {
		return in, err
	}
	in.Formula = formula
	return in, nil
}

func (s *Server) ListDiscountRules(c *gin.Context) {
	var query struct {
		ActiveOnly string `form:"active_only"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	activeOnly, err := parseOptionalBool(query.ActiveOnly)
	if err != nil {
		AbortWithError(c, newValidationError("active_only", "invalid_active_only", "invalid active_only"))
		return
	}

	resp, err := s.discountSvc.ListRules(c.Request.Context(), discountdomain.ListRulesRequest{
		ActiveOnly: activeOnly != nil && *activeOnly,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateDiscountRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	in, err := req.input()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.discountSvc.CreateRule(c.Request.Context(), discountdomain.CreateRuleRequest{
		RuleInput: in,
		Actor:     actorFromRequest(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetDiscountRule(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.discountSvc.GetRule(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateDiscountRule(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	in, err := req.input()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.discountSvc.UpdateRule(c.Request.Context(), discountdomain.UpdateRuleRequest{
		ID:        id,
		RuleInput: in,
		Actor:     actorFromRequest(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ActivateDiscountRule(c *gin.Context) {
	s.setDiscountRuleActive(c, true)
}

func (s *Server) DeactivateDiscountRule(c *gin.Context) {
	s.setDiscountRuleActive(c, false)
}

func (s *Server) setDiscountRuleActive(c *gin.Context, active bool) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.discountSvc.SetRuleActive(c.Request.Context(), discountdomain.SetRuleActiveRequest{
		ID:     id,
		Active: active,
		Actor:  actorFromRequest(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDiscountConfig(c *gin.Context) {
	resp, err := s.discountSvc.GetConfig(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateDiscountConfig(c *gin.Context) {
	var req discountdomain.UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Actor = actorFromRequest(c)

	resp, err := s.discountSvc.UpdateConfig(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
