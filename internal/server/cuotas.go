package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	cuotadomain "github.com/smallbiznis/cuotas/internal/cuota/domain"
	"github.com/smallbiznis/cuotas/internal/period"
	"github.com/smallbiznis/cuotas/internal/ratelimit"
	"go.uber.org/zap"
)

type selectionRequest struct {
	PersonIDs   []snowflake.ID `json:"person_ids"`
	CategoryIDs []snowflake.ID `json:"category_ids"`
}

func (r selectionRequest) selection() cuotadomain.Selection {
	return cuotadomain.Selection{PersonIDs: r.PersonIDs, CategoryIDs: r.CategoryIDs}
}

type periodBatchRequest struct {
	Period string `json:"period"`
	Reason string `json:"reason"`
	selectionRequest
}

type previewRequest struct {
	CuotaID *snowflake.ID `json:"cuota_id"`
	Period  string        `json:"period"`
	selectionRequest
}

type recalculateRequest struct {
	Reason string `json:"reason"`
}

// lockPeriod holds the period lock for the rest of the request. The
// returned release is always safe to call.
func (s *Server) lockPeriod(c *gin.Context, p period.Period) (func(), bool) {
	ctx := c.Request.Context()
	lease, err := s.limiter.AcquirePeriod(ctx, p)
	if errors.Is(err, ratelimit.ErrLeaseHeld) {
		return func() {}, false
	}
	if err != nil {
		s.log.Warn("period lock unavailable", zap.String("period", p.String()), zap.Error(err))
		return func() {}, true
	}
	return func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("period lock release failed", zap.String("period", p.String()), zap.Error(err))
		}
	}, true
}

func (s *Server) ListCuotas(c *gin.Context) {
	var query struct {
		Period      string   `form:"period"`
		PersonIDs   []string `form:"person_id"`
		CategoryIDs []string `form:"category_id"`
		Status      string   `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	p, err := parseOptionalPeriod("period", query.Period)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	personIDs, err := parseIDList("person_id", query.PersonIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	categoryIDs, err := parseIDList("category_id", query.CategoryIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.cuotaSvc.List(c.Request.Context(), cuotadomain.ListFilter{
		Period: p,
		Selection: cuotadomain.Selection{
			PersonIDs:   personIDs,
			CategoryIDs: categoryIDs,
		},
		Status: cuotadomain.Status(strings.TrimSpace(query.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCuota(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.cuotaSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GenerateCuotas(c *gin.Context) {
	var req periodBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	p, err := parsePeriod("period", req.Period)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	release, ok := s.lockPeriod(c, p)
	defer release()
	if !ok {
		AbortWithError(c, ErrPeriodBusy)
		return
	}

	resp, err := s.cuotaSvc.Generate(c.Request.Context(), cuotadomain.GenerateRequest{
		Period:    p,
		Selection: req.selection(),
		Actor:     actorFromRequest(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecalculatePeriod(c *gin.Context) {
	var req periodBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	p, err := parsePeriod("period", req.Period)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	release, ok := s.lockPeriod(c, p)
	defer release()
	if !ok {
		AbortWithError(c, ErrPeriodBusy)
		return
	}

	resp, err := s.cuotaSvc.RecalculatePeriod(c.Request.Context(), cuotadomain.RecalculatePeriodRequest{
		Period:    p,
		Selection: req.selection(),
		Actor:     actorFromRequest(c),
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RegenerateCuotas(c *gin.Context) {
	var req periodBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	p, err := parsePeriod("period", req.Period)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	release, ok := s.lockPeriod(c, p)
	defer release()
	if !ok {
		AbortWithError(c, ErrPeriodBusy)
		return
	}

	resp, err := s.cuotaSvc.Regenerate(c.Request.Context(), cuotadomain.RegenerateRequest{
		Period:    p,
		Selection: req.selection(),
		Actor:     actorFromRequest(c),
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PreviewCuotas(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	p, err := parseOptionalPeriod("period", req.Period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.cuotaSvc.Preview(c.Request.Context(), cuotadomain.PreviewRequest{
		CuotaID:   req.CuotaID,
		Period:    p,
		Selection: req.selection(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecalculateCuota(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req recalculateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.cuotaSvc.Recalculate(c.Request.Context(), cuotadomain.RecalculateRequest{
		CuotaID: id,
		Actor:   actorFromRequest(c),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CompareCuota(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.cuotaSvc.Compare(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PayCuota(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.cuotaSvc.MarkPaid(c.Request.Context(), cuotadomain.MarkPaidRequest{
		ID:    id,
		Actor: actorFromRequest(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
