package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/cuotas/internal/audit/domain"
	"github.com/smallbiznis/cuotas/internal/clock"
	"github.com/smallbiznis/cuotas/internal/config"
	ierr "github.com/smallbiznis/cuotas/internal/errors"
	"github.com/smallbiznis/cuotas/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Pricing *config.PricingConfigHolder
	Repo    auditdomain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	pricing *config.PricingConfigHolder
	repo    auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("audit.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		pricing: p.Pricing,
		repo:    p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, db *gorm.DB, req auditdomain.RecordRequest) (*auditdomain.Entry, error) {
	action := strings.TrimSpace(req.Action)
	if action == "" {
		return nil, auditdomain.ErrInvalidAction
	}
	targetType := strings.TrimSpace(req.TargetType)
	targetID := strings.TrimSpace(req.TargetID)
	if targetType == "" || targetID == "" {
		return nil, auditdomain.ErrInvalidTarget
	}

	before, err := snapshot(req.Before)
	if err != nil {
		return nil, err
	}
	after, err := snapshot(req.After)
	if err != nil {
		return nil, err
	}

	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		actor = s.pricing.Get().DefaultActor
	}

	metadata := map[string]any{}
	for key, value := range req.Metadata {
		if key == "" {
			continue
		}
		metadata[key] = value
	}
	if requestID := auditdomain.RequestIDFromContext(ctx); requestID != "" {
		metadata["request_id"] = requestID
	}

	entry := &auditdomain.Entry{
		ID:         s.genID.Generate(),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Before:     before,
		After:      after,
		Actor:      actor,
		CreatedAt:  s.clock.Now().UTC(),
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		entry.Reason = &reason
	}
	if len(metadata) > 0 {
		entry.Metadata = datatypes.JSONMap(metadata)
	}

	if db == nil {
		db = s.db
	}
	if err := s.repo.Append(ctx, db, entry); err != nil {
		s.log.Warn("failed to write audit entry", zap.String("action", action), zap.String("target_id", targetID), zap.Error(err))
		return nil, ierr.WithError(err).WithMessage("append audit entry").Mark(ierr.ErrDatabase)
	}
	return entry, nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidTimeRange
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
	}
	limit := req.Pagination.Limit()

	rows, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Cursor:     cursor,
		Limit:      limit,
	})
	if err != nil {
		return auditdomain.ListResponse{}, ierr.WithError(err).WithMessage("list audit entries").Mark(ierr.ErrDatabase)
	}

	rows, pageInfo := pagination.Trim(rows, limit, func(e auditdomain.Entry) pagination.Cursor {
		return pagination.Cursor{ID: int64(e.ID), CreatedAt: e.CreatedAt}
	})
	return auditdomain.ListResponse{Entries: rows, PageInfo: pageInfo}, nil
}

func snapshot(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("marshal audit snapshot").Mark(ierr.ErrSystem)
	}
	return datatypes.JSON(raw), nil
}
