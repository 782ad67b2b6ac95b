package domain

import (
	"context"
	"time"

	ierr "github.com/smallbiznis/cuotas/internal/errors"
	"github.com/smallbiznis/cuotas/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Append(ctx context.Context, db *gorm.DB, entry *Entry) error
	// List returns up to filter.Limit+1 entries, newest first.
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Entry, error)
}

// RecordRequest describes one audited change. Before and After are
// marshalled to JSON snapshots.
type RecordRequest struct {
	Action     string
	TargetType string
	TargetID   string
	Before     any
	After      any
	Actor      string
	Reason     string
	Metadata   map[string]any
}

type ListRequest struct {
	pagination.Pagination
	Action     string     `form:"action"`
	TargetType string     `form:"target_type"`
	TargetID   string     `form:"target_id"`
	StartAt    *time.Time `form:"start_at" time_format:"2006-01-02T15:04:05Z07:00"`
	EndAt      *time.Time `form:"end_at" time_format:"2006-01-02T15:04:05Z07:00"`
}

type ListResponse struct {
	pagination.PageInfo
	Entries []Entry `json:"entries"`
}

type Service interface {
	// Record appends an entry through db, which should be the transaction
	// carrying the audited change. A nil db uses the service connection.
	Record(ctx context.Context, db *gorm.DB, req RecordRequest) (*Entry, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidAction    = ierr.NewError("invalid_action").Mark(ierr.ErrValidation)
	ErrInvalidTarget    = ierr.NewError("invalid_target").Mark(ierr.ErrValidation)
	ErrInvalidPageToken = ierr.NewError("invalid_page_token").Mark(ierr.ErrValidation)
	ErrInvalidTimeRange = ierr.NewError("invalid_time_range").Mark(ierr.ErrValidation)
)

type requestIDKey struct{}

// WithRequestID stores the inbound request id so audit entries can carry it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
