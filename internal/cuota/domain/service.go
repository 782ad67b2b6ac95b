package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cuotas/internal/period"
	pricingdomain "github.com/smallbiznis/cuotas/internal/pricing/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, cuota *Cuota) error
	InsertItems(ctx context.Context, db *gorm.DB, items []LineItem) error
	UpdateAmounts(ctx context.Context, db *gorm.DB, cuota *Cuota) error
	UpdateStatus(ctx context.Context, db *gorm.DB, cuota *Cuota) error
	DeleteItems(ctx context.Context, db *gorm.DB, cuotaIDs []snowflake.ID) error
	Delete(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error
	// FindByID returns the cuota with its line items, or nil.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Cuota, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Cuota, error)
	ListItems(ctx context.Context, db *gorm.DB, cuotaID snowflake.ID) ([]LineItem, error)
}

// Selection narrows a period-wide operation to some members.
type Selection struct {
	PersonIDs   []snowflake.ID `json:"person_ids,omitempty"`
	CategoryIDs []snowflake.ID `json:"category_ids,omitempty"`
}

type ListFilter struct {
	Period    *period.Period
	Selection Selection
	Status    Status
}

type Service interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error)
	Recalculate(ctx context.Context, req RecalculateRequest) (*RecalculationOutcome, error)
	RecalculatePeriod(ctx context.Context, req RecalculatePeriodRequest) (*RecalculationResult, error)
	Preview(ctx context.Context, req PreviewRequest) (*PreviewResult, error)
	Regenerate(ctx context.Context, req RegenerateRequest) (*RegenerationResult, error)
	Compare(ctx context.Context, id snowflake.ID) (*Comparison, error)
	MarkPaid(ctx context.Context, req MarkPaidRequest) (*Cuota, error)
	Get(ctx context.Context, id snowflake.ID) (*Cuota, error)
	List(ctx context.Context, filter ListFilter) ([]Cuota, error)
}

type GenerateRequest struct {
	Period    period.Period
	Selection Selection
	Actor     string
}

type GenerationResult struct {
	RunID     string         `json:"run_id"`
	Period    string         `json:"period"`
	Generated int            `json:"generated"`
	Skipped   int            `json:"skipped"`
	CuotaIDs  []snowflake.ID `json:"cuota_ids,omitempty"`
	Failed    []BatchError   `json:"failed,omitempty"`
}

type RecalculateRequest struct {
	CuotaID snowflake.ID
	Actor   string
	Reason  string
}

// RecalculationOutcome reports one recalculation. When Changed is false
// nothing was written.
type RecalculationOutcome struct {
	Cuota         *Cuota                  `json:"cuota"`
	Changed       bool                    `json:"changed"`
	PreviousTotal decimal.Decimal         `json:"previous_total"`
	NewTotal      decimal.Decimal         `json:"new_total"`
	Delta         decimal.Decimal         `json:"delta"`
	Breakdown     pricingdomain.Breakdown `json:"breakdown"`
}

type RecalculatePeriodRequest struct {
	Period    period.Period
	Selection Selection
	Actor     string
	Reason    string
}

type RecalculationResult struct {
	RunID     string       `json:"run_id"`
	Period    string       `json:"period"`
	Updated   int          `json:"updated"`
	Unchanged int          `json:"unchanged"`
	Skipped   int          `json:"skipped"`
	Failed    []BatchError `json:"failed,omitempty"`
}

// PreviewRequest targets either one cuota or every cuota of a period.
type PreviewRequest struct {
	CuotaID   *snowflake.ID
	Period    *period.Period
	Selection Selection
}

type PreviewResult struct {
	Items  []Comparison `json:"items"`
	Failed []BatchError `json:"failed,omitempty"`
}

// Comparison is a stored cuota next to a fresh computation.
type Comparison struct {
	CuotaID      snowflake.ID            `json:"cuota_id"`
	PersonID     snowflake.ID            `json:"person_id"`
	Period       string                  `json:"period"`
	Paid         bool                    `json:"paid"`
	StoredTotal  decimal.Decimal         `json:"stored_total"`
	NewTotal     decimal.Decimal         `json:"new_total"`
	Delta        decimal.Decimal         `json:"delta"`
	DeltaPercent decimal.Decimal         `json:"delta_percent"`
	Significant  bool                    `json:"significant"`
	StoredItems  []LineItem              `json:"stored_items"`
	Breakdown    pricingdomain.Breakdown `json:"breakdown"`
}

type RegenerateRequest struct {
	Period    period.Period
	Selection Selection
	Actor     string
	Reason    string
}

type RegenerationResult struct {
	RunID      string            `json:"run_id"`
	Deleted    int               `json:"deleted"`
	Generation *GenerationResult `json:"generation"`
}

type MarkPaidRequest struct {
	ID    snowflake.ID
	Actor string
}
