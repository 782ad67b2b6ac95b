package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/cuotas/internal/period"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusUnpaid Status = "unpaid"
	// StatusPaid is terminal. Paid records are never recalculated,
	// regenerated or deleted.
	StatusPaid Status = "paid"
)

// Cuota is one member's dues for one month.
type Cuota struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	PersonID         snowflake.ID    `gorm:"not null;uniqueIndex:ux_cuotas_person_period,priority:1" json:"person_id"`
	CategoryID       snowflake.ID    `gorm:"not null;index" json:"category_id"`
	Year             int             `gorm:"not null;uniqueIndex:ux_cuotas_person_period,priority:2;index:idx_cuotas_period,priority:1" json:"year"`
	Month            int             `gorm:"not null;uniqueIndex:ux_cuotas_person_period,priority:3;index:idx_cuotas_period,priority:2" json:"month"`
	BaseAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"base_amount"`
	ActivitiesAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"activities_amount"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Status           Status          `gorm:"type:text;not null" json:"status"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	RunID            string          `gorm:"type:text" json:"run_id,omitempty"`
	CreatedAt        time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null" json:"updated_at"`

	Items []LineItem `gorm:"-" json:"items,omitempty"`
}

func (Cuota) TableName() string { return "cuotas" }

func (c Cuota) Period() period.Period {
	return period.Period{Year: c.Year, Month: time.Month(c.Month)}
}

func (c Cuota) IsPaid() bool { return c.Status == StatusPaid }

// LineItem is one signed component of a cuota total. Discounts are negative.
type LineItem struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	CuotaID    snowflake.ID      `gorm:"not null;index" json:"cuota_id"`
	Position   int               `gorm:"not null" json:"position"`
	Kind       string            `gorm:"type:text;not null" json:"kind"`
	Concept    string            `gorm:"type:text;not null" json:"concept"`
	Amount     decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"amount"`
	Automatic  bool              `gorm:"not null" json:"automatic"`
	Provenance datatypes.JSONMap `json:"provenance,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (LineItem) TableName() string { return "cuota_line_items" }

// Batch stages reported on BatchError.
const (
	StageLoad    = "load"
	StagePricing = "pricing"
	StagePersist = "persist"
)

// BatchError is one member that failed inside a batch operation. The batch
// keeps going.
type BatchError struct {
	PersonID snowflake.ID  `json:"person_id"`
	CuotaID  *snowflake.ID `json:"cuota_id,omitempty"`
	Stage    string        `json:"stage"`
	Message  string        `json:"error"`
	Err      error         `json:"-"`
}

func (e BatchError) Error() string {
	return e.Stage + ": " + e.Message
}

func (e BatchError) Unwrap() error { return e.Err }
