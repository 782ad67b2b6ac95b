package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindTotal   Kind = "total"
	KindPartial Kind = "partial"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusRevoked  Status = "revoked"
)

// transitions lists the allowed status changes.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusRevoked},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Exemption is an approval gated percentage reduction for a date window.
type Exemption struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	PersonID    snowflake.ID    `gorm:"not null;index" json:"person_id"`
	Kind        Kind            `gorm:"type:text;not null" json:"kind"`
	Percent     decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"percent"`
	StartDate   time.Time       `gorm:"not null" json:"start_date"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
	Status      Status          `gorm:"type:text;not null;index" json:"status"`
	Reason      string          `gorm:"type:text;not null" json:"reason"`
	RequestedBy string          `gorm:"type:text;not null" json:"requested_by"`
	DecidedBy   *string         `gorm:"type:text" json:"decided_by,omitempty"`
	DecidedAt   *time.Time      `json:"decided_at,omitempty"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
}

func (Exemption) TableName() string { return "exemptions" }

var hundred = decimal.NewFromInt(100)

func (e *Exemption) Validate() error {
	if e.PersonID == 0 {
		return ErrInvalidPerson
	}
	switch e.Kind {
	case KindTotal:
		if !e.Percent.Equal(hundred) {
			return ErrTotalRequiresFullPercent
		}
	case KindPartial:
	default:
		return ErrInvalidKind
	}
	if e.Percent.IsNegative() || e.Percent.GreaterThan(hundred) {
		return ErrInvalidPercent
	}
	if e.StartDate.IsZero() {
		return ErrInvalidWindow
	}
	if e.EndDate != nil && e.EndDate.Before(e.StartDate) {
		return ErrInvalidWindow
	}
	return nil
}

// AppliedExemption traces the exemption stage of a pricing run.
type AppliedExemption struct {
	ExemptionID snowflake.ID    `json:"exemption_id"`
	Kind        Kind            `json:"kind"`
	Percent     decimal.Decimal `json:"percent"`
	Pre         decimal.Decimal `json:"pre"`
	Delta       decimal.Decimal `json:"delta"`
	Post        decimal.Decimal `json:"post"`
}
