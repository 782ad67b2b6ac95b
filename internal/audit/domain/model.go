package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cuotas/pkg/db/pagination"
	"gorm.io/datatypes"
)

// Entry is an append-only audit record. Entries are never updated.
type Entry struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	TargetType string            `gorm:"type:text;not null;index:idx_audit_target" json:"target_type"`
	TargetID   string            `gorm:"type:text;not null;index:idx_audit_target" json:"target_id"`
	Before     datatypes.JSON    `json:"before,omitempty"`
	After      datatypes.JSON    `json:"after,omitempty"`
	Actor      string            `gorm:"type:text;not null" json:"actor"`
	Reason     *string           `gorm:"type:text" json:"reason,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (Entry) TableName() string { return "audit_entries" }

const (
	TargetCuota          = "cuota"
	TargetAdjustment     = "adjustment"
	TargetExemption      = "exemption"
	TargetDiscountRule   = "discount_rule"
	TargetDiscountConfig = "discount_config"
)

const (
	ActionCuotaCreate      = "cuota.create"
	ActionCuotaRecalculate = "cuota.recalculate"
	ActionCuotaRegenerate  = "cuota.regenerate"
	ActionCuotaPay         = "cuota.pay"

	ActionAdjustmentCreate     = "adjustment.create"
	ActionAdjustmentUpdate     = "adjustment.update"
	ActionAdjustmentDeactivate = "adjustment.deactivate"
	ActionAdjustmentReactivate = "adjustment.reactivate"
	ActionAdjustmentDelete     = "adjustment.delete"

	ActionExemptionCreate  = "exemption.create"
	ActionExemptionUpdate  = "exemption.update"
	ActionExemptionApprove = "exemption.approve"
	ActionExemptionReject  = "exemption.reject"
	ActionExemptionRevoke  = "exemption.revoke"

	ActionRuleCreate     = "discount_rule.create"
	ActionRuleUpdate     = "discount_rule.update"
	ActionRuleActivate   = "discount_rule.activate"
	ActionRuleDeactivate = "discount_rule.deactivate"
	ActionConfigUpdate   = "discount_config.update"
)


type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *pagination.Cursor
	Limit      int
}
