package domain

import (
	ierr "github.com/smallbiznis/cuotas/internal/errors"
)

var (
	ErrInvalidID      = ierr.NewError("invalid_id").Mark(ierr.ErrValidation)
	ErrInvalidPerson  = ierr.NewError("invalid_person").Mark(ierr.ErrValidation)
	ErrInvalidKind    = ierr.NewError("invalid_kind").Mark(ierr.ErrValidation)
	ErrInvalidValue   = ierr.NewError("invalid_value").WithHint("value must not be negative").Mark(ierr.ErrValidation)
	ErrInvalidPercent = ierr.NewError("invalid_percent").WithHint("percent must be between 0 and 100").Mark(ierr.ErrValidation)
	ErrInvalidScope   = ierr.NewError("invalid_scope").Mark(ierr.ErrValidation)
	ErrInvalidWindow  = ierr.NewError("invalid_window").WithHint("end date must not be before start date").Mark(ierr.ErrValidation)

	ErrNotFound    = ierr.NewError("adjustment_not_found").Mark(ierr.ErrNotFound)
	ErrNotEditable = ierr.NewError("adjustment_not_editable").WithHint("only active adjustments can be modified").Mark(ierr.ErrStateGuard)
	ErrNotInactive = ierr.NewError("adjustment_not_inactive").WithHint("only inactive adjustments can be reactivated").Mark(ierr.ErrStateGuard)
)
