package domain

import (
	ierr "github.com/smallbiznis/cuotas/internal/errors"
)

var (
	ErrInvalidID                = ierr.NewError("invalid_id").Mark(ierr.ErrValidation)
	ErrInvalidPerson            = ierr.NewError("invalid_person").Mark(ierr.ErrValidation)
	ErrInvalidKind              = ierr.NewError("invalid_kind").Mark(ierr.ErrValidation)
	ErrInvalidPercent           = ierr.NewError("invalid_percent").WithHint("percent must be between 0 and 100").Mark(ierr.ErrValidation)
	ErrTotalRequiresFullPercent = ierr.NewError("total_requires_full_percent").WithHint("a total exemption must be 100 percent").Mark(ierr.ErrValidation)
	ErrInvalidWindow            = ierr.NewError("invalid_window").WithHint("end date must not be before start date").Mark(ierr.ErrValidation)
	ErrInvalidReason            = ierr.NewError("invalid_reason").Mark(ierr.ErrValidation)

	ErrNotFound          = ierr.NewError("exemption_not_found").Mark(ierr.ErrNotFound)
	ErrNotEditable       = ierr.NewError("exemption_not_editable").WithHint("only pending exemptions can be edited").Mark(ierr.ErrStateGuard)
	ErrInvalidTransition = ierr.NewError("invalid_exemption_transition").Mark(ierr.ErrStateGuard)
)
