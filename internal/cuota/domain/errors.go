package domain

import ierr "github.com/smallbiznis/cuotas/internal/errors"

var (
	ErrInvalidID       = ierr.NewError("invalid_cuota_id").Mark(ierr.ErrValidation)
	ErrInvalidPeriod   = ierr.NewError("invalid_period").WithHint("period must be a valid year and month").Mark(ierr.ErrValidation)
	ErrPreviewTarget   = ierr.NewError("invalid_preview_target").WithHint("preview needs either a cuota id or a period").Mark(ierr.ErrValidation)
	ErrNotFound        = ierr.NewError("cuota_not_found").Mark(ierr.ErrNotFound)
	ErrPaid            = ierr.NewError("cuota_paid").WithHint("paid cuotas cannot be recalculated or regenerated").Mark(ierr.ErrStateGuard)
	ErrPaidInSelection = ierr.NewError("paid_cuotas_in_selection").WithHint("the selection contains paid cuotas, nothing was regenerated").Mark(ierr.ErrStateGuard)
	ErrAlreadyPaid     = ierr.NewError("cuota_already_paid").Mark(ierr.ErrStateGuard)
)
