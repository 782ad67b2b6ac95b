package domain

import ierr "github.com/smallbiznis/cuotas/internal/errors"

var ErrInvalidPeriod = ierr.NewError("invalid_period").
	WithHint("Period must be a valid year and month").
	Mark(ierr.ErrValidation)
