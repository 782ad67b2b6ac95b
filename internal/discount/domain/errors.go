package domain

import (
	ierr "github.com/smallbiznis/cuotas/internal/errors"
)

var (
	ErrInvalidID               = ierr.NewError("invalid_id").Mark(ierr.ErrValidation)
	ErrInvalidCode             = ierr.NewError("invalid_code").Mark(ierr.ErrValidation)
	ErrInvalidName             = ierr.NewError("invalid_name").Mark(ierr.ErrValidation)
	ErrInvalidPercent          = ierr.NewError("invalid_percent").WithHint("percent must be between 0 and 100").Mark(ierr.ErrValidation)
	ErrInvalidGlobalCap        = ierr.NewError("invalid_global_cap").WithHint("global cap must be between 0 and 100").Mark(ierr.ErrValidation)
	ErrInvalidApplicationMode  = ierr.NewError("invalid_application_mode").Mark(ierr.ErrValidation)
	ErrInvalidCustomResolution = ierr.NewError("invalid_custom_resolution").Mark(ierr.ErrValidation)
	ErrInvalidScope            = ierr.NewError("invalid_scope").WithHint("a rule must discount the base, the activities or both").Mark(ierr.ErrValidation)
	ErrInvalidCondition        = ierr.NewError("invalid_condition").Mark(ierr.ErrValidation)
	ErrInvalidFormula          = ierr.NewError("invalid_formula").Mark(ierr.ErrValidation)
	ErrDuplicateCode           = ierr.NewError("duplicate_code").Mark(ierr.ErrValidation)
	ErrRuleNotFound            = ierr.NewError("rule_not_found").Mark(ierr.ErrNotFound)

	ErrUnknownConditionType = ierr.NewError("unknown_condition_type").Mark(ierr.ErrConfiguration)
	ErrUnknownFormulaType   = ierr.NewError("unknown_formula_type").Mark(ierr.ErrConfiguration)
	ErrMalformedCondition   = ierr.NewError("malformed_condition").Mark(ierr.ErrConfiguration)
	ErrMalformedFormula     = ierr.NewError("malformed_formula").Mark(ierr.ErrConfiguration)
	ErrUnknownCustomName    = ierr.NewError("unknown_custom_name").Mark(ierr.ErrConfiguration)
	ErrMisconfiguredRule    = ierr.NewError("misconfigured_rule").Mark(ierr.ErrConfiguration)
)
