package domain

import (
	"encoding/json"

	ierr "github.com/smallbiznis/cuotas/internal/errors"
	"gorm.io/datatypes"
)

// envelope is the stored form of a condition or formula:
// {"type": "...", "params": {...}}.
type envelope struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
}

func EncodeConditions(conds []Condition) (datatypes.JSON, error) {
	out := make([]envelope, 0, len(conds))
	for _, c := range conds {
		if _, ok := c.(UnknownCondition); ok {
			return nil, ErrUnknownConditionType
		}
		params, err := json.Marshal(c)
		if err != nil {
			return nil, ierr.WithError(err).WithMessage("encode condition").Mark(ErrInvalidCondition)
		}
		out = append(out, envelope{Type: string(c.ConditionType()), Params: params})
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// DecodeConditions parses stored conditions. Unrecognised type tags decode to
// UnknownCondition so a rule written by a newer release still loads.
func DecodeConditions(raw datatypes.JSON) ([]Condition, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var envs []envelope
	if err := json.Unmarshal(raw, &envs); err != nil {
		return nil, ierr.WithError(err).WithMessage("decode conditions").Mark(ErrMalformedCondition)
	}

	out := make([]Condition, 0, len(envs))
	for _, env := range envs {
		c, err := decodeCondition(env)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeCondition(env envelope) (Condition, error) {
	var (
		c   Condition
		err error
	)
	switch ConditionType(env.Type) {
	case ConditionCategoryMembership:
		var v CategoryMembership
		err = unmarshalParams(env.Params, &v)
		c = v
	case ConditionHasActiveFamilyLink:
		v := HasActiveFamilyLink{MinLinks: 1}
		err = unmarshalParams(env.Params, &v)
		c = v
	case ConditionActivityCountRange:
		var v ActivityCountRange
		err = unmarshalParams(env.Params, &v)
		c = v
	case ConditionTenureMonthsMin:
		var v TenureMonthsMin
		err = unmarshalParams(env.Params, &v)
		c = v
	case ConditionCustom:
		var v CustomCondition
		err = unmarshalParams(env.Params, &v)
		c = v
	default:
		return UnknownCondition{Type: env.Type}, nil
	}
	if err != nil {
		return nil, ierr.WithError(err).WithMessagef("decode %s condition", env.Type).Mark(ErrMalformedCondition)
	}
	return c, nil
}

func EncodeFormula(f Formula) (datatypes.JSON, error) {
	if f == nil {
		return nil, ErrInvalidFormula
	}
	if _, ok := f.(UnknownFormula); ok {
		return nil, ErrUnknownFormulaType
	}
	params, err := json.Marshal(f)
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("encode formula").Mark(ErrInvalidFormula)
	}
	raw, err := json.Marshal(envelope{Type: string(f.FormulaType()), Params: params})
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// DecodeFormula parses a stored formula. Unrecognised type tags decode to
// UnknownFormula.
func DecodeFormula(raw datatypes.JSON) (Formula, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ierr.WithError(err).WithMessage("decode formula").Mark(ErrMalformedFormula)
	}

	var (
		f   Formula
		err error
	)
	switch FormulaType(env.Type) {
	case FormulaFixedPercentage:
		var v FixedPercentage
		err = unmarshalParams(env.Params, &v)
		f = v
	case FormulaCategoryCatalogPercentage:
		f = CategoryCatalogPercentage{}
	case FormulaTieredByActivityCount:
		var v TieredByActivityCount
		err = unmarshalParams(env.Params, &v)
		f = v
	case FormulaCustom:
		var v CustomFormula
		err = unmarshalParams(env.Params, &v)
		f = v
	default:
		return UnknownFormula{Type: env.Type}, nil
	}
	if err != nil {
		return nil, ierr.WithError(err).WithMessagef("decode %s formula", env.Type).Mark(ErrMalformedFormula)
	}
	return f, nil
}

func unmarshalParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
