package domain

import (
	"github.com/shopspring/decimal"
)

type ConditionType string

const (
	ConditionCategoryMembership  ConditionType = "category_membership"
	ConditionHasActiveFamilyLink ConditionType = "has_active_family_link"
	ConditionActivityCountRange  ConditionType = "activity_count_range"
	ConditionTenureMonthsMin     ConditionType = "tenure_months_min"
	ConditionCustom              ConditionType = "custom"
)

// Condition is the closed set of eligibility predicates a rule can carry.
type Condition interface {
	ConditionType() ConditionType
	isCondition()
}

// CategoryMembership matches members whose category code is in Categories.
type CategoryMembership struct {
	Categories []string `json:"categories"`
}

// HasActiveFamilyLink matches members with at least MinLinks family links
// to active members. RequireActiveLink also requires the link itself to be
// active.
type HasActiveFamilyLink struct {
	RequireActiveLink bool `json:"require_active_link"`
	MinLinks          int  `json:"min_links"`
}

// ActivityCountRange matches members whose active activity count is in
// [Min, Max]. A nil Max is unbounded.
type ActivityCountRange struct {
	Min int  `json:"min"`
	Max *int `json:"max,omitempty"`
}

// TenureMonthsMin matches members with at least Months whole months of
// membership at the period start.
type TenureMonthsMin struct {
	Months int `json:"months"`
}

// CustomCondition dispatches to a predicate registered by name.
type CustomCondition struct {
	Predicate string `json:"predicate"`
}

// UnknownCondition is what an unrecognised type tag decodes to. It never
// matches.
type UnknownCondition struct {
	Type string `json:"-"`
}

func (CategoryMembership) ConditionType() ConditionType  { return ConditionCategoryMembership }
func (HasActiveFamilyLink) ConditionType() ConditionType { return ConditionHasActiveFamilyLink }
func (ActivityCountRange) ConditionType() ConditionType  { return ConditionActivityCountRange }
func (TenureMonthsMin) ConditionType() ConditionType     { return ConditionTenureMonthsMin }
func (CustomCondition) ConditionType() ConditionType     { return ConditionCustom }
func (c UnknownCondition) ConditionType() ConditionType  { return ConditionType(c.Type) }

func (CategoryMembership) isCondition()  {}
func (HasActiveFamilyLink) isCondition() {}
func (ActivityCountRange) isCondition()  {}
func (TenureMonthsMin) isCondition()     {}
func (CustomCondition) isCondition()     {}
func (UnknownCondition) isCondition()    {}

// Registered custom predicates.
const (
	PredicateFirstYearMember = "first_year_member"
	PredicateNoActivities    = "no_activities"
	PredicateMultiActivity   = "multi_activity"
)

var knownPredicates = map[string]bool{
	PredicateFirstYearMember: true,
	PredicateNoActivities:    true,
	PredicateMultiActivity:   true,
}

func IsKnownPredicate(name string) bool { return knownPredicates[name] }

// ValidateCondition checks the parameters of a condition before it is saved.
func ValidateCondition(c Condition) error {
	switch v := c.(type) {
	case CategoryMembership:
		if len(v.Categories) == 0 {
			return ErrInvalidCondition
		}
		for _, code := range v.Categories {
			if code == "" {
				return ErrInvalidCondition
			}
		}
	case HasActiveFamilyLink:
		if v.MinLinks < 0 {
			return ErrInvalidCondition
		}
	case ActivityCountRange:
		if v.Min < 0 || (v.Max != nil && *v.Max < v.Min) {
			return ErrInvalidCondition
		}
	case TenureMonthsMin:
		if v.Months < 0 {
			return ErrInvalidCondition
		}
	case CustomCondition:
		if !IsKnownPredicate(v.Predicate) {
			return ErrUnknownCustomName
		}
	default:
		return ErrUnknownConditionType
	}
	return nil
}

// Facts is everything the engine knows about one member for one period.
type Facts struct {
	CategoryCode            string
	CategoryDiscountPercent decimal.Decimal
	// FamilyLinks counts links to active members, ActiveFamilyLinks further
	// requires the link to be active.
	FamilyLinks           int
	ActiveFamilyLinks     int
	MaxFamilyLinkDiscount decimal.Decimal
	ActiveActivities      int
	// TenureMonths is nil when the membership start date is unknown.
	TenureMonths *int
}
