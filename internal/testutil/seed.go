package testutil

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	memberdomain "github.com/smallbiznis/cuotas/internal/member/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Seeder creates member side fixtures.
type Seeder struct {
	t    testing.TB
	db   *gorm.DB
	node *snowflake.Node
}

func NewSeeder(t testing.TB, db *gorm.DB, node *snowflake.Node) *Seeder {
	return &Seeder{t: t, db: db, node: node}
}

func (s *Seeder) Category(code string, basePrice, discountPercent string) memberdomain.Category {
	s.t.Helper()
	category := memberdomain.Category{
		ID:              s.node.Generate(),
		Code:            code,
		Name:            code,
		BasePrice:       decimal.RequireFromString(basePrice),
		DiscountPercent: decimal.RequireFromString(discountPercent),
		Active:          true,
	}
	require.NoError(s.t, s.db.Create(&category).Error)
	return category
}

func (s *Seeder) Person(name string, categoryID snowflake.ID, membershipStart *time.Time) memberdomain.Person {
	s.t.Helper()
	person := memberdomain.Person{
		ID:              s.node.Generate(),
		FullName:        name,
		CategoryID:      categoryID,
		Active:          true,
		MembershipStart: membershipStart,
	}
	require.NoError(s.t, s.db.Create(&person).Error)
	return person
}

func (s *Seeder) FamilyLink(personID, relatedID snowflake.ID, discountPercent string, active bool) memberdomain.FamilyLink {
	s.t.Helper()
	link := memberdomain.FamilyLink{
		ID:              s.node.Generate(),
		PersonID:        personID,
		RelatedPersonID: relatedID,
		Relationship:    "sibling",
		DiscountPercent: decimal.RequireFromString(discountPercent),
		Active:          active,
	}
	require.NoError(s.t, s.db.Create(&link).Error)
	return link
}

func (s *Seeder) Activity(code string, monthlyCost string) memberdomain.Activity {
	s.t.Helper()
	activity := memberdomain.Activity{
		ID:          s.node.Generate(),
		Code:        code,
		Name:        code,
		MonthlyCost: decimal.RequireFromString(monthlyCost),
		Active:      true,
	}
	require.NoError(s.t, s.db.Create(&activity).Error)
	return activity
}

func (s *Seeder) Enroll(personID, activityID snowflake.ID, start time.Time, end *time.Time) memberdomain.ActivityParticipation {
	s.t.Helper()
	participation := memberdomain.ActivityParticipation{
		ID:         s.node.Generate(),
		PersonID:   personID,
		ActivityID: activityID,
		StartDate:  start,
		EndDate:    end,
		Active:     true,
	}
	require.NoError(s.t, s.db.Create(&participation).Error)
	return participation
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func DatePtr(year int, month time.Month, day int) *time.Time {
	d := Date(year, month, day)
	return &d
}
