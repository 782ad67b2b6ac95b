// Package domain contains the member side collaborators the dues pipeline
// reads from: persons, categories, family links and activities.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Category is a membership category with its monthly base price.
type Category struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	Code            string          `gorm:"type:text;not null;uniqueIndex"`
	Name            string          `gorm:"type:text;not null"`
	BasePrice       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	DiscountPercent decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0"`
	Active          bool            `gorm:"not null"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Category) TableName() string { return "categories" }

// Person is an association member.
type Person struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	FullName        string       `gorm:"type:text;not null"`
	CategoryID      snowflake.ID `gorm:"not null;index"`
	Active          bool         `gorm:"not null;index"`
	MembershipStart *time.Time   `gorm:""`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Person) TableName() string { return "persons" }

// FamilyLink relates two members. DiscountPercent is the relationship
// specific discount used by the family link custom formula.
type FamilyLink struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	PersonID        snowflake.ID    `gorm:"not null;index"`
	RelatedPersonID snowflake.ID    `gorm:"not null;index"`
	Relationship    string          `gorm:"type:text;not null"`
	DiscountPercent decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0"`
	Active          bool            `gorm:"not null"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (FamilyLink) TableName() string { return "family_links" }

// Activity is an optional paid activity (sport, workshop) with a monthly cost.
type Activity struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	Code        string          `gorm:"type:text;not null;uniqueIndex"`
	Name        string          `gorm:"type:text;not null"`
	MonthlyCost decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Active      bool            `gorm:"not null"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Activity) TableName() string { return "activities" }

// ActivityParticipation enrolls a person in an activity for a date window.
type ActivityParticipation struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	PersonID   snowflake.ID `gorm:"not null;index"`
	ActivityID snowflake.ID `gorm:"not null;index"`
	StartDate  time.Time    `gorm:"not null"`
	EndDate    *time.Time   `gorm:""`
	Active     bool         `gorm:"not null"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ActivityParticipation) TableName() string { return "activity_participations" }
