// Package stack wires the collaborator services over a test database so
// pricing, cuota and HTTP tests exercise the real implementations.
package stack

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	adjustmentdomain "github.com/smallbiznis/cuotas/internal/adjustment/domain"
	adjustmentrepository "github.com/smallbiznis/cuotas/internal/adjustment/repository"
	adjustmentservice "github.com/smallbiznis/cuotas/internal/adjustment/service"
	auditdomain "github.com/smallbiznis/cuotas/internal/audit/domain"
	auditrepository "github.com/smallbiznis/cuotas/internal/audit/repository"
	auditservice "github.com/smallbiznis/cuotas/internal/audit/service"
	"github.com/smallbiznis/cuotas/internal/clock"
	"github.com/smallbiznis/cuotas/internal/config"
	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
	discountrepository "github.com/smallbiznis/cuotas/internal/discount/repository"
	discountservice "github.com/smallbiznis/cuotas/internal/discount/service"
	exemptiondomain "github.com/smallbiznis/cuotas/internal/exemption/domain"
	exemptionrepository "github.com/smallbiznis/cuotas/internal/exemption/repository"
	exemptionservice "github.com/smallbiznis/cuotas/internal/exemption/service"
	memberrepository "github.com/smallbiznis/cuotas/internal/member/repository"
	"github.com/smallbiznis/cuotas/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Stack struct {
	DB      *gorm.DB
	Node    *snowflake.Node
	Clock   *clock.FakeClock
	Pricing *config.PricingConfigHolder
	Log     *zap.Logger
	Seed    *testutil.Seeder

	Members     *memberrepository.Repository
	Audit       auditdomain.Service
	Discounts   discountdomain.Service
	Engine      *discountservice.Engine
	Adjustments adjustmentdomain.Service
	Exemptions  exemptiondomain.Service
}

// New builds the stack with the clock set to 2025-03-01 09:00 UTC.
func New(t testing.TB) *Stack {
	t.Helper()

	db := testutil.NewTestDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	pricing := config.NewStaticPricingConfig(config.DefaultPricingConfig())
	log := zap.NewNop()

	audit := auditservice.NewService(auditservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   clk,
		Pricing: pricing,
		Repo:    auditrepository.Provide(),
	})

	return &Stack{
		DB:      db,
		Node:    node,
		Clock:   clk,
		Pricing: pricing,
		Log:     log,
		Seed:    testutil.NewSeeder(t, db, node),
		Members: memberrepository.NewRepository(db),
		Audit:   audit,
		Discounts: discountservice.NewService(discountservice.Params{
			DB:      db,
			Log:     log,
			GenID:   node,
			Clock:   clk,
			Pricing: pricing,
			Repo:    discountrepository.Provide(),
			Audit:   audit,
		}),
		Engine: discountservice.NewEngine(log),
		Adjustments: adjustmentservice.NewService(adjustmentservice.Params{
			DB:      db,
			Log:     log,
			GenID:   node,
			Clock:   clk,
			Pricing: pricing,
			Repo:    adjustmentrepository.Provide(),
			Audit:   audit,
		}),
		Exemptions: exemptionservice.NewService(exemptionservice.Params{
			DB:      db,
			Log:     log,
			GenID:   node,
			Clock:   clk,
			Pricing: pricing,
			Repo:    exemptionrepository.Provide(),
			Audit:   audit,
		}),
	}
}
