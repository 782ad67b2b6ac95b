package service

import (
	"context"
	"testing"
	"time"

	adjustmentdomain "github.com/smallbiznis/cuotas/internal/adjustment/domain"
	"github.com/smallbiznis/cuotas/internal/adjustment/repository"
	auditdomain "github.com/smallbiznis/cuotas/internal/audit/domain"
	auditrepository "github.com/smallbiznis/cuotas/internal/audit/repository"
	auditservice "github.com/smallbiznis/cuotas/internal/audit/service"
	"github.com/smallbiznis/cuotas/internal/clock"
	"github.com/smallbiznis/cuotas/internal/config"
	ierr "github.com/smallbiznis/cuotas/internal/errors"
	"github.com/smallbiznis/cuotas/internal/period"
	"github.com/smallbiznis/cuotas/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc   adjustmentdomain.Service
	db    *gorm.DB
	clock *clock.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC))
	pricing := config.NewStaticPricingConfig(config.DefaultPricingConfig())

	audit := auditservice.NewService(auditservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Pricing: pricing, Repo: auditrepository.Provide(),
	})
	svc := NewService(Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Pricing: pricing, Repo: repository.Provide(), Audit: audit,
	})
	return fixture{svc: svc, db: db, clock: clk}
}

func createReq(personID int64, kind adjustmentdomain.Kind, value string, start time.Time) adjustmentdomain.CreateRequest {
	return adjustmentdomain.CreateRequest{
		PersonID:  snowflakeID(personID),
		Kind:      kind,
		Value:     dec(value),
		StartDate: start,
		Actor:     "admin",
		Reason:    "board decision",
	}
}

func TestService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := testutil.Date(2025, time.January, 1)

	_, err := f.svc.Create(ctx, createReq(1, adjustmentdomain.KindPercentDiscount, "120", start))
	assert.True(t, ierr.IsValidation(err))

	_, err = f.svc.Create(ctx, createReq(1, adjustmentdomain.KindFixedDiscount, "-1", start))
	assert.True(t, ierr.IsValidation(err))

	req := createReq(1, adjustmentdomain.KindFixedDiscount, "10", start)
	req.EndDate = testutil.DatePtr(2024, time.December, 31)
	_, err = f.svc.Create(ctx, req)
	assert.True(t, ierr.Is(err, adjustmentdomain.ErrInvalidWindow))

	req = createReq(1, adjustmentdomain.KindFixedDiscount, "10", start)
	req.Scope = adjustmentdomain.ScopeSpecificItems
	_, err = f.svc.Create(ctx, req)
	assert.True(t, ierr.Is(err, adjustmentdomain.ErrInvalidScope))

	adj, err := f.svc.Create(ctx, createReq(1, adjustmentdomain.KindFixedSurcharge, "250", start))
	require.NoError(t, err)
	assert.Equal(t, adjustmentdomain.StatusActive, adj.Status)
	assert.Equal(t, adjustmentdomain.ScopeAllItems, adj.Scope)
	assert.Equal(t, "admin", adj.CreatedBy)
}

func TestService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adj, err := f.svc.Create(ctx, createReq(1, adjustmentdomain.KindPercentDiscount, "10", testutil.Date(2025, time.January, 1)))
	require.NoError(t, err)

	value := dec("15")
	updated, err := f.svc.Update(ctx, adjustmentdomain.UpdateRequest{ID: adj.ID, Value: &value})
	require.NoError(t, err)
	assert.True(t, value.Equal(updated.Value))

	_, err = f.svc.Reactivate(ctx, adjustmentdomain.TransitionRequest{ID: adj.ID})
	assert.True(t, ierr.IsStateGuard(err))

	_, err = f.svc.Deactivate(ctx, adjustmentdomain.TransitionRequest{ID: adj.ID, Reason: "paid in cash"})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, adjustmentdomain.UpdateRequest{ID: adj.ID, Value: &value})
	assert.True(t, ierr.IsStateGuard(err))
	_, err = f.svc.Deactivate(ctx, adjustmentdomain.TransitionRequest{ID: adj.ID})
	assert.True(t, ierr.IsStateGuard(err))

	reactivated, err := f.svc.Reactivate(ctx, adjustmentdomain.TransitionRequest{ID: adj.ID})
	require.NoError(t, err)
	assert.Equal(t, adjustmentdomain.StatusActive, reactivated.Status)

	require.NoError(t, f.svc.Delete(ctx, adjustmentdomain.TransitionRequest{ID: adj.ID}))
	_, err = f.svc.Get(ctx, adj.ID)
	assert.True(t, ierr.IsNotFound(err))

	var actions []string
	require.NoError(t, f.db.Model(&auditdomain.Entry{}).
		Where("target_id = ?", adj.ID.String()).
		Order("id asc").
		Pluck("action", &actions).Error)
	assert.Equal(t, []string{
		auditdomain.ActionAdjustmentCreate,
		auditdomain.ActionAdjustmentUpdate,
		auditdomain.ActionAdjustmentDeactivate,
		auditdomain.ActionAdjustmentReactivate,
		auditdomain.ActionAdjustmentDelete,
	}, actions)
}

func TestService_ActiveForPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	march := period.Period{Year: 2025, Month: time.March}

	first, err := f.svc.Create(ctx, createReq(1, adjustmentdomain.KindPercentDiscount, "20", testutil.Date(2025, time.January, 1)))
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	second, err := f.svc.Create(ctx, createReq(1, adjustmentdomain.KindFixedDiscount, "500", testutil.Date(2025, time.March, 31)))
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	ended := createReq(1, adjustmentdomain.KindFixedDiscount, "1", testutil.Date(2025, time.January, 1))
	ended.EndDate = testutil.DatePtr(2025, time.February, 28)
	_, err = f.svc.Create(ctx, ended)
	require.NoError(t, err)

	future := createReq(1, adjustmentdomain.KindFixedDiscount, "1", testutil.Date(2025, time.April, 1))
	_, err = f.svc.Create(ctx, future)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, createReq(2, adjustmentdomain.KindFixedDiscount, "1", testutil.Date(2025, time.January, 1)))
	require.NoError(t, err)

	inactive, err := f.svc.Create(ctx, createReq(1, adjustmentdomain.KindFixedDiscount, "1", testutil.Date(2025, time.January, 1)))
	require.NoError(t, err)
	_, err = f.svc.Deactivate(ctx, adjustmentdomain.TransitionRequest{ID: inactive.ID})
	require.NoError(t, err)

	active, err := f.svc.ActiveForPeriod(ctx, snowflakeID(1), march)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, first.ID, active[0].ID)
	assert.Equal(t, second.ID, active[1].ID)
}
