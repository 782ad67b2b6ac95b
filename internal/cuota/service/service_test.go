package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	adjustmentdomain "github.com/smallbiznis/cuotas/internal/adjustment/domain"
	auditdomain "github.com/smallbiznis/cuotas/internal/audit/domain"
	cuotadomain "github.com/smallbiznis/cuotas/internal/cuota/domain"
	"github.com/smallbiznis/cuotas/internal/cuota/repository"
	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
	ierr "github.com/smallbiznis/cuotas/internal/errors"
	memberdomain "github.com/smallbiznis/cuotas/internal/member/domain"
	"github.com/smallbiznis/cuotas/internal/observability/metrics"
	"github.com/smallbiznis/cuotas/internal/period"
	pricingdomain "github.com/smallbiznis/cuotas/internal/pricing/domain"
	pricingservice "github.com/smallbiznis/cuotas/internal/pricing/service"
	"github.com/smallbiznis/cuotas/internal/testutil"
	"github.com/smallbiznis/cuotas/internal/testutil/stack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march2025 = period.Period{Year: 2025, Month: time.March}

type fixture struct {
	*stack.Stack
	svc      cuotadomain.Service
	category memberdomain.Category
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

// newFixture seeds a STUDENT category priced at 5000 with a 40% cumulative
// rule, so a fresh cuota totals 3000.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := stack.New(t)

	quotes := pricingservice.NewService(pricingservice.Params{
		Log:            st.Log,
		Pricing:        st.Pricing,
		Engine:         st.Engine,
		Metrics:        metrics.NewNop(),
		Catalog:        st.Members,
		FamilyLinks:    st.Members,
		Participations: st.Members,
		Tenure:         st.Members,
		Discounts:      st.Discounts,
		Adjustments:    st.Adjustments,
		Exemptions:     st.Exemptions,
	})
	svc := NewService(Params{
		DB:        st.DB,
		Log:       st.Log,
		GenID:     st.Node,
		Clock:     st.Clock,
		Pricing:   st.Pricing,
		Repo:      repository.Provide(),
		Quotes:    quotes,
		Directory: st.Members,
		Audit:     st.Audit,
		Metrics:   metrics.NewNop(),
	})

	category := st.Seed.Category("STUDENT", "5000", "0")
	_, err := st.Discounts.CreateRule(context.Background(), discountdomain.CreateRuleRequest{
		RuleInput: discountdomain.RuleInput{
			Code:     "student",
			Name:     "Student",
			Priority: 10,
			Conditions: []discountdomain.Condition{
				discountdomain.CategoryMembership{Categories: []string{"STUDENT"}},
			},
			Formula:         discountdomain.FixedPercentage{Percent: dec("40")},
			ApplicationMode: discountdomain.ModeCumulative,
			AppliesToBase:   true,
			Active:          true,
		},
		Actor: "admin",
	})
	require.NoError(t, err)

	return &fixture{Stack: st, svc: svc, category: category}
}

func (f *fixture) generate(t *testing.T) *cuotadomain.GenerationResult {
	t.Helper()
	result, err := f.svc.Generate(context.Background(), cuotadomain.GenerateRequest{Period: march2025, Actor: "admin"})
	require.NoError(t, err)
	return result
}

func (f *fixture) discountFor(t *testing.T, personID snowflake.ID, percent string) {
	t.Helper()
	_, err := f.Adjustments.Create(context.Background(), adjustmentdomain.CreateRequest{
		PersonID:  personID,
		Kind:      adjustmentdomain.KindPercentDiscount,
		Value:     dec(percent),
		StartDate: testutil.Date(2025, time.January, 1),
		Reason:    "hardship",
		Actor:     "admin",
	})
	require.NoError(t, err)
}

func (f *fixture) countAudit(t *testing.T, action string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.DB.Model(&auditdomain.Entry{}).Where("action = ?", action).Count(&count).Error)
	return count
}

func TestService_GenerateSkipsExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.Seed.Person("Ana", f.category.ID, nil)
	f.Seed.Person("Bruno", f.category.ID, nil)

	first := f.generate(t)
	assert.Equal(t, 2, first.Generated)
	assert.Equal(t, 0, first.Skipped)
	assert.Empty(t, first.Failed)
	assert.NotEmpty(t, first.RunID)
	assert.Equal(t, "2025-03", first.Period)
	assert.Equal(t, int64(2), f.countAudit(t, auditdomain.ActionCuotaCreate))

	second := f.generate(t)
	assert.Equal(t, 0, second.Generated)
	assert.Equal(t, 2, second.Skipped)

	cuotas, err := f.svc.List(ctx, cuotadomain.ListFilter{
		Period:    &march2025,
		Selection: cuotadomain.Selection{PersonIDs: []snowflake.ID{ana.ID}},
	})
	require.NoError(t, err)
	require.Len(t, cuotas, 1)

	cuota, err := f.svc.Get(ctx, cuotas[0].ID)
	require.NoError(t, err)
	assert.Equal(t, cuotadomain.StatusUnpaid, cuota.Status)
	assertDecimal(t, "5000", cuota.BaseAmount)
	assertDecimal(t, "3000", cuota.TotalAmount)
	require.Len(t, cuota.Items, 2)
	assert.Equal(t, string(pricingdomain.LineBase), cuota.Items[0].Kind)
	assert.Equal(t, string(pricingdomain.LineDiscount), cuota.Items[1].Kind)
	assertDecimal(t, "-2000", cuota.Items[1].Amount)
	assert.True(t, cuota.Items[1].Automatic)
}

func TestService_GenerateCollectsFailures(t *testing.T) {
	f := newFixture(t)

	f.Seed.Person("Ana", f.category.ID, nil)
	orphan := f.Seed.Person("Orphan", f.Node.Generate(), nil)

	result := f.generate(t)
	assert.Equal(t, 1, result.Generated)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, orphan.ID, result.Failed[0].PersonID)
	assert.Equal(t, cuotadomain.StagePricing, result.Failed[0].Stage)
	assert.True(t, ierr.IsNotFound(result.Failed[0]))
}

func TestService_GenerateInvalidPeriod(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Generate(context.Background(), cuotadomain.GenerateRequest{Period: period.Period{Year: 2025, Month: 13}})
	assert.ErrorIs(t, err, cuotadomain.ErrInvalidPeriod)
	assert.True(t, ierr.IsValidation(err))
}

func TestService_RecalculateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.Seed.Person("Ana", f.category.ID, nil)
	generated := f.generate(t)
	require.Len(t, generated.CuotaIDs, 1)
	id := generated.CuotaIDs[0]

	f.discountFor(t, ana.ID, "10")

	first, err := f.svc.Recalculate(ctx, cuotadomain.RecalculateRequest{CuotaID: id, Actor: "treasurer", Reason: "hardship approved"})
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assertDecimal(t, "3000", first.PreviousTotal)
	assertDecimal(t, "2700", first.NewTotal)
	assertDecimal(t, "-300", first.Delta)
	assertDecimal(t, "2700", first.Cuota.TotalAmount)
	assert.Equal(t, int64(1), f.countAudit(t, auditdomain.ActionCuotaRecalculate))

	stored, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assertDecimal(t, "2700", stored.TotalAmount)
	require.Len(t, stored.Items, 3)
	assert.Equal(t, string(pricingdomain.LineAdjustment), stored.Items[2].Kind)
	assert.False(t, stored.Items[2].Automatic)

	second, err := f.svc.Recalculate(ctx, cuotadomain.RecalculateRequest{CuotaID: id})
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assertDecimal(t, "0", second.Delta)
	assert.Equal(t, int64(1), f.countAudit(t, auditdomain.ActionCuotaRecalculate))
}

func TestService_RecalculateNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Recalculate(context.Background(), cuotadomain.RecalculateRequest{CuotaID: f.Node.Generate()})
	assert.ErrorIs(t, err, cuotadomain.ErrNotFound)

	_, err = f.svc.Recalculate(context.Background(), cuotadomain.RecalculateRequest{})
	assert.ErrorIs(t, err, cuotadomain.ErrInvalidID)
}

func TestService_PaidGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.Seed.Person("Ana", f.category.ID, nil)
	id := f.generate(t).CuotaIDs[0]

	paid, err := f.svc.MarkPaid(ctx, cuotadomain.MarkPaidRequest{ID: id, Actor: "treasurer"})
	require.NoError(t, err)
	assert.Equal(t, cuotadomain.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, int64(1), f.countAudit(t, auditdomain.ActionCuotaPay))

	_, err = f.svc.MarkPaid(ctx, cuotadomain.MarkPaidRequest{ID: id})
	assert.ErrorIs(t, err, cuotadomain.ErrAlreadyPaid)

	f.discountFor(t, ana.ID, "10")

	_, err = f.svc.Recalculate(ctx, cuotadomain.RecalculateRequest{CuotaID: id})
	assert.ErrorIs(t, err, cuotadomain.ErrPaid)
	assert.True(t, ierr.IsStateGuard(err))

	_, err = f.svc.Regenerate(ctx, cuotadomain.RegenerateRequest{Period: march2025})
	assert.ErrorIs(t, err, cuotadomain.ErrPaidInSelection)

	stored, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.IsPaid())
	assertDecimal(t, "3000", stored.TotalAmount)
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, int64(0), f.countAudit(t, auditdomain.ActionCuotaRecalculate))
	assert.Equal(t, int64(0), f.countAudit(t, auditdomain.ActionCuotaRegenerate))
}

func TestService_RecalculatePeriodSkipsPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.Seed.Person("Ana", f.category.ID, nil)
	bruno := f.Seed.Person("Bruno", f.category.ID, nil)
	carla := f.Seed.Person("Carla", f.category.ID, nil)
	f.generate(t)

	cuotas, err := f.svc.List(ctx, cuotadomain.ListFilter{
		Period:    &march2025,
		Selection: cuotadomain.Selection{PersonIDs: []snowflake.ID{bruno.ID}},
	})
	require.NoError(t, err)
	require.Len(t, cuotas, 1)
	_, err = f.svc.MarkPaid(ctx, cuotadomain.MarkPaidRequest{ID: cuotas[0].ID})
	require.NoError(t, err)

	f.discountFor(t, ana.ID, "10")
	f.discountFor(t, bruno.ID, "10")

	result, err := f.svc.RecalculatePeriod(ctx, cuotadomain.RecalculatePeriodRequest{Period: march2025, Actor: "treasurer"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Unchanged)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Failed)

	unpaid, err := f.svc.List(ctx, cuotadomain.ListFilter{Period: &march2025, Status: cuotadomain.StatusUnpaid})
	require.NoError(t, err)
	totals := map[snowflake.ID]decimal.Decimal{}
	for _, c := range unpaid {
		totals[c.PersonID] = c.TotalAmount
	}
	assertDecimal(t, "2700", totals[ana.ID])
	assertDecimal(t, "3000", totals[carla.ID])
}

func TestService_Regenerate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.Seed.Person("Ana", f.category.ID, nil)
	bruno := f.Seed.Person("Bruno", f.category.ID, nil)
	generated := f.generate(t)
	require.Len(t, generated.CuotaIDs, 2)

	f.discountFor(t, ana.ID, "10")

	result, err := f.svc.Regenerate(ctx, cuotadomain.RegenerateRequest{
		Period:    march2025,
		Selection: cuotadomain.Selection{PersonIDs: []snowflake.ID{ana.ID}},
		Actor:     "admin",
		Reason:    "late adjustment",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	require.NotNil(t, result.Generation)
	assert.Equal(t, 1, result.Generation.Generated)
	assert.Equal(t, result.RunID, result.Generation.RunID)
	assert.Equal(t, int64(1), f.countAudit(t, auditdomain.ActionCuotaRegenerate))

	all, err := f.svc.List(ctx, cuotadomain.ListFilter{Period: &march2025})
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, c := range all {
		switch c.PersonID {
		case ana.ID:
			assertDecimal(t, "2700", c.TotalAmount)
			assert.Equal(t, result.RunID, c.RunID)
		case bruno.ID:
			assertDecimal(t, "3000", c.TotalAmount)
		}
	}

	// persons are generated in id order, so the first id was Ana's
	_, err = f.svc.Get(ctx, generated.CuotaIDs[0])
	assert.ErrorIs(t, err, cuotadomain.ErrNotFound)
}

func TestService_RegenerateFollowsMovedMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adult := f.Seed.Category("ADULT", "8000", "0")
	ana := f.Seed.Person("Ana", f.category.ID, nil)
	f.generate(t)

	require.NoError(t, f.DB.Model(&memberdomain.Person{}).
		Where("id = ?", ana.ID).
		Update("category_id", adult.ID).Error)

	result, err := f.svc.Regenerate(ctx, cuotadomain.RegenerateRequest{
		Period:    march2025,
		Selection: cuotadomain.Selection{CategoryIDs: []snowflake.ID{f.category.ID}},
		Actor:     "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.Generation.Generated)
	assert.Empty(t, result.Generation.Failed)

	all, err := f.svc.List(ctx, cuotadomain.ListFilter{Period: &march2025})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, ana.ID, all[0].PersonID)
	assert.Equal(t, adult.ID, all[0].CategoryID)
	assertDecimal(t, "8000", all[0].TotalAmount)
}

func TestService_RegenerateAuditKeepsDeletedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.Seed.Person("Ana", f.category.ID, nil)
	f.generate(t)

	_, err := f.svc.Regenerate(ctx, cuotadomain.RegenerateRequest{Period: march2025, Actor: "admin"})
	require.NoError(t, err)

	var entry auditdomain.Entry
	require.NoError(t, f.DB.Where("action = ?", auditdomain.ActionCuotaRegenerate).First(&entry).Error)

	var before cuotadomain.Cuota
	require.NoError(t, json.Unmarshal(entry.Before, &before))
	require.NotEmpty(t, before.Items)
	assertDecimal(t, "3000", before.TotalAmount)
}

func TestService_CompareAndPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.Seed.Person("Ana", f.category.ID, nil)
	bruno := f.Seed.Person("Bruno", f.category.ID, nil)
	f.generate(t)

	f.discountFor(t, ana.ID, "10")

	cuotas, err := f.svc.List(ctx, cuotadomain.ListFilter{Period: &march2025})
	require.NoError(t, err)
	byPerson := map[snowflake.ID]cuotadomain.Cuota{}
	for _, c := range cuotas {
		byPerson[c.PersonID] = c
	}

	comparison, err := f.svc.Compare(ctx, byPerson[ana.ID].ID)
	require.NoError(t, err)
	assertDecimal(t, "3000", comparison.StoredTotal)
	assertDecimal(t, "2700", comparison.NewTotal)
	assertDecimal(t, "-300", comparison.Delta)
	assertDecimal(t, "-10", comparison.DeltaPercent)
	assert.True(t, comparison.Significant)
	assert.False(t, comparison.Paid)
	assert.Len(t, comparison.StoredItems, 2)
	assert.Len(t, comparison.Breakdown.Lines, 3)

	_, err = f.svc.MarkPaid(ctx, cuotadomain.MarkPaidRequest{ID: byPerson[bruno.ID].ID})
	require.NoError(t, err)

	preview, err := f.svc.Preview(ctx, cuotadomain.PreviewRequest{Period: &march2025})
	require.NoError(t, err)
	require.Len(t, preview.Items, 2)
	for _, item := range preview.Items {
		if item.PersonID == bruno.ID {
			assert.True(t, item.Paid)
			assert.False(t, item.Significant)
			assert.Len(t, item.StoredItems, 2)
		}
	}

	id := byPerson[ana.ID].ID
	single, err := f.svc.Preview(ctx, cuotadomain.PreviewRequest{CuotaID: &id})
	require.NoError(t, err)
	require.Len(t, single.Items, 1)

	stored, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assertDecimal(t, "3000", stored.TotalAmount)

	_, err = f.svc.Preview(ctx, cuotadomain.PreviewRequest{})
	assert.ErrorIs(t, err, cuotadomain.ErrPreviewTarget)
}

func TestDeltaPercent(t *testing.T) {
	assertDecimal(t, "0", deltaPercent(dec("0"), dec("0")))
	assertDecimal(t, "100", deltaPercent(dec("0"), dec("50")))
	assertDecimal(t, "-33.33", deltaPercent(dec("3000"), dec("-1000")))
	assertDecimal(t, "10", deltaPercent(dec("1000"), dec("100")))
}
