package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ierr "github.com/smallbiznis/cuotas/internal/errors"
	memberdomain "github.com/smallbiznis/cuotas/internal/member/domain"
	"github.com/smallbiznis/cuotas/internal/period"
	"github.com/smallbiznis/cuotas/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*Repository, *testutil.Seeder, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	return NewRepository(db), testutil.NewSeeder(t, db, testutil.NewNode(t)), db
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestRepository_Directory(t *testing.T) {
	repo, seed, db := setup(t)
	ctx := context.Background()

	adult := seed.Category("ADULT", "5000", "0")
	child := seed.Category("CHILD", "3000", "20")
	ana := seed.Person("Ana", adult.ID, nil)
	bruno := seed.Person("Bruno", child.ID, nil)
	gone := seed.Person("Carla", adult.ID, nil)
	require.NoError(t, db.Model(&memberdomain.Person{}).Where("id = ?", gone.ID).Update("active", false).Error)

	found, err := repo.FindPerson(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", found.FullName)

	_, err = repo.FindPerson(ctx, 42)
	assert.ErrorIs(t, err, memberdomain.ErrPersonNotFound)
	assert.True(t, ierr.IsNotFound(err))

	all, err := repo.ListActivePersons(ctx, memberdomain.PersonFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, ana.ID, all[0].ID)
	assert.Equal(t, bruno.ID, all[1].ID)

	children, err := repo.ListActivePersons(ctx, memberdomain.PersonFilter{CategoryIDs: []snowflake.ID{child.ID}})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, bruno.ID, children[0].ID)

	selected, err := repo.ListActivePersons(ctx, memberdomain.PersonFilter{PersonIDs: []snowflake.ID{ana.ID, gone.ID}})
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, ana.ID, selected[0].ID)
}

func TestRepository_CategoryCatalog(t *testing.T) {
	repo, seed, _ := setup(t)
	ctx := context.Background()

	child := seed.Category("CHILD", "3000", "20")

	price, err := repo.GetBasePrice(ctx, child.ID)
	require.NoError(t, err)
	assertDecimal(t, "3000", price)

	percent, err := repo.GetDiscountPercent(ctx, child.ID)
	require.NoError(t, err)
	assertDecimal(t, "20", percent)

	_, err = repo.GetCategory(ctx, 42)
	assert.ErrorIs(t, err, memberdomain.ErrCategoryNotFound)
}

func TestRepository_FamilyLinks(t *testing.T) {
	repo, seed, db := setup(t)
	ctx := context.Background()

	adult := seed.Category("ADULT", "5000", "0")
	ana := seed.Person("Ana", adult.ID, nil)
	bruno := seed.Person("Bruno", adult.ID, nil)
	carla := seed.Person("Carla", adult.ID, nil)
	dario := seed.Person("Dario", adult.ID, nil)

	seed.FamilyLink(ana.ID, bruno.ID, "10", true)
	seed.FamilyLink(ana.ID, carla.ID, "15", false)
	seed.FamilyLink(ana.ID, dario.ID, "25", true)
	require.NoError(t, db.Model(&memberdomain.Person{}).Where("id = ?", dario.ID).Update("active", false).Error)

	links, err := repo.CountLinks(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, links)

	active, err := repo.CountActiveLinks(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	maxDiscount, err := repo.MaxLinkDiscount(ctx, ana.ID)
	require.NoError(t, err)
	assertDecimal(t, "10", maxDiscount)

	none, err := repo.MaxLinkDiscount(ctx, bruno.ID)
	require.NoError(t, err)
	assert.True(t, none.IsZero())
}

func TestRepository_Activities(t *testing.T) {
	repo, seed, _ := setup(t)
	ctx := context.Background()

	adult := seed.Category("ADULT", "5000", "0")
	ana := seed.Person("Ana", adult.ID, nil)
	swim := seed.Activity("SWIM", "1200")
	chess := seed.Activity("CHESS", "800")
	judo := seed.Activity("JUDO", "1500")

	seed.Enroll(ana.ID, swim.ID, testutil.Date(2025, time.January, 1), nil)
	seed.Enroll(ana.ID, chess.ID, testutil.Date(2025, time.March, 15), testutil.DatePtr(2025, time.April, 30))
	seed.Enroll(ana.ID, judo.ID, testutil.Date(2024, time.January, 1), testutil.DatePtr(2025, time.February, 28))

	count, err := repo.CountActive(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	march, err := repo.SumCost(ctx, ana.ID, period.Period{Year: 2025, Month: time.March})
	require.NoError(t, err)
	assertDecimal(t, "2000", march)

	february, err := repo.SumCost(ctx, ana.ID, period.Period{Year: 2025, Month: time.February})
	require.NoError(t, err)
	assertDecimal(t, "2700", february)
}

func TestRepository_MembershipStartDate(t *testing.T) {
	repo, seed, _ := setup(t)
	ctx := context.Background()

	adult := seed.Category("ADULT", "5000", "0")
	veteran := seed.Person("Ana", adult.ID, testutil.DatePtr(2019, time.June, 1))
	newcomer := seed.Person("Bruno", adult.ID, nil)

	start, err := repo.MembershipStartDate(ctx, veteran.ID)
	require.NoError(t, err)
	require.NotNil(t, start)
	assert.True(t, testutil.Date(2019, time.June, 1).Equal(*start))

	start, err = repo.MembershipStartDate(ctx, newcomer.ID)
	require.NoError(t, err)
	assert.Nil(t, start)
}
