package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	adjustmentdomain "github.com/smallbiznis/cuotas/internal/adjustment/domain"
	auditdomain "github.com/smallbiznis/cuotas/internal/audit/domain"
	cuotadomain "github.com/smallbiznis/cuotas/internal/cuota/domain"
	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
	exemptiondomain "github.com/smallbiznis/cuotas/internal/exemption/domain"
	memberdomain "github.com/smallbiznis/cuotas/internal/member/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded postgres migrations. Every table the
// service reads or writes is created on startup.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&memberdomain.Category{},
		&memberdomain.Person{},
		&memberdomain.FamilyLink{},
		&memberdomain.Activity{},
		&memberdomain.ActivityParticipation{},
		&discountdomain.Rule{},
		&discountdomain.GlobalConfig{},
		&adjustmentdomain.Adjustment{},
		&exemptiondomain.Exemption{},
		&cuotadomain.Cuota{},
		&cuotadomain.LineItem{},
		&auditdomain.Entry{},
	}
}

// AutoMigrate creates the schema from the models. Used for the sqlite and
// mysql dialects, which the SQL migrations do not target.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
