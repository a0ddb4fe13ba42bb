package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	accountdomain "github.com/smallbiznis/makerhub/internal/account/domain"
	checkoutdomain "github.com/smallbiznis/makerhub/internal/checkout/domain"
	leaddomain "github.com/smallbiznis/makerhub/internal/lead/domain"
	pagedomain "github.com/smallbiznis/makerhub/internal/page/domain"
	paymentdomain "github.com/smallbiznis/makerhub/internal/payment/domain"
	plandomain "github.com/smallbiznis/makerhub/internal/plan/domain"
	saledomain "github.com/smallbiznis/makerhub/internal/sale/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded postgres schema.
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
	// migrator.Close would close the shared *sql.DB

	return nil
}

// Models lists every persisted model.
func Models() []any {
	return []any{
		&pagedomain.Page{},
		&plandomain.PricingPlan{},
		&accountdomain.ConnectedAccount{},
		&checkoutdomain.CheckoutSession{},
		&paymentdomain.EventRecord{},
		&saledomain.Sale{},
		&leaddomain.Lead{},
		&paymentdomain.SaleEffect{},
	}
}

// AutoMigrate builds the schema from the models. Used for mysql, sqlite
// and tests, where the postgres SQL does not apply.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
