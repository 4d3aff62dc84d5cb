package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// migrationsList holds all migrations in the order they are applied
var migrationsList = []*gormigrate.Migration{
	createCoreTables(),
	createOutboxTable(),
	createAuditLogTable(),
}

// RunMigrations runs all database migrations
func RunMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrationsList)

	if err := m.Migrate(); err != nil {
		zap.L().Error("could not migrate", zap.Error(err))
		return err
	}
	zap.L().Info("migrations ran successfully", zap.Int("count", len(migrationsList)))
	return nil
}
