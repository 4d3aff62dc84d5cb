package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/referralhub/backend/internal/models"
	"gorm.io/gorm"
)

// createCoreTables creates the program tables: admins, users, tasks,
// submissions, redeem requests, payouts and certificates
func createCoreTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_core_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Admin{},
				&models.User{},
				&models.Task{},
				&models.TaskSubmission{},
				&models.RedeemRequest{},
				&models.Payout{},
				&models.Certificate{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&models.Certificate{},
				&models.Payout{},
				&models.RedeemRequest{},
				&models.TaskSubmission{},
				&models.Task{},
				&models.User{},
				&models.Admin{},
			)
		},
	}
}
