package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/referralhub/backend/internal/queue"
	"gorm.io/gorm"
)

func createOutboxTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_outbox_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&queue.Job{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&queue.Job{})
		},
	}
}
