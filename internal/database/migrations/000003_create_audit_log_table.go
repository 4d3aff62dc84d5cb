package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/referralhub/backend/internal/security/audit"
	"gorm.io/gorm"
)

func createAuditLogTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_audit_log_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&audit.AuditLog{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&audit.AuditLog{})
		},
	}
}
