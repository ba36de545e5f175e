package database

import (
	"fmt"
	"log/slog"

	"github.com/canteenhq/campuseats/internal/config"
	"github.com/canteenhq/campuseats/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect(cfg *config.Config) error {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := RegisterAppendOnlyGuard(db); err != nil {
		return err
	}

	DB = db
	slog.Info("Database connected", "host", cfg.DBHost, "db", cfg.DBName)
	return nil
}

func Migrate() error {
	if err := DB.AutoMigrate(
		&models.Account{},
		&models.Canteen{},
		&models.MenuItem{},
		&models.Order{},
		&models.Review{},
		&models.SystemConfig{},
		&models.AuditRecord{},
	); err != nil {
		return err
	}
	return installAuditTrigger(DB)
}

// RegisterAppendOnlyGuard installs GORM callbacks that reject any update or
// delete statement against the audit table, whatever code path issued it.
// Redundant with the model hooks and the postgres trigger on purpose:
// application-layer discipline is not a sufficient guarantee.
func RegisterAppendOnlyGuard(db *gorm.DB) error {
	guard := func(tx *gorm.DB) {
		if tx.Statement == nil {
			return
		}
		table := tx.Statement.Table
		if table == "" && tx.Statement.Schema != nil {
			table = tx.Statement.Schema.Table
		}
		if table == "audit_records" {
			tx.AddError(models.ErrAuditImmutable)
		}
	}

	if err := db.Callback().Update().Before("gorm:update").Register("campuseats:audit_append_only_update", guard); err != nil {
		return err
	}
	return db.Callback().Delete().Before("gorm:delete").Register("campuseats:audit_append_only_delete", guard)
}

// installAuditTrigger adds the database-side half of the append-only guard.
// Covers direct SQL issued outside this process; postgres only.
func installAuditTrigger(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	stmts := []string{
		`CREATE OR REPLACE FUNCTION reject_audit_mutation() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION 'audit_records is append-only';
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS audit_records_append_only ON audit_records`,
		`CREATE TRIGGER audit_records_append_only
			BEFORE UPDATE OR DELETE ON audit_records
			FOR EACH ROW EXECUTE FUNCTION reject_audit_mutation()`,
	}
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			return fmt.Errorf("failed to install audit trigger: %w", err)
		}
	}
	return nil
}
