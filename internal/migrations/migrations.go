// Package migrations owns the database schema: versioned goose SQL files for
// postgres and a model-driven schema for sqlite (tests and local runs).
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	ctrentity "github.com/bitfantasy/procurement/internal/contract/entity"
	docentity "github.com/bitfantasy/procurement/internal/document/entity"
	plnentity "github.com/bitfantasy/procurement/internal/plan/entity"
	prventity "github.com/bitfantasy/procurement/internal/provider/entity"
	refentity "github.com/bitfantasy/procurement/internal/reference/entity"
	secentity "github.com/bitfantasy/procurement/internal/security/entity"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embedded embed.FS

// Up applies every pending SQL migration.
func Up(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	goose.SetBaseFS(embedded)
	goose.SetLogger(zap.NewStdLog(logger.Named("goose")))
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "sql"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func Version(ctx context.Context, db *sql.DB) (int64, error) {
	goose.SetBaseFS(embedded)
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}

// Models lists every persisted entity in dependency order.
func Models() []interface{} {
	return []interface{}{
		&refentity.Currency{},
		&refentity.Country{},
		&refentity.ApprovalStatus{},
		&refentity.RealizationStatus{},
		&refentity.EconomicDomain{},
		&refentity.ProcurementNature{},
		&refentity.ContractType{},

		&prventity.Provider{},
		&prventity.ProviderExclusion{},
		&prventity.ProviderRepresentator{},
		&prventity.Clearance{},

		&plnentity.Budget{},
		&plnentity.Plan{},
		&plnentity.PlannedItem{},
		&plnentity.ItemDistribution{},

		&ctrentity.AmendmentType{},
		&ctrentity.AmendmentPhase{},
		&ctrentity.AmendmentStep{},
		&ctrentity.Consultation{},
		&ctrentity.Submission{},
		&ctrentity.Contract{},
		&ctrentity.Amendment{},

		&docentity.DocumentType{},
		&docentity.File{},
		&docentity.Mail{},

		&secentity.Authority{},
		&secentity.Permission{},
		&secentity.Role{},
		&secentity.Group{},
		&secentity.User{},
		&secentity.AuditLog{},
	}
}

// AutoMigrate creates the schema from the entity models. Used for sqlite,
// where the postgres SQL files do not apply.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return nil
}
