package migration

import (
	"context"
	"fmt"
	"strings"

	auditdomain "github.com/railzwaylabs/interviewledger/internal/audit/domain"
	"github.com/railzwaylabs/interviewledger/internal/config"
	institutiondomain "github.com/railzwaylabs/interviewledger/internal/institution/domain"
	ledgerdomain "github.com/railzwaylabs/interviewledger/internal/ledger/domain"
	pricechangedomain "github.com/railzwaylabs/interviewledger/internal/pricechange/domain"
	pricingdomain "github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		return Run(context.Background(), conn, cfg.Database.Driver, log)
	}),
)

// Models lists every table this service owns, in dependency order.
func Models() []any {
	return []any{
		&institutiondomain.Institution{},
		&pricingdomain.GlobalConfig{},
		&pricingdomain.Override{},
		&pricechangedomain.PriceChange{},
		&ledgerdomain.SessionPool{},
		&ledgerdomain.Purchase{},
		&auditdomain.AuditLog{},
	}
}

// Run brings the schema up to date. Postgres uses the embedded SQL
// migrations; other drivers are development setups and use AutoMigrate.
func Run(ctx context.Context, conn *gorm.DB, driver string, log *zap.Logger) error {
	log = log.Named("migration")
	if strings.EqualFold(driver, "postgres") {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		version, _ := LatestMigrationVersion()
		log.Info("migrations applied", zap.Uint("version", version))
		return nil
	}

	if err := conn.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("schema auto-migrated", zap.String("driver", driver))
	return nil
}
