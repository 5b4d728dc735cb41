package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	pricingdomain "github.com/railzwaylabs/interviewledger/internal/pricing/domain"
)

// seedGlobalPricing makes sure the global pricing singleton exists. Existing
// rates are never touched.
func seedGlobalPricing(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("pricing seed requires database handle")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO pricing_configs (id, cost_per_minute, markup_percent, annual_license_cost, version, updated_at)
		VALUES ($1, 0, 0, 0, 1, now())
		ON CONFLICT (id) DO NOTHING
	`, pricingdomain.GlobalConfigID)
	if err != nil {
		return fmt.Errorf("seed global pricing: %w", err)
	}
	return nil
}
