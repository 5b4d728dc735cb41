package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// recordSchemaState stamps the single system_bootstrap_state row with the
// version and checksum that were just applied.
func recordSchemaState(ctx context.Context, db *sql.DB, set migrationSet, now time.Time) error {
	if db == nil {
		return errors.New("schema state requires database handle")
	}
	if set.Latest() == 0 {
		return errors.New("schema state requires at least one migration")
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO system_bootstrap_state (id, status, schema_version, checksum, activated_at, created_at)
		VALUES (TRUE, 'active', $1, $2, $3, $3)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    schema_version = EXCLUDED.schema_version,
		    checksum = EXCLUDED.checksum,
		    activated_at = EXCLUDED.activated_at
	`, fmt.Sprintf("%d", set.Latest()), set.Checksum(), now.UTC())
	if err != nil {
		return fmt.Errorf("record schema state: %w", err)
	}
	return nil
}
