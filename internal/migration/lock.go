package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
)

// lockName keys the postgres advisory lock shared by every migrate run.
const lockName = "interviewledger.schema"

func lockKey() int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(lockName))
	return int64(h.Sum64() >> 1)
}

// withSchemaLock runs fn while holding the migration advisory lock. A second
// migrator fails fast instead of queueing behind the first.
func withSchemaLock(ctx context.Context, db *sql.DB, fn func() error) error {
	if db == nil {
		return errors.New("schema lock requires database handle")
	}

	// Advisory locks are per-session; pin one connection for lock and unlock.
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("schema lock connection: %w", err)
	}
	defer conn.Close()

	key := lockKey()
	var locked bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&locked); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if !locked {
		return errors.New("another migrate run holds the schema lock")
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", key)
	}()

	return fn()
}
