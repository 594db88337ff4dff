package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-redemption/internal/models"
)

// qrCodeCollationDDL switches qr_code to a binary collation on MySQL so code
// lookups and the unique index stay case and padding sensitive.
const qrCodeCollationDDL = "ALTER TABLE bookings MODIFY qr_code VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL"

// Migrate creates the bookings table and its indexes when missing. Production
// deployments run the SQL files under migrations/ instead.
func Migrate(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*models.Booking)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create bookings table: %w", err)
	}

	mysql := db.Dialect().Name() == dialect.MySQL
	if mysql {
		if _, err := db.ExecContext(ctx, qrCodeCollationDDL); err != nil {
			return fmt.Errorf("set qr_code collation: %w", err)
		}
	}

	q := db.NewCreateIndex().
		Model((*models.Booking)(nil)).
		Index("bookings_event_id_idx").
		Column("event_id")

	// MySQL has no CREATE INDEX IF NOT EXISTS.
	if !mysql {
		q = q.IfNotExists()
	}

	_, err = q.Exec(ctx)
	if err != nil && mysql && strings.Contains(err.Error(), "Duplicate key name") {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create bookings event index: %w", err)
	}
	return nil
}
