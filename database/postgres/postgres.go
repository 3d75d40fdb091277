package postgres

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
	CREATE TABLE IF NOT EXISTS tracking_sessions (
		id          VARCHAR(64) PRIMARY KEY,
		user_id     VARCHAR(64),
		preset      VARCHAR(32)  NOT NULL,
		frames      INTEGER      NOT NULL DEFAULT 0,
		tracked     INTEGER      NOT NULL DEFAULT 0,
		degraded    INTEGER      NOT NULL DEFAULT 0,
		lost        INTEGER      NOT NULL DEFAULT 0,
		final_state VARCHAR(16)  NOT NULL,
		end_reason  VARCHAR(16)  NOT NULL,
		trace_url   TEXT,
		started_at  TIMESTAMPTZ  NOT NULL,
		ended_at    TIMESTAMPTZ  NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tracking_sessions_user_ended
		ON tracking_sessions (user_id, ended_at DESC);
`

// DSN builds a lib/pq connection string from the DB_* variables.
func DSN() string {
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}
	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		os.Getenv("DB_HOST"),
		port,
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		sslMode,
	)
}

func New() (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	maxOpen, err := strconv.Atoi(os.Getenv("DB_MAX_OPEN_CONNS"))
	if err != nil || maxOpen <= 0 {
		maxOpen = 25
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen / 2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables the service writes to.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}
