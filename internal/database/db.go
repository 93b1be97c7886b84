package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection pool
func NewDB(cfg Config, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &DB{Pool: pool, logger: logger}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("running database migrations")

	migrations := []string{
		// Currencies referenced by every instrument
		`CREATE TABLE IF NOT EXISTS currencies (
			id SERIAL PRIMARY KEY,
			code VARCHAR(10) NOT NULL UNIQUE,
			name VARCHAR(100) NOT NULL,
			symbol VARCHAR(10) NOT NULL,
			state VARCHAR(10) NOT NULL DEFAULT 'ACTIVE',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_currencies_state ON currencies(state)`,

		// Users owning instruments and calling the API
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username VARCHAR(100) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			full_name VARCHAR(200) NOT NULL,
			email VARCHAR(255),
			state VARCHAR(10) NOT NULL DEFAULT 'ACTIVE',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_login_at TIMESTAMP,
			password_changed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Deposits taken from investors and loans placed with external
		// entities share one table; role tells them apart. owner_id is 0
		// when the service runs without authentication, so no FK to users.
		`CREATE TABLE IF NOT EXISTS instruments (
			id BIGSERIAL PRIMARY KEY,
			owner_id BIGINT NOT NULL DEFAULT 0,
			currency_id INTEGER NOT NULL REFERENCES currencies(id),
			role VARCHAR(10) NOT NULL,
			counterparty VARCHAR(200) NOT NULL DEFAULT '',
			principal DECIMAL(18, 2) NOT NULL,
			annual_rate DECIMAL(7, 4) NOT NULL,
			term_days INTEGER NOT NULL,
			modality VARCHAR(10) NOT NULL,
			start_date TIMESTAMP NOT NULL,
			maturity_date TIMESTAMP NOT NULL,
			total_interest DECIMAL(18, 2) NOT NULL,
			total_due DECIMAL(18, 2) NOT NULL,
			state VARCHAR(10) NOT NULL DEFAULT 'ACTIVE',
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_instruments_owner ON instruments(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_instruments_state ON instruments(state)`,
		`CREATE INDEX IF NOT EXISTS idx_instruments_role_state ON instruments(role, state)`,
		`CREATE INDEX IF NOT EXISTS idx_instruments_maturity ON instruments(maturity_date)`,
		`CREATE INDEX IF NOT EXISTS idx_instruments_currency ON instruments(currency_id)`,

		`CREATE TABLE IF NOT EXISTS payment_obligations (
			id BIGSERIAL PRIMARY KEY,
			instrument_id BIGINT NOT NULL REFERENCES instruments(id) ON DELETE CASCADE,
			sequence_no INTEGER NOT NULL,
			principal DECIMAL(18, 2) NOT NULL,
			interest DECIMAL(18, 2) NOT NULL,
			total DECIMAL(18, 2) NOT NULL,
			due_date TIMESTAMP NOT NULL,
			paid_at TIMESTAMP,
			state VARCHAR(10) NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (instrument_id, sequence_no)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_obligations_instrument ON payment_obligations(instrument_id)`,
		`CREATE INDEX IF NOT EXISTS idx_obligations_state_due ON payment_obligations(state, due_date)`,

		// One snapshot per currency per day; consolidation overwrites
		`CREATE TABLE IF NOT EXISTS daily_fund_balances (
			id BIGSERIAL PRIMARY KEY,
			currency_id INTEGER NOT NULL REFERENCES currencies(id),
			balance_date DATE NOT NULL,
			committed DECIMAL(18, 2) NOT NULL DEFAULT 0,
			deployed DECIMAL(18, 2) NOT NULL DEFAULT 0,
			available DECIMAL(18, 2) NOT NULL DEFAULT 0,
			total DECIMAL(18, 2) NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (currency_id, balance_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_balances_currency_date ON daily_fund_balances(currency_id, balance_date DESC)`,

		// Seed currencies; no-op when already present
		`INSERT INTO currencies (code, name, symbol)
			VALUES ('USD', 'US Dollar', '$'), ('EUR', 'Euro', '€'), ('PEN', 'Peruvian Sol', 'S/')
			ON CONFLICT (code) DO NOTHING`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Msg("database migrations completed")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
