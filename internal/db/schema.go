package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the two tables on startup if they are missing.
// Email and username uniqueness is enforced here, at the storage layer,
// so a concurrent duplicate registration surfaces as a conflict instead
// of slipping past the pre-insert checks.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(50) NOT NULL,
			address VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			username VARCHAR(32) NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role VARCHAR(11) NOT NULL CHECK (role IN ('Admin', 'User'))
		)
	`)

	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS vhi (
			id BIGSERIAL PRIMARY KEY,
			author BIGINT NOT NULL,
			location VARCHAR(32) NOT NULL,
			vhi_value INTEGER NOT NULL,
			date DATE NOT NULL,
			vegetation_type VARCHAR(11) NOT NULL CHECK (vegetation_type IN ('Forest', 'Grassland', 'Crop', 'Other'))
		)
	`)

	return err
}
