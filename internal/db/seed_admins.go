package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evergogreen/evergogreen/internal/config"
	"github.com/evergogreen/evergogreen/internal/domain/user"
	"github.com/evergogreen/evergogreen/internal/security"
)

// EnsureAdminUsers seeds the configured admin accounts. Seeding is
// idempotent on username: an existing row is left untouched, even if the
// configured password or other fields changed.
func EnsureAdminUsers(ctx context.Context, pool *pgxpool.Pool, admins []config.AdminSeed, log *slog.Logger) error {
	for _, admin := range admins {
		var dummy int

		err := pool.QueryRow(ctx, `SELECT 1 FROM users WHERE username = $1`, admin.Username).Scan(&dummy)

		if err == nil {
			continue
		}

		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		hash, err := security.HashPassword(admin.Password)

		if err != nil {
			return err
		}

		var id int64

		err = pool.QueryRow(ctx,
			`INSERT INTO users (name, address, email, username, password_hash, role)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			admin.Name, admin.Address, admin.Email, admin.Username, hash, user.RoleAdmin,
		).Scan(&id)

		if err != nil {
			return err
		}

		log.Info("seeded admin user", "username", admin.Username, "id", id)
	}

	return nil
}
