package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evergogreen/evergogreen/internal/domain/user"
	"github.com/evergogreen/evergogreen/internal/observability"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already in use")
	ErrUsernameTaken = errors.New("username already exists")
)

type UsersRepo struct {
	pool *pgxpool.Pool
	obs  *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, obs *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, obs: obs}
}

// Create inserts a new user row and returns its generated id. Unique
// violations on email or username come back as ErrEmailTaken /
// ErrUsernameTaken so callers can report them as field errors.
func (r *UsersRepo) Create(ctx context.Context, u user.User) (int64, error) {
	var id int64

	err := observe(r.obs, "users.create", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO users (name, address, email, username, password_hash, role)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			u.Name, u.Address, u.Email, u.Username, u.PasswordHash, u.Role,
		).Scan(&id)
	})

	if err != nil {
		if IsUniqueViolation(err) {
			if strings.Contains(constraintName(err), "email") {
				return 0, ErrEmailTaken
			}

			return 0, ErrUsernameTaken
		}

		return 0, err
	}

	return id, nil
}

// GetByIdentity looks a user up by username or email; the same value is
// matched against both columns.
func (r *UsersRepo) GetByIdentity(ctx context.Context, identity string) (user.User, error) {
	var u user.User

	err := observe(r.obs, "users.get_by_identity", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, name, address, email, username, password_hash, role
			 FROM users
			 WHERE email = $1 OR username = $1`,
			identity,
		).Scan(&u.ID, &u.Name, &u.Address, &u.Email, &u.Username, &u.PasswordHash, &u.Role)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User

	err := observe(r.obs, "users.get_by_id", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, name, address, email, username, password_hash, role
			 FROM users
			 WHERE id = $1`,
			id,
		).Scan(&u.ID, &u.Name, &u.Address, &u.Email, &u.Username, &u.PasswordHash, &u.Role)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var dummy int

	err := observe(r.obs, "users.exists", func() error {
		return r.pool.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1`, id).Scan(&dummy)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (r *UsersRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var dummy int

	err := observe(r.obs, "users.email_exists", func() error {
		return r.pool.QueryRow(ctx, `SELECT 1 FROM users WHERE email = $1`, email).Scan(&dummy)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (r *UsersRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	var dummy int

	err := observe(r.obs, "users.username_exists", func() error {
		return r.pool.QueryRow(ctx, `SELECT 1 FROM users WHERE username = $1`, username).Scan(&dummy)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id int64) error {
	err := observe(r.obs, "users.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			// no-rows so the metrics layer files this as an outcome
			return pgx.ErrNoRows
		}

		return nil
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}

	return err
}
