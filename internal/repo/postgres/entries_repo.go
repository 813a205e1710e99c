package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evergogreen/evergogreen/internal/domain/vhi"
	"github.com/evergogreen/evergogreen/internal/observability"
)

var ErrEntryNotFound = errors.New("entry not found")

type EntriesRepo struct {
	pool *pgxpool.Pool
	obs  *observability.Prom
}

func NewEntriesRepo(pool *pgxpool.Pool, obs *observability.Prom) *EntriesRepo {
	return &EntriesRepo{pool: pool, obs: obs}
}

func (r *EntriesRepo) Insert(ctx context.Context, e vhi.Entry) (int64, error) {
	var id int64

	err := observe(r.obs, "vhi.insert", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO vhi (author, location, vhi_value, date, vegetation_type)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			e.Author, e.Location, e.VhiValue, e.Date.Time(), e.VegetationType,
		).Scan(&id)
	})

	if err != nil {
		return 0, err
	}

	return id, nil
}

// List returns every entry in storage order; no sort is applied.
func (r *EntriesRepo) List(ctx context.Context) ([]vhi.Entry, error) {
	var out []vhi.Entry

	err := observe(r.obs, "vhi.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, author, location, vhi_value, date, vegetation_type FROM vhi`,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]vhi.Entry, 0)

		for rows.Next() {
			var e vhi.Entry
			var date time.Time

			err = rows.Scan(&e.ID, &e.Author, &e.Location, &e.VhiValue, &date, &e.VegetationType)

			if err != nil {
				return err
			}

			e.Date = vhi.Date(date)
			out = append(out, e)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// DeleteOwned removes the entry only when both id and author match, so a
// caller can never delete (or learn about) another user's entry.
func (r *EntriesRepo) DeleteOwned(ctx context.Context, id, author int64) error {
	err := observe(r.obs, "vhi.delete_owned", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM vhi WHERE id = $1 AND author = $2`, id, author)

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
		return ErrEntryNotFound
	}

	return err
}
