package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"vetclinic/internal/person/models"
	"vetclinic/pkg/platform/sentinel"
	txcontext "vetclinic/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// Schema creates the registry tables. The allocator row holds the next id to
// issue; locking it serializes every create.
const Schema = `
CREATE TABLE IF NOT EXISTS people (
	id   BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL
);
CREATE TABLE IF NOT EXISTS person_id_allocator (
	singleton BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
	next_id   BIGINT NOT NULL
);
INSERT INTO person_id_allocator (singleton, next_id) VALUES (TRUE, 1)
ON CONFLICT (singleton) DO NOTHING;
CREATE TABLE IF NOT EXISTS retired_person_ids (
	id BIGINT PRIMARY KEY
);
`

const (
	listAscQuery  = `SELECT id, name FROM people ORDER BY id ASC LIMIT $1`
	listDescQuery = `SELECT id, name FROM people ORDER BY id DESC LIMIT $1`
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists people in PostgreSQL.
type PostgresStore struct {
	db        *sql.DB
	policy    models.IDPolicy
	txTimeout time.Duration
}

// NewPostgres constructs a PostgreSQL-backed registry.
func NewPostgres(db *sql.DB, policy models.IDPolicy) *PostgresStore {
	return &PostgresStore{db: db, policy: policy, txTimeout: defaultTxTimeout}
}

// Migrate applies Schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate people schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, draft models.Draft) (*models.Person, error) {
	var created *models.Person
	err := s.runInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var next int64
		if err := tx.QueryRowContext(ctx,
			`SELECT next_id FROM person_id_allocator WHERE singleton FOR UPDATE`).Scan(&next); err != nil {
			return fmt.Errorf("lock id allocator: %w", err)
		}

		id := next
		if draft.HasExplicitID() {
			id = *draft.ID
			if s.policy.RetiresDeletedIDs() {
				var retired bool
				if err := tx.QueryRowContext(ctx,
					`SELECT EXISTS (SELECT 1 FROM retired_person_ids WHERE id = $1)`, id).Scan(&retired); err != nil {
					return fmt.Errorf("check retired id: %w", err)
				}
				if retired {
					return sentinel.ErrAlreadyUsed
				}
			}
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO people (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, id, draft.Name)
		if err != nil {
			return fmt.Errorf("insert person: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("insert person: %w", err)
		} else if n == 0 {
			return sentinel.ErrConflict
		}

		if id >= next {
			if _, err := tx.ExecContext(ctx,
				`UPDATE person_id_allocator SET next_id = $1 + 1 WHERE singleton`, id); err != nil {
				return fmt.Errorf("advance id allocator: %w", err)
			}
		}
		created = &models.Person{ID: id, Name: draft.Name}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Person, error) {
	return findPerson(ctx, s.conn(ctx), `SELECT id, name FROM people WHERE id = $1`, id)
}

// Update locks the row, applies mutate, and writes the name back.
func (s *PostgresStore) Update(ctx context.Context, id int64, mutate func(*models.Person) error) (*models.Person, error) {
	var updated *models.Person
	err := s.runInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		p, err := findPerson(ctx, tx, `SELECT id, name FROM people WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		if err := mutate(p); err != nil {
			return err
		}
		p.ID = id
		if _, err := tx.ExecContext(ctx, `UPDATE people SET name = $2 WHERE id = $1`, id, p.Name); err != nil {
			return fmt.Errorf("update person: %w", err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	return s.runInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM people WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete person: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete person: %w", err)
		}
		if n == 0 {
			return sentinel.ErrNotFound
		}
		if s.policy.RetiresDeletedIDs() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO retired_person_ids (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id); err != nil {
				return fmt.Errorf("retire person id: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) List(ctx context.Context, q models.ListQuery) ([]models.Person, error) {
	query := listAscQuery
	if q.Descending() {
		query = listDescQuery
	}
	// LIMIT NULL is no limit.
	var limit any
	if q.Size != nil {
		limit = int64(*q.Size)
	}

	rows, err := s.conn(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	people := make([]models.Person, 0)
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	return people, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM people`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count people: %w", err)
	}
	return n, nil
}

// Seed upserts fixture rows in one round trip and advances the allocator.
func (s *PostgresStore) Seed(ctx context.Context, people []models.Person) error {
	if len(people) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(people))
	names := make([]string, 0, len(people))
	var highest int64
	for _, p := range people {
		ids = append(ids, p.ID)
		names = append(names, p.Name)
		highest = max(highest, p.ID)
	}

	return s.runInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO people (id, name)
			SELECT * FROM unnest($1::bigint[], $2::text[])
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		`, pq.Array(ids), pq.Array(names)); err != nil {
			return fmt.Errorf("seed people: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE person_id_allocator SET next_id = GREATEST(next_id, $1 + 1) WHERE singleton`, highest); err != nil {
			return fmt.Errorf("advance id allocator: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// conn returns the transaction carried by ctx, if any, so reads can join it.
func (s *PostgresStore) conn(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) runInTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func findPerson(ctx context.Context, q querier, query string, id int64) (*models.Person, error) {
	var p models.Person
	err := q.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find person: %w", err)
	}
	return &p, nil
}
