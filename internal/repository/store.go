// internal/repository/store.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConcurrentUpdate means the row changed since it was read.
	ErrConcurrentUpdate = errors.New("concurrent update")
)

// Store hands out repositories bound to the pool or to a transaction.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Repos groups the repositories that share one executor.
type Repos struct {
	Tasks   *TaskRepository
	Escrows *EscrowRepository
	Proofs  *ProofRepository
	Events  *AuditRepository
}

func newRepos(q sqlx.ExtContext) Repos {
	b := entsql.Dialect(q.DriverName())
	return Repos{
		Tasks:   &TaskRepository{q: q, b: b},
		Escrows: &EscrowRepository{q: q, b: b},
		Proofs:  &ProofRepository{q: q, b: b},
		Events:  &AuditRepository{q: q, b: b},
	}
}

// Repos returns repositories running outside a transaction.
func (s *Store) Repos() Repos {
	return newRepos(s.db)
}

// InTx runs fn inside a transaction, committing when it returns nil.
func (s *Store) InTx(ctx context.Context, fn func(Repos) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	if err := fn(newRepos(tx)); err != nil {
		return rollback(tx, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Helper function for transaction rollback
func rollback(tx *sqlx.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		err = fmt.Errorf("%w: %v", err, rerr)
	}
	return err
}

func get(ctx context.Context, q sqlx.QueryerContext, dest any, sel *entsql.Selector) error {
	query, args := sel.Query()
	if err := sqlx.GetContext(ctx, q, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func insert(ctx context.Context, q sqlx.ExecerContext, ins *entsql.InsertBuilder) error {
	query, args := ins.Query()
	_, err := q.ExecContext(ctx, query, args...)
	return err
}

// compareAndSwap writes columns onto the row identified by id only if its
// version still equals expected, bumping the version.
func compareAndSwap(ctx context.Context, q sqlx.ExecerContext, b *entsql.DialectBuilder,
	table, id string, expected int64, columns []string, values []any) error {
	upd := b.Update(table)
	for i, col := range columns {
		switch col {
		case "id", "created_at", "version":
			continue
		}
		upd = upd.Set(col, values[i])
	}
	upd = upd.Set("version", expected+1).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("version", expected)))

	query, args := upd.Query()
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}
