package repository

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"

	"github.com/gurkanbulca/hustlemarket/internal/lifecycle"
	"github.com/gurkanbulca/hustlemarket/internal/models"
)

const escrowsTable = "escrows"

// EscrowRecord is an escrow snapshot with the version it was read at.
type EscrowRecord struct {
	Escrow  lifecycle.Escrow
	Version int64
}

type EscrowRepository struct {
	q sqlx.ExtContext
	b *entsql.DialectBuilder
}

func (r *EscrowRepository) Create(ctx context.Context, e lifecycle.Escrow) (EscrowRecord, error) {
	row := models.EscrowFromDomain(e, 1)
	ins := r.b.Insert(escrowsTable).Columns(models.EscrowColumns...).Values(row.Values()...)
	if err := insert(ctx, r.q, ins); err != nil {
		return EscrowRecord{}, fmt.Errorf("insert escrow: %w", err)
	}
	return EscrowRecord{Escrow: e, Version: 1}, nil
}

func (r *EscrowRepository) GetByID(ctx context.Context, id string) (EscrowRecord, error) {
	return r.getWhere(ctx, entsql.EQ("id", id), "escrow "+id)
}

// GetByTaskID returns the escrow funding a task
func (r *EscrowRepository) GetByTaskID(ctx context.Context, taskID string) (EscrowRecord, error) {
	return r.getWhere(ctx, entsql.EQ("task_id", taskID), "escrow for task "+taskID)
}

func (r *EscrowRepository) getWhere(ctx context.Context, p *entsql.Predicate, what string) (EscrowRecord, error) {
	sel := r.b.Select(models.EscrowColumns...).
		From(entsql.Table(escrowsTable)).
		Where(p)

	var row models.Escrow
	if err := get(ctx, r.q, &row, sel); err != nil {
		return EscrowRecord{}, fmt.Errorf("get %s: %w", what, err)
	}
	return EscrowRecord{Escrow: row.ToDomain(), Version: row.Version}, nil
}

// Update writes the snapshot if the stored version still equals expected.
// The amount column is never rewritten.
func (r *EscrowRepository) Update(ctx context.Context, e lifecycle.Escrow, expected int64) (EscrowRecord, error) {
	row := models.EscrowFromDomain(e, expected)

	columns := make([]string, 0, len(models.EscrowColumns))
	values := make([]any, 0, len(models.EscrowColumns))
	for i, col := range models.EscrowColumns {
		if col == "amount" || col == "task_id" {
			continue
		}
		columns = append(columns, col)
		values = append(values, row.Values()[i])
	}

	if err := compareAndSwap(ctx, r.q, r.b, escrowsTable, e.ID, expected, columns, values); err != nil {
		return EscrowRecord{}, fmt.Errorf("update escrow %s: %w", e.ID, err)
	}
	return EscrowRecord{Escrow: e, Version: expected + 1}, nil
}
