package repository

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"

	"github.com/gurkanbulca/hustlemarket/internal/lifecycle"
	"github.com/gurkanbulca/hustlemarket/internal/models"
)

const proofsTable = "proofs"

// ProofRecord is a proof snapshot with the version it was read at.
type ProofRecord struct {
	Proof   lifecycle.Proof
	Version int64
}

type ProofRepository struct {
	q sqlx.ExtContext
	b *entsql.DialectBuilder
}

func (r *ProofRepository) Create(ctx context.Context, p lifecycle.Proof) (ProofRecord, error) {
	row := models.ProofFromDomain(p, 1)
	ins := r.b.Insert(proofsTable).Columns(models.ProofColumns...).Values(row.Values()...)
	if err := insert(ctx, r.q, ins); err != nil {
		return ProofRecord{}, fmt.Errorf("insert proof: %w", err)
	}
	return ProofRecord{Proof: p, Version: 1}, nil
}

func (r *ProofRepository) GetByID(ctx context.Context, id string) (ProofRecord, error) {
	sel := r.b.Select(models.ProofColumns...).
		From(entsql.Table(proofsTable)).
		Where(entsql.EQ("id", id))

	var row models.Proof
	if err := get(ctx, r.q, &row, sel); err != nil {
		return ProofRecord{}, fmt.Errorf("get proof %s: %w", id, err)
	}
	return ProofRecord{Proof: row.ToDomain(), Version: row.Version}, nil
}

// GetActiveByTaskID returns the most recently submitted proof for a task
func (r *ProofRepository) GetActiveByTaskID(ctx context.Context, taskID string) (ProofRecord, error) {
	sel := r.b.Select(models.ProofColumns...).
		From(entsql.Table(proofsTable)).
		Where(entsql.EQ("task_id", taskID)).
		OrderBy(entsql.Desc("submitted_at")).
		Limit(1)

	var row models.Proof
	if err := get(ctx, r.q, &row, sel); err != nil {
		return ProofRecord{}, fmt.Errorf("get active proof for task %s: %w", taskID, err)
	}
	return ProofRecord{Proof: row.ToDomain(), Version: row.Version}, nil
}

// Update writes the snapshot if the stored version still equals expected
func (r *ProofRepository) Update(ctx context.Context, p lifecycle.Proof, expected int64) (ProofRecord, error) {
	row := models.ProofFromDomain(p, expected)
	if err := compareAndSwap(ctx, r.q, r.b, proofsTable, p.ID, expected, models.ProofColumns, row.Values()); err != nil {
		return ProofRecord{}, fmt.Errorf("update proof %s: %w", p.ID, err)
	}
	return ProofRecord{Proof: p, Version: expected + 1}, nil
}
