// internal/repository/task_repository.go
package repository

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"

	"github.com/gurkanbulca/hustlemarket/internal/lifecycle"
	"github.com/gurkanbulca/hustlemarket/internal/models"
)

const tasksTable = "tasks"

// TaskRecord is a task snapshot with the version it was read at.
type TaskRecord struct {
	Task    lifecycle.Task
	Version int64
}

type TaskRepository struct {
	q sqlx.ExtContext
	b *entsql.DialectBuilder
}

// Create inserts a new task at version 1
func (r *TaskRepository) Create(ctx context.Context, t lifecycle.Task) (TaskRecord, error) {
	row := models.TaskFromDomain(t, 1)
	ins := r.b.Insert(tasksTable).Columns(models.TaskColumns...).Values(row.Values()...)
	if err := insert(ctx, r.q, ins); err != nil {
		return TaskRecord{}, fmt.Errorf("insert task: %w", err)
	}
	return TaskRecord{Task: t, Version: 1}, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (TaskRecord, error) {
	sel := r.b.Select(models.TaskColumns...).
		From(entsql.Table(tasksTable)).
		Where(entsql.EQ("id", id))

	var row models.Task
	if err := get(ctx, r.q, &row, sel); err != nil {
		return TaskRecord{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return TaskRecord{Task: row.ToDomain(), Version: row.Version}, nil
}

// Update writes the snapshot if the stored version still equals expected
func (r *TaskRepository) Update(ctx context.Context, t lifecycle.Task, expected int64) (TaskRecord, error) {
	row := models.TaskFromDomain(t, expected)
	if err := compareAndSwap(ctx, r.q, r.b, tasksTable, t.ID, expected, models.TaskColumns, row.Values()); err != nil {
		return TaskRecord{}, fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return TaskRecord{Task: t, Version: expected + 1}, nil
}

// ListOverdue returns OPEN or ACCEPTED tasks whose deadline is before now,
// oldest deadline first
func (r *TaskRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]TaskRecord, error) {
	sel := r.b.Select(models.TaskColumns...).
		From(entsql.Table(tasksTable)).
		Where(entsql.And(
			entsql.In("state", string(lifecycle.TaskOpen), string(lifecycle.TaskAccepted)),
			entsql.LT("deadline", now),
		)).
		OrderBy("deadline")
	if limit > 0 {
		sel = sel.Limit(limit)
	}

	query, args := sel.Query()
	var rows []models.Task
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query overdue tasks: %w", err)
	}

	records := make([]TaskRecord, len(rows))
	for i, row := range rows {
		records[i] = TaskRecord{Task: row.ToDomain(), Version: row.Version}
	}
	return records, nil
}
