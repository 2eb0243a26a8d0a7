package models

import (
	"database/sql"
	"time"

	"github.com/gurkanbulca/hustlemarket/internal/lifecycle"
)

type Task struct {
	ID          string         `db:"id"`
	ClientID    string         `db:"client_id"`
	HustlerID   sql.NullString `db:"hustler_id"`
	State       string         `db:"state"`
	Deadline    time.Time      `db:"deadline"`
	AcceptedAt  sql.NullTime   `db:"accepted_at"`
	CompletedAt sql.NullTime   `db:"completed_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	Version     int64          `db:"version"`
}

// TaskColumns lists Task's columns in insert order.
var TaskColumns = []string{
	"id", "client_id", "hustler_id", "state", "deadline",
	"accepted_at", "completed_at", "created_at", "updated_at", "version",
}

// Values returns the column values in TaskColumns order.
func (t Task) Values() []any {
	return []any{
		t.ID, t.ClientID, t.HustlerID, t.State, t.Deadline,
		t.AcceptedAt, t.CompletedAt, t.CreatedAt, t.UpdatedAt, t.Version,
	}
}

// ToDomain converts the row to a lifecycle snapshot.
func (t Task) ToDomain() lifecycle.Task {
	return lifecycle.Task{
		ID:          t.ID,
		ClientID:    t.ClientID,
		HustlerID:   t.HustlerID.String,
		State:       lifecycle.TaskState(t.State),
		Deadline:    t.Deadline.UTC(),
		AcceptedAt:  fromNullTime(t.AcceptedAt),
		CompletedAt: fromNullTime(t.CompletedAt),
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

// TaskFromDomain converts a lifecycle snapshot to a row at the given version.
func TaskFromDomain(t lifecycle.Task, version int64) Task {
	return Task{
		ID:          t.ID,
		ClientID:    t.ClientID,
		HustlerID:   toNullString(t.HustlerID),
		State:       string(t.State),
		Deadline:    t.Deadline,
		AcceptedAt:  toNullTime(t.AcceptedAt),
		CompletedAt: toNullTime(t.CompletedAt),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		Version:     version,
	}
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func fromNullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
