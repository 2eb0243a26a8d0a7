package models

import (
	"database/sql"
	"time"
)

// LifecycleEvent is one row of the append-only transition ledger.
type LifecycleEvent struct {
	ID         string         `db:"id"`
	Entity     string         `db:"entity"`
	EntityID   string         `db:"entity_id"`
	FromState  string         `db:"from_state"`
	ToState    string         `db:"to_state"`
	ActorID    sql.NullString `db:"actor_id"`
	OccurredAt time.Time      `db:"occurred_at"`
}

// LifecycleEventColumns lists LifecycleEvent's columns in insert order.
var LifecycleEventColumns = []string{
	"id", "entity", "entity_id", "from_state", "to_state", "actor_id", "occurred_at",
}

// Values returns the column values in LifecycleEventColumns order.
func (e LifecycleEvent) Values() []any {
	return []any{e.ID, e.Entity, e.EntityID, e.FromState, e.ToState, e.ActorID, e.OccurredAt}
}
