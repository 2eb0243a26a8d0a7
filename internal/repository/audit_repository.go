package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gurkanbulca/hustlemarket/internal/models"
)

const lifecycleEventsTable = "lifecycle_events"

// AuditEntry describes one applied transition.
type AuditEntry struct {
	Entity     string
	EntityID   string
	From       string
	To         string
	ActorID    string
	OccurredAt time.Time
}

// AuditRepository appends to the transition ledger. Rows are never updated.
type AuditRepository struct {
	q sqlx.ExtContext
	b *entsql.DialectBuilder
}

func (r *AuditRepository) Record(ctx context.Context, e AuditEntry) error {
	row := models.LifecycleEvent{
		ID:         uuid.NewString(),
		Entity:     e.Entity,
		EntityID:   e.EntityID,
		FromState:  e.From,
		ToState:    e.To,
		ActorID:    sql.NullString{String: e.ActorID, Valid: e.ActorID != ""},
		OccurredAt: e.OccurredAt,
	}
	ins := r.b.Insert(lifecycleEventsTable).Columns(models.LifecycleEventColumns...).Values(row.Values()...)
	if err := insert(ctx, r.q, ins); err != nil {
		return fmt.Errorf("record %s transition: %w", e.Entity, err)
	}
	return nil
}

// ListByEntity returns the ledger for one entity in the order it happened
func (r *AuditRepository) ListByEntity(ctx context.Context, entity, entityID string) ([]AuditEntry, error) {
	query, args := r.b.Select(models.LifecycleEventColumns...).
		From(entsql.Table(lifecycleEventsTable)).
		Where(entsql.And(entsql.EQ("entity", entity), entsql.EQ("entity_id", entityID))).
		OrderBy("occurred_at").
		Query()

	var rows []models.LifecycleEvent
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list %s %s events: %w", entity, entityID, err)
	}

	entries := make([]AuditEntry, len(rows))
	for i, row := range rows {
		entries[i] = AuditEntry{
			Entity:     row.Entity,
			EntityID:   row.EntityID,
			From:       row.FromState,
			To:         row.ToState,
			ActorID:    row.ActorID.String,
			OccurredAt: row.OccurredAt.UTC(),
		}
	}
	return entries, nil
}
