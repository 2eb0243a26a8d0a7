package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gurkanbulca/hustlemarket/internal/database"
	"github.com/gurkanbulca/hustlemarket/internal/lifecycle"
)

var baseTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", uuid.NewString())
	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db))
	return NewStore(db)
}

func openTask(deadline time.Time) lifecycle.Task {
	return lifecycle.Task{
		ID:        uuid.NewString(),
		ClientID:  "client-1",
		State:     lifecycle.TaskOpen,
		Deadline:  deadline,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
}

func TestTaskRepository_CreateGetUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tasks := store.Repos().Tasks

	task := openTask(baseTime.Add(48 * time.Hour))
	rec, err := tasks.Create(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)

	got, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task, got.Task)

	accepted := got.Task
	accepted.State = lifecycle.TaskAccepted
	accepted.HustlerID = "hustler-1"
	at := baseTime.Add(time.Hour)
	accepted.AcceptedAt = &at
	accepted.UpdatedAt = at

	updated, err := tasks.Update(ctx, accepted, got.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	got, err = tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.TaskAccepted, got.Task.State)
	assert.Equal(t, "hustler-1", got.Task.HustlerID)
	require.NotNil(t, got.Task.AcceptedAt)
	assert.True(t, at.Equal(*got.Task.AcceptedAt))
	assert.Equal(t, int64(2), got.Version)
}

func TestTaskRepository_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Repos().Tasks.GetByID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRepository_StaleVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tasks := store.Repos().Tasks

	task := openTask(baseTime.Add(time.Hour))
	_, err := tasks.Create(ctx, task)
	require.NoError(t, err)

	task.State = lifecycle.TaskCancelled
	_, err = tasks.Update(ctx, task, 1)
	require.NoError(t, err)

	task.State = lifecycle.TaskExpired
	_, err = tasks.Update(ctx, task, 1)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)

	got, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.TaskCancelled, got.Task.State)
}

func TestTaskRepository_ListOverdue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tasks := store.Repos().Tasks
	now := baseTime.Add(24 * time.Hour)

	late := openTask(now.Add(-2 * time.Hour))
	later := openTask(now.Add(-1 * time.Hour))
	later.State = lifecycle.TaskAccepted
	later.HustlerID = "hustler-1"
	future := openTask(now.Add(time.Hour))
	done := openTask(now.Add(-3 * time.Hour))
	done.State = lifecycle.TaskCompleted

	for _, task := range []lifecycle.Task{later, future, done, late} {
		_, err := tasks.Create(ctx, task)
		require.NoError(t, err)
	}

	overdue, err := tasks.ListOverdue(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, late.ID, overdue[0].Task.ID)
	assert.Equal(t, later.ID, overdue[1].Task.ID)

	limited, err := tasks.ListOverdue(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, late.ID, limited[0].Task.ID)
}

func TestEscrowRepository(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repos := store.Repos()

	task := openTask(baseTime.Add(time.Hour))
	_, err := repos.Tasks.Create(ctx, task)
	require.NoError(t, err)

	escrow := lifecycle.Escrow{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		Amount:    12345,
		State:     lifecycle.EscrowPending,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	_, err = repos.Escrows.Create(ctx, escrow)
	require.NoError(t, err)

	byTask, err := repos.Escrows.GetByTaskID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, escrow, byTask.Escrow)

	t.Run("amount is never rewritten", func(t *testing.T) {
		partial := byTask.Escrow
		partial.Amount = 1
		partial.State = lifecycle.EscrowRefundPartial
		partial.SplitPercent = 40
		partial.HustlerAmount, partial.ClientAmount = lifecycle.SplitAmount(12345, 40)
		refunded := baseTime.Add(time.Hour)
		partial.RefundedAt = &refunded

		_, err := repos.Escrows.Update(ctx, partial, byTask.Version)
		require.NoError(t, err)

		got, err := repos.Escrows.GetByID(ctx, escrow.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(12345), got.Escrow.Amount)
		assert.Equal(t, lifecycle.EscrowRefundPartial, got.Escrow.State)
		assert.Equal(t, 40, got.Escrow.SplitPercent)
		assert.Equal(t, int64(4938), got.Escrow.HustlerAmount)
		assert.Equal(t, int64(7407), got.Escrow.ClientAmount)
	})

	t.Run("one escrow per task", func(t *testing.T) {
		dup := escrow
		dup.ID = uuid.NewString()
		_, err := repos.Escrows.Create(ctx, dup)
		assert.Error(t, err)
	})
}

func TestProofRepository(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repos := store.Repos()

	task := openTask(baseTime.Add(time.Hour))
	_, err := repos.Tasks.Create(ctx, task)
	require.NoError(t, err)

	first, err := lifecycle.NewProof(lifecycle.NewProofParams{
		ID:           uuid.NewString(),
		TaskID:       task.ID,
		HustlerID:    "hustler-1",
		TaskClientID: task.ClientID,
		Description:  "swept",
		SubmittedAt:  baseTime,
	})
	require.NoError(t, err)
	second, err := lifecycle.NewProof(lifecycle.NewProofParams{
		ID:                uuid.NewString(),
		TaskID:            task.ID,
		HustlerID:         "hustler-1",
		TaskClientID:      task.ClientID,
		Description:       "swept again",
		PhotoURLs:         []string{"https://cdn.example/a.jpg", "https://cdn.example/b.jpg"},
		BeforeAfterMarked: true,
		SubmittedAt:       baseTime.Add(time.Minute),
	})
	require.NoError(t, err)

	_, err = repos.Proofs.Create(ctx, first)
	require.NoError(t, err)
	_, err = repos.Proofs.Create(ctx, second)
	require.NoError(t, err)

	active, err := repos.Proofs.GetActiveByTaskID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.Proof.ID)
	assert.Equal(t, second.PhotoURLs, active.Proof.PhotoURLs)
	assert.True(t, active.Proof.BeforeAfterMarked)

	got, err := repos.Proofs.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Proof.PhotoURLs)

	rejected := got.Proof
	rejected.State = lifecycle.ProofRejected
	rejected.RejectionReason = "blurry"
	reviewed := baseTime.Add(2 * time.Minute)
	rejected.ReviewedAt = &reviewed
	_, err = repos.Proofs.Update(ctx, rejected, got.Version)
	require.NoError(t, err)

	got, err = repos.Proofs.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ProofRejected, got.Proof.State)
	assert.Equal(t, "blurry", got.Proof.RejectionReason)

	_, err = repos.Proofs.GetActiveByTaskID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuditRepository(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	audit := store.Repos().Events

	taskID := uuid.NewString()
	entries := []AuditEntry{
		{Entity: "task", EntityID: taskID, From: "OPEN", To: "ACCEPTED", ActorID: "hustler-1", OccurredAt: baseTime},
		{Entity: "task", EntityID: taskID, From: "ACCEPTED", To: "PROOF_SUBMITTED", ActorID: "hustler-1", OccurredAt: baseTime.Add(time.Hour)},
		{Entity: "escrow", EntityID: taskID, From: "PENDING", To: "FUNDED", OccurredAt: baseTime},
	}
	for _, e := range entries {
		require.NoError(t, audit.Record(ctx, e))
	}

	got, err := audit.ListByEntity(ctx, "task", taskID)
	require.NoError(t, err)
	assert.Equal(t, entries[:2], got)

	got, err = audit.ListByEntity(ctx, "escrow", taskID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].ActorID)
}

func TestStore_InTx(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	task := openTask(baseTime.Add(time.Hour))
	err := store.InTx(ctx, func(r Repos) error {
		if _, err := r.Tasks.Create(ctx, task); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Repos().Tasks.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound, "rolled back insert must not be visible")

	err = store.InTx(ctx, func(r Repos) error {
		_, err := r.Tasks.Create(ctx, task)
		return err
	})
	require.NoError(t, err)

	_, err = store.Repos().Tasks.GetByID(ctx, task.ID)
	assert.NoError(t, err)
}
