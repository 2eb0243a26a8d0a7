package models

import (
	"database/sql"
	"time"

	"github.com/gurkanbulca/hustlemarket/internal/lifecycle"
)

type Escrow struct {
	ID            string        `db:"id"`
	TaskID        string        `db:"task_id"`
	Amount        int64         `db:"amount"`
	State         string        `db:"state"`
	SplitPercent  sql.NullInt32 `db:"split_percent"`
	HustlerAmount sql.NullInt64 `db:"hustler_amount"`
	ClientAmount  sql.NullInt64 `db:"client_amount"`
	FundedAt      sql.NullTime  `db:"funded_at"`
	ReleasedAt    sql.NullTime  `db:"released_at"`
	RefundedAt    sql.NullTime  `db:"refunded_at"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
	Version       int64         `db:"version"`
}

// EscrowColumns lists Escrow's columns in insert order.
var EscrowColumns = []string{
	"id", "task_id", "amount", "state", "split_percent", "hustler_amount",
	"client_amount", "funded_at", "released_at", "refunded_at",
	"created_at", "updated_at", "version",
}

// Values returns the column values in EscrowColumns order.
func (e Escrow) Values() []any {
	return []any{
		e.ID, e.TaskID, e.Amount, e.State, e.SplitPercent, e.HustlerAmount,
		e.ClientAmount, e.FundedAt, e.ReleasedAt, e.RefundedAt,
		e.CreatedAt, e.UpdatedAt, e.Version,
	}
}

// ToDomain converts the row to a lifecycle snapshot.
func (e Escrow) ToDomain() lifecycle.Escrow {
	return lifecycle.Escrow{
		ID:            e.ID,
		TaskID:        e.TaskID,
		Amount:        e.Amount,
		State:         lifecycle.EscrowState(e.State),
		SplitPercent:  int(e.SplitPercent.Int32),
		HustlerAmount: e.HustlerAmount.Int64,
		ClientAmount:  e.ClientAmount.Int64,
		FundedAt:      fromNullTime(e.FundedAt),
		ReleasedAt:    fromNullTime(e.ReleasedAt),
		RefundedAt:    fromNullTime(e.RefundedAt),
		CreatedAt:     e.CreatedAt.UTC(),
		UpdatedAt:     e.UpdatedAt.UTC(),
	}
}

// EscrowFromDomain converts a lifecycle snapshot to a row at the given version.
// Split columns stay NULL unless the escrow ended in a partial refund.
func EscrowFromDomain(e lifecycle.Escrow, version int64) Escrow {
	row := Escrow{
		ID:         e.ID,
		TaskID:     e.TaskID,
		Amount:     e.Amount,
		State:      string(e.State),
		FundedAt:   toNullTime(e.FundedAt),
		ReleasedAt: toNullTime(e.ReleasedAt),
		RefundedAt: toNullTime(e.RefundedAt),
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
		Version:    version,
	}
	if e.State == lifecycle.EscrowRefundPartial {
		row.SplitPercent = sql.NullInt32{Int32: int32(e.SplitPercent), Valid: true}
		row.HustlerAmount = sql.NullInt64{Int64: e.HustlerAmount, Valid: true}
		row.ClientAmount = sql.NullInt64{Int64: e.ClientAmount, Valid: true}
	}
	return row
}
