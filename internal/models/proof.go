package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/gurkanbulca/hustlemarket/internal/lifecycle"
)

type Proof struct {
	ID                string         `db:"id"`
	TaskID            string         `db:"task_id"`
	HustlerID         string         `db:"hustler_id"`
	TaskClientID      string         `db:"task_client_id"`
	Description       string         `db:"description"`
	PhotoURLs         pq.StringArray `db:"photo_urls"`
	BeforeAfterMarked bool           `db:"before_after_marked"`
	State             string         `db:"state"`
	Quality           string         `db:"quality"`
	SubmittedAt       time.Time      `db:"submitted_at"`
	ReviewedAt        sql.NullTime   `db:"reviewed_at"`
	RejectionReason   sql.NullString `db:"rejection_reason"`
	Version           int64          `db:"version"`
}

// ProofColumns lists Proof's columns in insert order.
var ProofColumns = []string{
	"id", "task_id", "hustler_id", "task_client_id", "description", "photo_urls",
	"before_after_marked", "state", "quality", "submitted_at", "reviewed_at",
	"rejection_reason", "version",
}

// Values returns the column values in ProofColumns order.
func (p Proof) Values() []any {
	return []any{
		p.ID, p.TaskID, p.HustlerID, p.TaskClientID, p.Description, p.PhotoURLs,
		p.BeforeAfterMarked, p.State, p.Quality, p.SubmittedAt, p.ReviewedAt,
		p.RejectionReason, p.Version,
	}
}

// ToDomain converts the row to a lifecycle snapshot.
func (p Proof) ToDomain() lifecycle.Proof {
	photos := make([]string, len(p.PhotoURLs))
	copy(photos, p.PhotoURLs)
	return lifecycle.Proof{
		ID:                p.ID,
		TaskID:            p.TaskID,
		HustlerID:         p.HustlerID,
		TaskClientID:      p.TaskClientID,
		Description:       p.Description,
		PhotoURLs:         photos,
		BeforeAfterMarked: p.BeforeAfterMarked,
		State:             lifecycle.ProofState(p.State),
		Quality:           lifecycle.ProofQuality(p.Quality),
		SubmittedAt:       p.SubmittedAt.UTC(),
		ReviewedAt:        fromNullTime(p.ReviewedAt),
		RejectionReason:   p.RejectionReason.String,
	}
}

// ProofFromDomain converts a lifecycle snapshot to a row at the given version.
func ProofFromDomain(p lifecycle.Proof, version int64) Proof {
	photos := pq.StringArray(p.PhotoURLs)
	if photos == nil {
		photos = pq.StringArray{}
	}
	return Proof{
		ID:                p.ID,
		TaskID:            p.TaskID,
		HustlerID:         p.HustlerID,
		TaskClientID:      p.TaskClientID,
		Description:       p.Description,
		PhotoURLs:         photos,
		BeforeAfterMarked: p.BeforeAfterMarked,
		State:             string(p.State),
		Quality:           string(p.Quality),
		SubmittedAt:       p.SubmittedAt,
		ReviewedAt:        toNullTime(p.ReviewedAt),
		RejectionReason:   toNullString(p.RejectionReason),
		Version:           version,
	}
}
