// Package lifecyclev1 defines the wire contract of hustle.lifecycle.v1.
package lifecyclev1

import (
	"google.golang.org/protobuf/types/known/timestamppb"
)

type Task struct {
	ID          string                 `json:"id"`
	ClientID    string                 `json:"client_id"`
	HustlerID   string                 `json:"hustler_id,omitempty"`
	State       string                 `json:"state"`
	Deadline    *timestamppb.Timestamp `json:"deadline"`
	AcceptedAt  *timestamppb.Timestamp `json:"accepted_at,omitempty"`
	CompletedAt *timestamppb.Timestamp `json:"completed_at,omitempty"`
	CreatedAt   *timestamppb.Timestamp `json:"created_at"`
	UpdatedAt   *timestamppb.Timestamp `json:"updated_at"`
}

type Escrow struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`
	// Amount is in minor currency units.
	Amount        int64                  `json:"amount"`
	State         string                 `json:"state"`
	SplitPercent  int32                  `json:"split_percent,omitempty"`
	HustlerAmount int64                  `json:"hustler_amount,omitempty"`
	ClientAmount  int64                  `json:"client_amount,omitempty"`
	FundedAt      *timestamppb.Timestamp `json:"funded_at,omitempty"`
	ReleasedAt    *timestamppb.Timestamp `json:"released_at,omitempty"`
	RefundedAt    *timestamppb.Timestamp `json:"refunded_at,omitempty"`
}

type Proof struct {
	ID                string                 `json:"id"`
	TaskID            string                 `json:"task_id"`
	HustlerID         string                 `json:"hustler_id"`
	Description       string                 `json:"description,omitempty"`
	PhotoURLs         []string               `json:"photo_urls,omitempty"`
	BeforeAfterMarked bool                   `json:"before_after_marked,omitempty"`
	State             string                 `json:"state"`
	Quality           string                 `json:"quality"`
	SubmittedAt       *timestamppb.Timestamp `json:"submitted_at"`
	ReviewedAt        *timestamppb.Timestamp `json:"reviewed_at,omitempty"`
	RejectionReason   string                 `json:"rejection_reason,omitempty"`
}

type CreateTaskRequest struct {
	Deadline *timestamppb.Timestamp `json:"deadline"`
	Amount   int64                  `json:"amount"`
}

type CreateTaskResponse struct {
	Task   *Task   `json:"task"`
	Escrow *Escrow `json:"escrow"`
}

type GetTaskRequest struct {
	TaskID string `json:"task_id"`
}

type GetTaskResponse struct {
	Task   *Task   `json:"task"`
	Escrow *Escrow `json:"escrow"`
	Proof  *Proof  `json:"proof,omitempty"`
}

type TransitionTaskRequest struct {
	TaskID      string `json:"task_id"`
	TargetState string `json:"target_state"`
	// HustlerID assigns someone other than the caller on accept. Admin only.
	HustlerID string `json:"hustler_id,omitempty"`
}

type TransitionTaskResponse struct {
	Task *Task `json:"task"`
}

type SubmitProofRequest struct {
	TaskID            string   `json:"task_id"`
	Description       string   `json:"description,omitempty"`
	PhotoURLs         []string `json:"photo_urls,omitempty"`
	BeforeAfterMarked bool     `json:"before_after_marked,omitempty"`
}

type SubmitProofResponse struct {
	Proof *Proof `json:"proof"`
}

type ReviewProofRequest struct {
	ProofID         string `json:"proof_id"`
	Decision        string `json:"decision"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

type ReviewProofResponse struct {
	Proof *Proof `json:"proof"`
}

type TransitionEscrowRequest struct {
	TaskID       string `json:"task_id"`
	TargetState  string `json:"target_state"`
	PaymentEvent string `json:"payment_event,omitempty"`
}

type TransitionEscrowResponse struct {
	Escrow *Escrow `json:"escrow"`
}

type ResolveDisputeRequest struct {
	TaskID       string `json:"task_id"`
	Resolution   string `json:"resolution"`
	SplitPercent int32  `json:"split_percent,omitempty"`
}

type ResolveDisputeResponse struct {
	Task   *Task   `json:"task"`
	Escrow *Escrow `json:"escrow"`
}

type QuestionResponse struct {
	QuestionID string `json:"question_id"`
	AnswerID   string `json:"answer_id"`
}

type InferRoleRequest struct {
	Responses []QuestionResponse `json:"responses"`
}

type InferRoleResponse struct {
	Role         string `json:"role"`
	Confidence   string `json:"confidence"`
	ClientScore  int32  `json:"client_score"`
	HustlerScore int32  `json:"hustler_score"`
	Answered     int32  `json:"answered"`
}
