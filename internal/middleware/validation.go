// internal/middleware/validation.go
package middleware

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	lifecyclev1 "github.com/gurkanbulca/hustlemarket/api/lifecycle/v1"
	"github.com/gurkanbulca/hustlemarket/internal/lifecycle"
)

// ValidationConfig holds validation configuration
type ValidationConfig struct {
	MaxDescriptionLength     int
	MaxRejectionReasonLength int
	MaxPhotos                int
	MaxPhotoURLLength        int
	MaxResponses             int
}

// DefaultValidationConfig returns default validation configuration
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		MaxDescriptionLength:     5000,
		MaxRejectionReasonLength: 1000,
		MaxPhotos:                20,
		MaxPhotoURLLength:        2048,
		MaxResponses:             50,
	}
}

// ValidationInterceptor rejects malformed requests before they reach the service
type ValidationInterceptor struct {
	config *ValidationConfig
}

// NewValidationInterceptor creates a new validation interceptor
func NewValidationInterceptor(config *ValidationConfig) *ValidationInterceptor {
	if config == nil {
		config = DefaultValidationConfig()
	}
	return &ValidationInterceptor{
		config: config,
	}
}

// Unary returns a unary server interceptor for request validation
func (v *ValidationInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if problems := v.validateRequest(req); len(problems) > 0 {
			return nil, status.Error(codes.InvalidArgument, strings.Join(problems, "; "))
		}
		return handler(ctx, req)
	}
}

// validateRequest returns every problem found in req
func (v *ValidationInterceptor) validateRequest(req interface{}) []string {
	switch r := req.(type) {
	case *lifecyclev1.CreateTaskRequest:
		return v.validateCreateTask(r)
	case *lifecyclev1.GetTaskRequest:
		return validateID("task_id", r.TaskID)
	case *lifecyclev1.TransitionTaskRequest:
		return v.validateTransitionTask(r)
	case *lifecyclev1.SubmitProofRequest:
		return v.validateSubmitProof(r)
	case *lifecyclev1.ReviewProofRequest:
		return v.validateReviewProof(r)
	case *lifecyclev1.TransitionEscrowRequest:
		return v.validateTransitionEscrow(r)
	case *lifecyclev1.ResolveDisputeRequest:
		return v.validateResolveDispute(r)
	case *lifecyclev1.InferRoleRequest:
		return v.validateInferRole(r)
	}
	return nil
}

func (v *ValidationInterceptor) validateCreateTask(req *lifecyclev1.CreateTaskRequest) []string {
	var problems []string
	if req.Deadline == nil {
		problems = append(problems, "deadline is required")
	} else if err := req.Deadline.CheckValid(); err != nil {
		problems = append(problems, "deadline is not a valid timestamp")
	}
	if req.Amount <= 0 {
		problems = append(problems, "amount must be positive")
	}
	return problems
}

func (v *ValidationInterceptor) validateTransitionTask(req *lifecyclev1.TransitionTaskRequest) []string {
	problems := validateID("task_id", req.TaskID)
	if !lifecycle.TaskState(req.TargetState).Valid() {
		problems = append(problems, fmt.Sprintf("unknown task state %q", req.TargetState))
	}
	if len(req.HustlerID) > 255 {
		problems = append(problems, "hustler_id too long (max 255 characters)")
	}
	return problems
}

func (v *ValidationInterceptor) validateSubmitProof(req *lifecyclev1.SubmitProofRequest) []string {
	problems := validateID("task_id", req.TaskID)
	if utf8.RuneCountInString(req.Description) > v.config.MaxDescriptionLength {
		problems = append(problems, fmt.Sprintf("description too long (max %d characters)", v.config.MaxDescriptionLength))
	}
	if len(req.PhotoURLs) > v.config.MaxPhotos {
		problems = append(problems, fmt.Sprintf("too many photos (max %d)", v.config.MaxPhotos))
	}
	for i, raw := range req.PhotoURLs {
		if err := v.validatePhotoURL(raw); err != nil {
			problems = append(problems, fmt.Sprintf("photo_urls[%d]: %s", i, err))
		}
	}
	return problems
}

func (v *ValidationInterceptor) validateReviewProof(req *lifecyclev1.ReviewProofRequest) []string {
	problems := validateID("proof_id", req.ProofID)
	switch lifecycle.ReviewDecision(req.Decision) {
	case lifecycle.DecisionAccept, lifecycle.DecisionReject:
	default:
		problems = append(problems, fmt.Sprintf("unknown decision %q", req.Decision))
	}
	if utf8.RuneCountInString(req.RejectionReason) > v.config.MaxRejectionReasonLength {
		problems = append(problems, fmt.Sprintf("rejection_reason too long (max %d characters)", v.config.MaxRejectionReasonLength))
	}
	return problems
}

func (v *ValidationInterceptor) validateTransitionEscrow(req *lifecyclev1.TransitionEscrowRequest) []string {
	problems := validateID("task_id", req.TaskID)
	if !lifecycle.EscrowState(req.TargetState).Valid() {
		problems = append(problems, fmt.Sprintf("unknown escrow state %q", req.TargetState))
	}
	return problems
}

func (v *ValidationInterceptor) validateResolveDispute(req *lifecyclev1.ResolveDisputeRequest) []string {
	problems := validateID("task_id", req.TaskID)
	if !lifecycle.DisputeResolution(req.Resolution).Valid() {
		problems = append(problems, fmt.Sprintf("unknown resolution %q", req.Resolution))
	}
	if req.SplitPercent < 0 || req.SplitPercent > 100 {
		problems = append(problems, "split_percent must be between 0 and 100")
	}
	return problems
}

func (v *ValidationInterceptor) validateInferRole(req *lifecyclev1.InferRoleRequest) []string {
	if len(req.Responses) > v.config.MaxResponses {
		return []string{fmt.Sprintf("too many responses (max %d)", v.config.MaxResponses)}
	}
	return nil
}

func (v *ValidationInterceptor) validatePhotoURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("empty url")
	}
	if len(raw) > v.config.MaxPhotoURLLength {
		return fmt.Errorf("url too long (max %d characters)", v.config.MaxPhotoURLLength)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("not an absolute http(s) url")
	}
	return nil
}

func validateID(field, id string) []string {
	if id == "" {
		return []string{field + " is required"}
	}
	if err := uuid.Validate(id); err != nil {
		return []string{"invalid " + field + " format"}
	}
	return nil
}
