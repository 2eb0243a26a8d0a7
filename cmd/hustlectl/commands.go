package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/timestamppb"

	lifecyclev1 "github.com/gurkanbulca/hustlemarket/api/lifecycle/v1"
	"github.com/gurkanbulca/hustlemarket/pkg/auth"
)

func tokenCmd() *cobra.Command {
	var (
		secret string
		userID string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token signed with the server secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			tm := auth.NewTokenManager(secret, ttl)
			token, expiresIn, err := tm.GenerateAccessToken(userID, role)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"access_token": token,
				"expires_in":   expiresIn,
			})
		},
	}

	cmd.Flags().StringVar(&secret, "secret", envOr("JWT_ACCESS_SECRET", "dev-access-secret-change-in-production"), "HMAC signing secret")
	cmd.Flags().StringVar(&userID, "user", "", "User id to embed")
	cmd.Flags().StringVar(&role, "role", auth.RoleMember, "Role (member or admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func taskCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Create, inspect and move tasks"}

	var (
		amount int64
		due    time.Duration
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Post a task owned by the caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.call(cmd, func(ctx context.Context, c *lifecyclev1.LifecycleServiceClient) (any, error) {
				return c.CreateTask(ctx, &lifecyclev1.CreateTaskRequest{
					Deadline: timestamppb.New(time.Now().Add(due)),
					Amount:   amount,
				})
			})
		},
	}
	create.Flags().Int64Var(&amount, "amount", 0, "Price in minor currency units")
	create.Flags().DurationVar(&due, "due-in", 72*time.Hour, "Deadline relative to now")
	_ = create.MarkFlagRequired("amount")

	get := &cobra.Command{
		Use:   "get TASK_ID",
		Short: "Show a task with its escrow and latest proof",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.call(cmd, func(ctx context.Context, c *lifecyclev1.LifecycleServiceClient) (any, error) {
				return c.GetTask(ctx, &lifecyclev1.GetTaskRequest{TaskID: args[0]})
			})
		},
	}

	var hustlerID string
	transition := &cobra.Command{
		Use:   "transition TASK_ID STATE",
		Short: "Move a task to STATE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.call(cmd, func(ctx context.Context, c *lifecyclev1.LifecycleServiceClient) (any, error) {
				return c.TransitionTask(ctx, &lifecyclev1.TransitionTaskRequest{
					TaskID:      args[0],
					TargetState: strings.ToUpper(args[1]),
					HustlerID:   hustlerID,
				})
			})
		},
	}
	transition.Flags().StringVar(&hustlerID, "hustler", "", "Hustler to assign on accept (admin only)")

	cmd.AddCommand(create, get, transition)
	return cmd
}

func proofCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "proof", Short: "Submit and review completion proofs"}

	var (
		description string
		photos      []string
		marked      bool
	)
	submit := &cobra.Command{
		Use:   "submit TASK_ID",
		Short: "Submit proof for an accepted task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.call(cmd, func(ctx context.Context, c *lifecyclev1.LifecycleServiceClient) (any, error) {
				return c.SubmitProof(ctx, &lifecyclev1.SubmitProofRequest{
					TaskID:            args[0],
					Description:       description,
					PhotoURLs:         photos,
					BeforeAfterMarked: marked,
				})
			})
		},
	}
	submit.Flags().StringVar(&description, "description", "", "What was done")
	submit.Flags().StringSliceVar(&photos, "photo", nil, "Photo URL, repeatable")
	submit.Flags().BoolVar(&marked, "before-after", false, "Photos are marked before/after")

	var reason string
	review := &cobra.Command{
		Use:   "review PROOF_ID accept|reject",
		Short: "Accept or reject a proof",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.call(cmd, func(ctx context.Context, c *lifecyclev1.LifecycleServiceClient) (any, error) {
				return c.ReviewProof(ctx, &lifecyclev1.ReviewProofRequest{
					ProofID:         args[0],
					Decision:        strings.ToUpper(args[1]),
					RejectionReason: reason,
				})
			})
		},
	}
	review.Flags().StringVar(&reason, "reason", "", "Rejection reason")

	cmd.AddCommand(submit, review)
	return cmd
}

func escrowCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "escrow", Short: "Apply payment events to escrows"}

	var event string
	transition := &cobra.Command{
		Use:   "transition TASK_ID STATE",
		Short: "Move the escrow behind a task to STATE (admin only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.call(cmd, func(ctx context.Context, c *lifecyclev1.LifecycleServiceClient) (any, error) {
				return c.TransitionEscrow(ctx, &lifecyclev1.TransitionEscrowRequest{
					TaskID:       args[0],
					TargetState:  strings.ToUpper(args[1]),
					PaymentEvent: event,
				})
			})
		},
	}
	transition.Flags().StringVar(&event, "payment-event", "", "Processor event, e.g. payment_intent.succeeded")

	cmd.AddCommand(transition)
	return cmd
}

func disputeCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "dispute", Short: "Settle disputes"}

	var split int32
	resolve := &cobra.Command{
		Use:   "resolve TASK_ID hustler_wins|client_wins|split",
		Short: "Resolve a dispute (admin only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.call(cmd, func(ctx context.Context, c *lifecyclev1.LifecycleServiceClient) (any, error) {
				return c.ResolveDispute(ctx, &lifecyclev1.ResolveDisputeRequest{
					TaskID:       args[0],
					Resolution:   strings.ToUpper(args[1]),
					SplitPercent: split,
				})
			})
		},
	}
	resolve.Flags().Int32Var(&split, "split", 0, "Hustler share in percent for a split")

	cmd.AddCommand(resolve)
	return cmd
}

func onboardingCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "onboarding", Short: "Onboarding helpers"}

	infer := &cobra.Command{
		Use:   "infer QUESTION=ANSWER...",
		Short: "Infer a role from onboarding answers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			responses, err := parseResponses(args)
			if err != nil {
				return err
			}
			return g.call(cmd, func(ctx context.Context, c *lifecyclev1.LifecycleServiceClient) (any, error) {
				return c.InferRole(ctx, &lifecyclev1.InferRoleRequest{Responses: responses})
			})
		},
	}

	cmd.AddCommand(infer)
	return cmd
}

func parseResponses(args []string) ([]lifecyclev1.QuestionResponse, error) {
	responses := make([]lifecyclev1.QuestionResponse, 0, len(args))
	for _, arg := range args {
		question, answer, ok := strings.Cut(arg, "=")
		if !ok || question == "" || answer == "" {
			return nil, fmt.Errorf("invalid answer %q, want QUESTION=ANSWER", arg)
		}
		responses = append(responses, lifecyclev1.QuestionResponse{QuestionID: question, AnswerID: answer})
	}
	return responses, nil
}
