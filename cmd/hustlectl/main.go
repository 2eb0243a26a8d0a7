// Package main provides hustlectl, a command line client for the lifecycle
// service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	lifecyclev1 "github.com/gurkanbulca/hustlemarket/api/lifecycle/v1"
)

const appName = "hustlectl"

type globalFlags struct {
	addr    string
	token   string
	timeout time.Duration
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Drive tasks, proofs and escrows through their lifecycle",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&g.addr, "addr", envOr("HUSTLE_ADDR", "localhost:50051"), "Server address")
	cmd.PersistentFlags().StringVar(&g.token, "token", os.Getenv("HUSTLE_TOKEN"), "Bearer access token")
	cmd.PersistentFlags().DurationVar(&g.timeout, "timeout", 10*time.Second, "Per-call timeout")

	cmd.AddCommand(
		tokenCmd(),
		taskCmd(g),
		proofCmd(g),
		escrowCmd(g),
		disputeCmd(g),
		onboardingCmd(g),
	)
	return cmd
}

// call dials the server, runs fn with an authenticated context and prints
// its result as JSON.
func (g *globalFlags) call(cmd *cobra.Command, fn func(context.Context, *lifecyclev1.LifecycleServiceClient) (any, error)) error {
	conn, err := grpc.NewClient(g.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connect to %s: %w", g.addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
	defer cancel()
	if g.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+g.token)
	}

	resp, err := fn(ctx, lifecyclev1.NewLifecycleServiceClient(conn))
	if err != nil {
		return err
	}
	return printJSON(cmd, resp)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
