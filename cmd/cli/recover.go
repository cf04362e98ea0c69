package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oxenqueue/oxenqueue/internal/database"
	"github.com/oxenqueue/oxenqueue/internal/queue"
)

var (
	recoverJobType    string
	recoverThreshold  time.Duration
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Force a stuck-job recovery sweep outside the normal interval",
	RunE:  runRecover,
}

func init() {
	recoverCmd.Flags().StringVar(&recoverJobType, "job-type", "", "job type to sweep (required)")
	recoverCmd.Flags().DurationVar(&recoverThreshold, "threshold", time.Minute, "age past which a processing row is considered stuck")
	recoverCmd.MarkFlagRequired("job-type")
	rootCmd.AddCommand(recoverCmd)
}

func runRecover(cmd *cobra.Command, args []string) error {
	store, err := queue.NewStore(context.Background(), database.Pool(), cfg.Queue.ToQueueConfig())
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}

	n, err := store.RecoverStuck(context.Background(), recoverJobType, recoverThreshold)
	if err != nil {
		return fmt.Errorf("recover stuck jobs: %w", err)
	}
	fmt.Printf("recovered %d job(s)\n", n)
	return nil
}
