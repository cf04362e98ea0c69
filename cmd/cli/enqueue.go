package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oxenqueue/oxenqueue/internal/database"
	"github.com/oxenqueue/oxenqueue/internal/queue"
)

var (
	enqueueJobType   string
	enqueueBody      string
	enqueuePriority  int64
	enqueueUniqueKey uint32
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Enqueue a single job",
	RunE:  runEnqueue,
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueJobType, "job-type", "", "job type to enqueue (required)")
	enqueueCmd.Flags().StringVar(&enqueueBody, "body", "{}", "JSON-encoded job body")
	enqueueCmd.Flags().Int64Var(&enqueuePriority, "priority", 0, "priority; 0 defaults to enqueue time in milliseconds")
	enqueueCmd.Flags().Uint32Var(&enqueueUniqueKey, "unique-key", 0, "deduplication key; 0 means none")
	enqueueCmd.MarkFlagRequired("job-type")
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	if !json.Valid([]byte(enqueueBody)) {
		return fmt.Errorf("--body is not valid JSON: %s", enqueueBody)
	}

	store, err := queue.NewStore(context.Background(), database.Pool(), cfg.Queue.ToQueueConfig())
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}

	in := queue.EnqueueInput{
		JobType:  enqueueJobType,
		Body:     json.RawMessage(enqueueBody),
		Priority: enqueuePriority,
	}
	if enqueueUniqueKey != 0 {
		in.UniqueKey = &enqueueUniqueKey
	}

	result, err := store.Enqueue(context.Background(), in)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	if result.Deduplicated {
		fmt.Println("deduplicated: a live job already holds this unique key")
		return nil
	}
	fmt.Printf("enqueued job id=%d\n", result.ID)
	return nil
}
