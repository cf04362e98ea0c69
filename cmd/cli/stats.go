package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oxenqueue/oxenqueue/internal/database"
)

var statsJobType string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print job counts by status",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsJobType, "job-type", "", "limit to a single job type")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	table := cfg.Queue.Table
	if table == "" {
		table = "oxen_queue"
	}

	sql := fmt.Sprintf(`SELECT status, count(*) FROM %s`, table)
	args2 := []any{}
	if statsJobType != "" {
		sql += ` WHERE job_type = $1`
		args2 = append(args2, statsJobType)
	}
	sql += ` GROUP BY status ORDER BY status`

	rows, err := database.Pool().Query(context.Background(), sql, args2...)
	if err != nil {
		return fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return fmt.Errorf("scan stats row: %w", err)
		}
		fmt.Printf("%-12s %d\n", status, count)
	}
	return rows.Err()
}
