// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-coordinator/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show a task's status, critique history, and audit log",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Bool("json", false, "print the full task as JSON")
	statusCmd.Flags().Bool("report", false, "also print the current report")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	task, err := st.GetTask(context.Background(), args[0])
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(task)
	}

	printStatus(os.Stdout, task)
	if withReport, _ := cmd.Flags().GetBool("report"); withReport && task.CurrentReport != nil {
		fmt.Fprintln(os.Stdout)
		printReport(os.Stdout, task.CurrentReport)
	}
	return nil
}

func printStatus(w io.Writer, task *types.ResearchTask) {
	fmt.Fprintf(w, "Task:      %s\n", task.ID)
	fmt.Fprintf(w, "Topic:     %s\n", task.Query.Topic)
	fmt.Fprintf(w, "Status:    %s\n", describeOutcome(task))
	fmt.Fprintf(w, "Created:   %s\n", task.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Updated:   %s\n", task.UpdatedAt.Format(time.RFC3339))
	if task.CompletedAt != nil {
		fmt.Fprintf(w, "Completed: %s\n", task.CompletedAt.Format(time.RFC3339))
	}
	if task.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", task.Error)
	}

	if fbs := task.Feedback.All(); len(fbs) > 0 {
		fmt.Fprintln(w, "\nCritiques:")
		for i, fb := range fbs {
			fmt.Fprintf(w, "  %d. score %.1f (%d weaknesses, %d priority issues)\n",
				i+1, fb.OverallScore, len(fb.Weaknesses), len(fb.PriorityIssues))
		}
	}

	if msgs := task.Messages.All(); len(msgs) > 0 {
		fmt.Fprintln(w, "\nAudit log:")
		for _, m := range msgs {
			fmt.Fprintf(w, "  %s  %-10s  %s\n", m.Timestamp.Format("15:04:05"), m.AgentType, m.Message)
		}
	}
}
