// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-coordinator/internal/store"
	"github.com/pdiddy/research-coordinator/pkg/types"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List research tasks, newest first",
	RunE:  runList,
}

func init() {
	listCmd.Flags().String("status", "", "only tasks in this status: pending, researching, critiquing, revising, completed, failed")
	listCmd.Flags().Int("limit", 0, "maximum tasks to list (0 = default 50)")
	listCmd.Flags().Bool("json", false, "output tasks as JSON")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	if status != "" && !types.TaskStatus(status).Valid() {
		return fmt.Errorf("unknown status %q", status)
	}
	limit, _ := cmd.Flags().GetInt("limit")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	tasks, err := st.ListTasks(context.Background(), store.ListOptions{Status: types.TaskStatus(status), Limit: limit})
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}
	formatTaskTable(os.Stdout, tasks)
	return nil
}

func formatTaskTable(w io.Writer, tasks []store.TaskSummary) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks found.")
		return
	}

	fmt.Fprintf(w, "%-36s  %-11s  %-5s  %-7s  %-16s  %s\n",
		"ID", "Status", "Score", "Retries", "Created", "Topic")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for _, t := range tasks {
		score := "-"
		if t.LastScore != nil {
			score = fmt.Sprintf("%.1f", *t.LastScore)
		}
		topic := t.Topic
		if r := []rune(topic); len(r) > 40 {
			topic = string(r[:37]) + "..."
		}
		fmt.Fprintf(w, "%-36s  %-11s  %-5s  %d/%-5d  %-16s  %s\n",
			t.ID, t.Status, score, t.RetryCount, t.MaxRetries, t.CreatedAt.Format("2006-01-02 15:04"), topic)
	}

	fmt.Fprintf(w, "\n%d tasks\n", len(tasks))
}
