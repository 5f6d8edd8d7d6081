// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-coordinator/internal/coordinator"
	"github.com/pdiddy/research-coordinator/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Research a topic and produce a critiqued report",
	Long: `Run gathers documents for a topic and its subtopics from every configured
data source, drafts a report, and loops critique and revision until the
critique score reaches the threshold or the revision budget is spent.

The query comes from --topic/--subtopic flags or from a YAML file given with
--query-file. Flags override values in the file.`,
	RunE: runResearch,
}

func init() {
	addQueryFlags(runCmd)
	addRunOptionFlags(runCmd)
	runCmd.Flags().Bool("json", false, "print the finished task as JSON")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while running (e.g. :9090)")

	rootCmd.AddCommand(runCmd)
}

// addQueryFlags registers the flags read by queryFromFlags.
func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("topic", "", "main research topic")
	cmd.Flags().StringArray("subtopic", nil, "subtopic to explore (repeatable)")
	cmd.Flags().Int("depth", types.DefaultDepthLevel, "research depth from 1 (overview) to 5 (most detailed)")
	cmd.Flags().String("requirements", "", "free-form instructions for the report")
	cmd.Flags().String("query-file", "", "YAML file holding the query and optional max_retries/threshold")
}

func addRunOptionFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-retries", 0, "maximum revisions (default from config, 3)")
	cmd.Flags().Float64("threshold", 0, "critique score needed to accept a report (default from config, 7.0)")
	cmd.Flags().Duration("timeout", 0, "bound on the whole run (default from config, 10m)")
}

func runResearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return err
	}
	query, opts, err := queryFromFlags(cmd, coordinator.RunOptionsFromConfig(cfg.Coordinator))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var metrics *coordinator.Metrics
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = coordinator.NewMetrics(reg)
		shutdown := serveMetrics(addr, reg)
		defer shutdown()
	}

	a, err := newApp(cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer a.close()

	task, runErr := a.coordinator.Execute(ctx, query, opts)
	if task == nil {
		return runErr
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(task); err != nil {
			return err
		}
	} else {
		printTaskResult(os.Stdout, task)
	}
	return runErr
}

// queryFromFlags builds the query and run options. Values from --query-file
// apply first and explicitly set flags override them.
func queryFromFlags(cmd *cobra.Command, opts coordinator.RunOptions) (types.ResearchQuery, coordinator.RunOptions, error) {
	var query types.ResearchQuery
	flags := cmd.Flags()
	thresholdSet := false

	if path, _ := flags.GetString("query-file"); path != "" {
		qf, err := types.LoadQueryFile(path)
		if err != nil {
			return query, opts, err
		}
		query = qf.Query
		if qf.MaxRetries != nil {
			opts.MaxRetries = *qf.MaxRetries
		}
		if qf.Threshold != nil {
			opts.Threshold = *qf.Threshold
			thresholdSet = true
		}
	}

	if flags.Changed("topic") || query.Topic == "" {
		query.Topic, _ = flags.GetString("topic")
	}
	if flags.Changed("subtopic") {
		query.Subtopics, _ = flags.GetStringArray("subtopic")
	}
	if flags.Changed("depth") || query.DepthLevel == 0 {
		query.DepthLevel, _ = flags.GetInt("depth")
	}
	if flags.Changed("requirements") {
		query.Requirements, _ = flags.GetString("requirements")
	}
	if flags.Changed("max-retries") {
		opts.MaxRetries, _ = flags.GetInt("max-retries")
	}
	if flags.Changed("threshold") {
		opts.Threshold, _ = flags.GetFloat64("threshold")
		thresholdSet = true
	}
	if flags.Changed("timeout") {
		opts.Timeout, _ = flags.GetDuration("timeout")
	}

	query = query.Normalize()
	if query.Topic == "" {
		return query, opts, fmt.Errorf("provide --topic or --query-file")
	}
	if err := query.Validate(); err != nil {
		return query, opts, err
	}
	if opts.MaxRetries < 0 {
		return query, opts, fmt.Errorf("max retries must be >= 0, got %d", opts.MaxRetries)
	}
	if thresholdSet {
		if err := checkThreshold(opts.Threshold); err != nil {
			return query, opts, err
		}
	}
	return query, opts, nil
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", slog.String("addr", addr), slog.Any("error", err))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// printTaskResult writes the outcome line and the current report.
func printTaskResult(w io.Writer, task *types.ResearchTask) {
	fmt.Fprintf(w, "Task %s: %s\n", task.ID, describeOutcome(task))
	if task.Status == types.StatusFailed {
		fmt.Fprintf(w, "Error: %s\n", task.Error)
	}
	if task.CurrentReport == nil {
		return
	}
	fmt.Fprintln(w)
	printReport(w, task.CurrentReport)
}

// describeOutcome summarizes a terminal task in one line.
func describeOutcome(task *types.ResearchTask) string {
	var b strings.Builder
	b.WriteString(string(task.Status))
	if last, ok := task.Messages.Last(); ok {
		if outcome, ok := last.Metadata["outcome"].(string); ok && task.Status == types.StatusCompleted {
			fmt.Fprintf(&b, " (%s)", outcome)
		}
	}
	if fb, ok := task.Feedback.Last(); ok {
		fmt.Fprintf(&b, ", score %.1f", fb.OverallScore)
	}
	fmt.Fprintf(&b, ", %d of %d revisions", task.RetryCount, task.MaxRetries)
	return b.String()
}

func printReport(w io.Writer, r *types.ResearchReport) {
	fmt.Fprintf(w, "# %s\n\n", r.Title)
	if r.Abstract != "" {
		fmt.Fprintf(w, "## Abstract\n\n%s\n\n", r.Abstract)
	}
	for _, s := range r.Sections {
		fmt.Fprintf(w, "## %s\n\n%s\n\n", s.Heading, s.Body)
	}
	if r.Conclusion != "" {
		fmt.Fprintf(w, "## Conclusion\n\n%s\n\n", r.Conclusion)
	}
	if len(r.Sources) > 0 {
		fmt.Fprintln(w, "## Sources")
		fmt.Fprintln(w)
		for i, src := range r.Sources {
			line := fmt.Sprintf("%d. %s", i+1, src.Title)
			if src.URL != "" {
				line += " <" + src.URL + ">"
			}
			if src.Origin != "" {
				line += " [" + string(src.Origin) + "]"
			}
			fmt.Fprintln(w, line)
		}
	}
}
