package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/petr-muller/jira-reminder/internal/config"
	"github.com/petr-muller/jira-reminder/internal/flagutil"
	"github.com/petr-muller/jira-reminder/internal/instance"
	"github.com/petr-muller/jira-reminder/internal/logging"
	"github.com/petr-muller/jira-reminder/internal/reminder/issue"
	"github.com/petr-muller/jira-reminder/internal/reminder/jira"
	"github.com/petr-muller/jira-reminder/internal/reminder/jql"
	"github.com/petr-muller/jira-reminder/internal/reminder/notify"
	"github.com/petr-muller/jira-reminder/internal/reminder/refresh"
	"github.com/petr-muller/jira-reminder/internal/reminder/report"
	"github.com/petr-muller/jira-reminder/internal/reminder/service"
	"github.com/petr-muller/jira-reminder/internal/reminder/ui"
)

var jiraOptions flagutil.JiraOptions

type runOptions struct {
	tui     bool
	logging bool
	newLog  bool
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "jira-reminder",
		Short: "Remind yourself of JIRA issues that are due",
		Long: `JIRA Reminder watches the JIRA issues assigned to you and reminds you of them.

It keeps three lists up to date (overdue, due today, due tomorrow), shows a
digest of today's tasks in the morning and nags you in the late afternoon
when nothing was closed today.`,
	}

	jiraOptions.AddPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newJQLCmd(),
		newConfigCmd(),
	)

	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		logrus.WithError(err).Fatal("command failed")
	}
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the reminder until interrupted",
		Long: `Run the reminder service. Buckets are refreshed hourly, the schedule is
evaluated every minute and reminders are shown as desktop notifications.
With --tui the buckets are also shown in an interactive dashboard.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReminder(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.tui, "tui", false, "Show the interactive dashboard")
	cmd.Flags().BoolVar(&opts.logging, "logging", false, "Enable debug logging to the console (when it is a terminal) and to the log file")
	cmd.Flags().BoolVar(&opts.newLog, "new-log", false, "Truncate the log file instead of appending to it")

	return cmd
}

func newStatusCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print overdue, today and tomorrow issues once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !report.ValidFormat(output) {
				return fmt.Errorf("invalid --output %q, must be one of %v", output, report.Formats)
			}
			return runStatus(cmd.Context(), cmd.OutOrStdout(), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table or yaml")

	return cmd
}

func newJQLCmd() *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:   "jql",
		Short: "Print the JQL queries the reminder runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJQL(cmd.Context(), cmd.OutOrStdout(), validate)
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "Run every query once against JIRA to check it is accepted")

	return cmd
}

type session struct {
	config  *config.Config
	client  *jira.Client
	queries *jql.Builder
}

func newSession() (*session, error) {
	cfg, err := jiraOptions.LoadValid()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	clientOptions, err := cfg.ClientOptions()
	if err != nil {
		return nil, err
	}
	client, err := jira.NewClient(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("cannot create JIRA client: %w", err)
	}

	return &session{
		config:  cfg,
		client:  client,
		queries: jql.NewBuilder(cfg.JQLOptions()),
	}, nil
}

func runReminder(ctx context.Context, opts runOptions) error {
	dataDir, err := config.EnsureDataDir()
	if err != nil {
		return fmt.Errorf("cannot determine data directory: %w", err)
	}

	// The dashboard owns the terminal
	console := logging.Terminal(os.Stderr)
	if opts.tui {
		console = nil
	}
	logFile, err := logging.Setup(logrus.StandardLogger(), logging.Options{
		Debug:   opts.logging,
		NewLog:  opts.newLog,
		Dir:     dataDir,
		Console: console,
	})
	if err != nil {
		return err
	}
	defer logFile.Close()

	s, err := newSession()
	if err != nil {
		return err
	}

	lock, err := instance.Acquire(dataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logrus.WithError(err).Warn("Failed to release instance lock")
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.WithFields(logrus.Fields{
		"jira":     s.client.JiraURL(),
		"assignee": s.config.AssigneeEmail,
		"tui":      opts.tui,
	}).Info("Starting reminder")

	desktop := notify.NewDesktop()
	defer desktop.Wait()

	if opts.tui {
		return runDashboard(ctx, s, desktop)
	}

	svc, err := service.NewService(service.Options{
		Client:   s.client,
		Queries:  s.queries,
		Assignee: s.config.AssigneeEmail,
		Display:  refresh.DisplayFunc(logBucket),
		Sink:     notify.Tee{notify.NewLog(), desktop},
	})
	if err != nil {
		return fmt.Errorf("cannot create service: %w", err)
	}
	return svc.Run(ctx)
}

func runDashboard(ctx context.Context, s *session, desktop *notify.Desktop) error {
	bridge := &ui.Bridge{}
	svc, err := service.NewService(service.Options{
		Client:   s.client,
		Queries:  s.queries,
		Assignee: s.config.AssigneeEmail,
		Display:  bridge,
		Sink:     notify.Tee{notify.NewLog(), desktop, bridge},
	})
	if err != nil {
		return fmt.Errorf("cannot create service: %w", err)
	}

	model := ui.NewModel(svc, s.client, ui.OpenURL)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(program)

	svcCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	svcDone := make(chan error, 1)
	go func() {
		svcDone <- svc.Run(svcCtx)
	}()

	_, err = program.Run()
	cancel()
	if svcErr := <-svcDone; svcErr != nil {
		logrus.WithError(svcErr).Warn("Reminder service failed")
	}

	if err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return fmt.Errorf("cannot run TUI: %w", err)
	}
	return nil
}

func logBucket(b issue.Bucket) {
	keys := make([]string, 0, len(b.Issues))
	for _, i := range b.Issues {
		keys = append(keys, i.Key)
	}
	logrus.WithFields(logrus.Fields{
		"bucket": string(b.Kind),
		"count":  len(b.Issues),
		"issues": keys,
	}).Info("Bucket updated")
}

func runStatus(ctx context.Context, out io.Writer, format string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	collector := &report.Collector{}
	coordinator := refresh.New(refresh.Config{
		Searcher: s.client,
		Links:    s.client,
		Queries:  s.queries,
		Assignee: s.config.AssigneeEmail,
		Display:  collector,
		Sink:     notify.NewLog(),
	})
	if err := coordinator.Refresh(ctx, true); err != nil {
		return err
	}

	return report.Write(out, format, report.Snapshot{
		GeneratedAt: time.Now(),
		Assignee:    s.config.AssigneeEmail,
		Buckets:     collector.Buckets(),
	})
}

func runJQL(ctx context.Context, out io.Writer, validate bool) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	coordinator := refresh.New(refresh.Config{
		Searcher: s.client,
		Links:    s.client,
		Queries:  s.queries,
		Assignee: s.config.AssigneeEmail,
	})

	type namedQuery struct {
		name string
		jql  string
	}
	var queries []namedQuery
	for _, kind := range issue.Kinds {
		queries = append(queries, namedQuery{name: kind.Title(), jql: coordinator.Query(kind)})
	}
	queries = append(queries, namedQuery{name: "Closed today", jql: s.queries.ClosedToday(s.config.AssigneeEmail)})

	var failed []error
	for _, q := range queries {
		fmt.Fprintf(out, "%s:\n  %s\n  More: %s\n", q.name, q.jql, s.client.SearchURL(q.jql))
		if !validate {
			fmt.Fprintln(out)
			continue
		}
		if err := s.client.ValidateJQL(ctx, q.jql); err != nil {
			fmt.Fprintf(out, "  Invalid: %v\n\n", err)
			failed = append(failed, fmt.Errorf("%s: %w", q.name, err))
			continue
		}
		fmt.Fprintf(out, "  Valid\n\n")
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d queries were rejected: %w", len(failed), len(queries), errors.Join(failed...))
	}
	return nil
}
