package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"casedocs/internal/app"
	"casedocs/internal/masterdata"
	"casedocs/internal/pdffill/generator"
	"casedocs/internal/pdffill/mapping"
	"casedocs/internal/platform/config"
	"casedocs/internal/platform/logger"
	"casedocs/pkg/requestcontext"
)

// cliActor is the principal used for admin operations run from the CLI.
var cliActor = requestcontext.Principal{ID: "worker-cli", Roles: []string{requestcontext.RoleAdmin}}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "worker",
		Short: "Process casedocs PDF jobs and maintain document locks",
		Long: `Operational commands for the casedocs pipeline.

Available subcommands:
  run     - Process one queued job, or keep polling with --loop
  reclaim - Requeue jobs stuck in processing
  locks   - Document lock maintenance
  fill    - Fill a template offline from a JSON record`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newReclaimCmd(), newLocksCmd(), newFillCmd())
	return root
}

// withApp loads configuration, builds the app and cancels on SIGINT/SIGTERM.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Environment(), os.Getenv("LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialise: %w", err)
	}
	defer a.Close(context.Background())
	return fn(ctx, a)
}

func newRunCmd() *cobra.Command {
	var (
		loop     bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a worker pass",
		Long: `Claim the oldest queued job, render it, upload the result and record the
outcome. With --loop the pass repeats every --interval until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if loop {
					every := interval
					if every == 0 {
						every = a.Config.Worker.Interval
					}
					return a.Worker.Run(ctx, every)
				}
				res, err := a.Worker.RunOnce(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().BoolVar(&loop, "loop", false, "Keep polling until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Delay between passes (default WORKER_INTERVAL)")
	return cmd
}

func newReclaimCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Requeue jobs stuck in processing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				age := olderThan
				if age == 0 {
					age = a.Config.Worker.ReclaimAfter
				}
				n, err := a.Jobs.ReclaimStale(ctx, age)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"requeued": n, "older_than": age.String()})
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Processing age after which a job is requeued (default WORKER_RECLAIM_AFTER)")
	return cmd
}

func newLocksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locks",
		Short: "Document lock maintenance",
	}
	var timeout time.Duration
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Release locks held longer than --timeout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				ctx = requestcontext.WithActor(ctx, cliActor)
				res := a.Locks.CleanupExpired(ctx, timeout)
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if !res.Success {
					return fmt.Errorf("lock cleanup failed: %s", res.Reason)
				}
				return nil
			})
		},
	}
	cleanup.Flags().DurationVar(&timeout, "timeout", 0, "Lock age threshold (default LOCK_CLEANUP_THRESHOLD)")
	cmd.AddCommand(cleanup)
	return cmd
}

type fillOptions struct {
	template string
	record   string
	pdf      string
	out      string
}

func newFillCmd() *cobra.Command {
	var opts fillOptions
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill a template offline and print the coverage report",
		Long: `Fill a local PDF template from a JSON master record without touching any
database or bucket. The filled PDF is written to --out and the fill report,
including coverage, is printed as JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFill(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.template, "template", "", "Template type, e.g. poa-adult or family-tree")
	cmd.Flags().StringVar(&opts.record, "record", "", "Path to the master record JSON")
	cmd.Flags().StringVar(&opts.pdf, "pdf", "", "Path to the fillable PDF template")
	cmd.Flags().StringVar(&opts.out, "out", "", "Where to write the filled PDF")
	for _, name := range []string{"template", "record", "pdf", "out"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runFill(w io.Writer, opts fillOptions) error {
	tt, err := mapping.ParseTemplateType(opts.template)
	if err != nil {
		return err
	}
	rawRecord, err := os.ReadFile(opts.record)
	if err != nil {
		return fmt.Errorf("read record: %w", err)
	}
	var record masterdata.Record
	if err := json.Unmarshal(rawRecord, &record); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if record == nil {
		return errors.New("record must be a JSON object")
	}
	pdf, err := os.ReadFile(opts.pdf)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	tables, err := mapping.LoadEmbedded()
	if err != nil {
		return err
	}
	gen, err := generator.New(masterdata.NewInMemoryStore(), noTemplates{}, tables)
	if err != nil {
		return err
	}
	out, err := gen.FillBytes(pdf, tt, record)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.out, out.PDF, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return printJSON(w, struct {
		Template string `json:"template"`
		Coverage int    `json:"coverage"`
		Output   string `json:"output"`
		Report   any    `json:"report"`
	}{tt.String(), out.Result.Coverage(), opts.out, out.Result})
}

// noTemplates satisfies the generator for FillBytes, which never fetches.
type noTemplates struct{}

func (noTemplates) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("offline fill reads templates from --pdf")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
