// Package main provides a command-line runner that researches one query
// in-process and prints the report.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/maauso/deepresearch-api/internal/bootstrap"
	"github.com/maauso/deepresearch-api/internal/config"
	"github.com/maauso/deepresearch-api/internal/job"
)

var (
	errResearchFailed = errors.New("research failed")
	errStreamEnded    = errors.New("event stream ended without a result")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "deepresearch",
		Usage: "Multi-step web research that produces a Markdown report",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Research a query and print the report",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "path to a dotenv file",
						Value: config.DefaultEnvFile,
					},
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "research question",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "write the report to this file instead of stdout",
					},
				},
				Action: runAction,
			},
		},
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// stdout is reserved for the report.
	logger := cfg.NewLoggerTo(os.Stderr)
	slog.SetDefault(logger)

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	j := deps.Registry.Create(ctx, cmd.String("query"))

	// The subscription outlives ctx so the cancellation event is still printed.
	events, err := deps.Registry.Subscribe(context.WithoutCancel(ctx), j.ID)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	stopCancel, err := launchCancellable(ctx, deps.Registry, deps.Orchestrator, j)
	if err != nil {
		return err
	}
	defer stopCancel()

	report, err := printEvents(os.Stderr, events)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if shutdownErr := deps.Registry.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("job did not stop before timeout", slog.Any("error", shutdownErr))
	}

	if err != nil {
		return err
	}
	return writeReport(cmd.String("output"), report)
}

type launcher interface {
	Launch(j *job.Job) error
}

// launchCancellable starts j and cancels it through registry once ctx is
// done. Cancel ignores pending jobs, so the hook is armed after Launch.
func launchCancellable(ctx context.Context, registry *job.Registry, l launcher, j *job.Job) (func() bool, error) {
	if err := l.Launch(j); err != nil {
		return nil, err
	}
	return context.AfterFunc(ctx, func() { registry.Cancel(j.ID) }), nil
}

// printEvents writes one line per event to w until the terminal event and
// returns the report carried by the completion event.
func printEvents(w io.Writer, events iter.Seq[job.Event]) (string, error) {
	for ev := range events {
		fmt.Fprintf(w, "[%3d%%] %s\n", ev.Progress, ev.Message)

		switch ev.Kind {
		case job.EventCompleted:
			if url, ok := ev.Data["result_url"].(string); ok {
				fmt.Fprintf(w, "report saved to %s\n", url)
			}
			report, _ := ev.Data["report"].(string)
			return report, nil
		case job.EventFailed:
			return "", fmt.Errorf("%w: %s", errResearchFailed, ev.Message)
		}
	}
	return "", errStreamEnded
}

func writeReport(path, report string) error {
	if path == "" {
		_, err := fmt.Fprintln(os.Stdout, report)
		return err
	}
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
