package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/dagu-org/taskkernel/internal/backoff"
	"github.com/dagu-org/taskkernel/internal/demoplan"
	"github.com/dagu-org/taskkernel/internal/executor"
	"github.com/dagu-org/taskkernel/internal/kernelconfig"
	"github.com/dagu-org/taskkernel/internal/kernellog"
	"github.com/dagu-org/taskkernel/internal/stream"
)

func runCmd() *cobra.Command {
	var planFile string
	var addr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "drive a demo plan with a cron-paced ticker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMain(cmd.Context(), planFile, addr)
		},
	}

	cmd.Flags().StringVarP(&planFile, "plan", "f", "", "demo plan YAML file (required)")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address the observability HTTP server listens on")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

func runMain(ctx context.Context, planFile, addr string) error {
	cfg, err := kernelconfig.Load(kernelconfig.WithConfigFile(cfgFile))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logOpts := kernellog.Options{Debug: cfg.LogLevel == "debug"}
	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logFile.Close()
		logOpts.LogFile = logFile
	}
	log := kernellog.New(logOpts)

	doc, err := demoplan.Load(planFile)
	if err != nil {
		return err
	}
	p, ids, err := demoplan.Build(doc)
	if err != nil {
		return fmt.Errorf("build demo plan: %w", err)
	}
	log.Info("plan loaded", "tasks", len(ids))

	hub := stream.NewHub()
	deadlineGrace := time.Duration(cfg.DeadlineGrace) * time.Millisecond
	facade := executor.New(p,
		executor.WithLogger(log),
		executor.WithPublisher(hub),
		executor.WithDeadlineGrace(deadlineGrace),
	)

	r := chi.NewRouter()
	stream.NewHandler(hub).Routes(r)
	srv := &http.Server{Addr: addr, Handler: r}

	listener, err := listenWithRetry(ctx, addr)
	if err != nil {
		return fmt.Errorf("observability listener: %w", err)
	}
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("observability server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tickInterval := time.Duration(cfg.TickInterval) * time.Millisecond
	cronSpec := fmt.Sprintf("@every %s", tickInterval)

	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	_, err = c.AddFunc(cronSpec, func() {
		report := facade.Tick(ctx, time.Now())
		printReport(report)
	})
	if err != nil {
		return fmt.Errorf("schedule ticker: %w", err)
	}
	c.Start()
	defer c.Stop()

	log.Info("taskkernel running", "addr", addr, "tick_interval", tickInterval, "deadline_grace", deadlineGrace)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// listenWithRetry binds addr, retrying with backoff in case the port is
// still held by a previous instance shutting down.
func listenWithRetry(ctx context.Context, addr string) (net.Listener, error) {
	retrier := backoff.NewRetrier(backoff.NewConstantBackoffPolicy(200 * time.Millisecond))
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			return listener, nil
		}
		lastErr = err
		if waitErr := retrier.Next(ctx, err); waitErr != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func printReport(report stream.TickReport) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Tick", "At", "Started", "Errors"})
	t.AppendRow(table.Row{report.NumTicks, report.At.Format(time.RFC3339), len(report.Started), len(report.Errors)})
	fmt.Println(t.Render())
}
