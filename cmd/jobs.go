package cmd

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-novapay/app/metrics"
	"github.com/vibast-solutions/ms-go-novapay/config"
)

var (
	workerMode bool
)

type backgroundJob struct {
	name     string
	interval func(cfg *config.Config) time.Duration
	enabled  func(cfg *config.Config) bool
	run      func(ctx context.Context, app *application) error
}

var (
	webhooksDispatchJob = backgroundJob{
		name:     "webhooks_dispatch",
		interval: func(cfg *config.Config) time.Duration { return cfg.Jobs.WebhookDispatchInterval },
		run: func(ctx context.Context, app *application) error {
			return app.webhooks.RunDispatchBatch(ctx, app.cfg.Jobs.BatchSize)
		},
	}

	flowsExpireJob = backgroundJob{
		name:     "flows_expire",
		interval: func(cfg *config.Config) time.Duration { return cfg.Jobs.ExpireHeldInterval },
		run: func(ctx context.Context, app *application) error {
			expired, err := app.flows.RunExpireHeldBatch(ctx, app.cfg.Jobs.BatchSize)
			if expired > 0 {
				logrus.WithField("job", "flows_expire").WithField("expired", expired).Info("Expired held flows")
			}
			return err
		},
	}

	eventsPublishJob = backgroundJob{
		name:     "events_publish",
		interval: func(cfg *config.Config) time.Duration { return cfg.Jobs.EventsPublishInterval },
		enabled:  kafkaEnabled,
		run: func(ctx context.Context, app *application) error {
			_, err := app.events.RunPublishBatch(ctx, app.cfg.Jobs.BatchSize)
			return err
		},
	}

	idempotencyPurgeJob = backgroundJob{
		name:     "idempotency_purge",
		interval: func(cfg *config.Config) time.Duration { return cfg.Jobs.IdempotencyPurgeInterval },
		run: func(ctx context.Context, app *application) error {
			purged, err := app.idempotency.RunPurgeBatch(ctx, app.cfg.Jobs.BatchSize)
			if purged > 0 {
				logrus.WithField("job", "idempotency_purge").WithField("purged", purged).Info("Purged expired idempotency records")
			}
			return err
		},
	}

	backgroundJobs = []backgroundJob{webhooksDispatchJob, flowsExpireJob, eventsPublishJob, idempotencyPurgeJob}
)

var webhooksCmd = &cobra.Command{
	Use:   "webhooks",
	Short: "Run webhook outbox commands",
}

var webhooksDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Deliver due webhook notifications to merchants",
	Run:   func(_ *cobra.Command, _ []string) { runCommand(webhooksDispatchJob) },
}

var webhooksRetryCmd = &cobra.Command{
	Use:   "retry <delivery-id>",
	Short: "Re-queue a webhook delivery, including dead ones, and attempt it now",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil || id == 0 {
			logrus.WithField("delivery_id", args[0]).Fatal("Invalid delivery id")
		}

		app := mustBootstrap()
		defer app.close()

		runJob("webhooks_retry", func() error {
			_, err := app.webhooks.Retry(context.Background(), id)
			return err
		})
	},
}

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Run payment flow maintenance commands",
}

var flowsExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire HELD flows past their hold expiry and release the holds",
	Run:   func(_ *cobra.Command, _ []string) { runCommand(flowsExpireJob) },
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Run flow event stream commands",
}

var eventsPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish unpublished flow events to Kafka",
	Run:   func(_ *cobra.Command, _ []string) { runCommand(eventsPublishJob) },
}

var idempotencyCmd = &cobra.Command{
	Use:   "idempotency",
	Short: "Run idempotency store commands",
}

var idempotencyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired idempotency records",
	Run:   func(_ *cobra.Command, _ []string) { runCommand(idempotencyPurgeJob) },
}

func init() {
	rootCmd.AddCommand(webhooksCmd)
	rootCmd.AddCommand(flowsCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(idempotencyCmd)
	webhooksCmd.AddCommand(webhooksDispatchCmd)
	webhooksCmd.AddCommand(webhooksRetryCmd)
	flowsCmd.AddCommand(flowsExpireCmd)
	eventsCmd.AddCommand(eventsPublishCmd)
	idempotencyCmd.AddCommand(idempotencyPurgeCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(job backgroundJob) {
	app := mustBootstrap()
	defer app.close()

	if !workerMode {
		runJob(job.name, func() error { return job.run(context.Background(), app) })
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logrus.WithField("job", job.name).Info("Worker shutdown requested")
		cancel()
	}()

	runWorker(ctx, job.name, job.interval(app.cfg), func(ctx context.Context) error {
		return job.run(ctx, app)
	})
}

func runWorker(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context) error) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runJob(name, func() error { return fn(ctx) })

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	metrics.ObserveJobRun(name, err)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
