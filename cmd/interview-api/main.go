// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the interview service: it receives call provider webhooks,
// drives the meeting lifecycle, runs the summarization worker and answers chat
// questions about completed meetings.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/webhook"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-interview-service/pkg/utils"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "interview-api",
		Short:         "AI interview meeting service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			applyDebug(f.Debug)
			logging.InitStructureLogConfig()
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&f.Debug, "debug", "d", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&f.Port, "port", "p", "", "listen port (defaults to $PORT)")
	root.PersistentFlags().StringVar(&f.Bind, "bind", "*", "interface to bind on")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve webhooks and run the summarization worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f, true)
		},
	}
	worker := &cobra.Command{
		Use:   "worker",
		Short: "Run only the summarization worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f, false)
		},
	}
	replay := &cobra.Command{
		Use:   "replay <meeting-id>",
		Short: "Enqueue summarization again for a meeting stuck in processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return operate(cmd.Context(), func(ctx context.Context, a *app) error {
				return a.summarization.Replay(ctx, args[0])
			})
		},
	}
	cancel := &cobra.Command{
		Use:   "cancel <meeting-id>",
		Short: "Cancel an upcoming or active meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return operate(cmd.Context(), func(ctx context.Context, a *app) error {
				result, err := a.lifecycle.CancelMeeting(ctx, args[0])
				if err != nil {
					return err
				}
				for _, o := range result.Outcomes {
					slog.InfoContext(ctx, "cancel side effect", "effect", o.Effect, "ok", o.OK(), "skipped", o.Skipped)
				}
				return nil
			})
		},
	}

	root.AddCommand(serve, worker, replay, cancel)
	// Running the binary without a subcommand serves.
	root.RunE = serve.RunE
	return root
}

// run serves webhooks (when serveHTTP) and consumes jobs until SIGINT or SIGTERM.
func run(parent context.Context, f flags, serveHTTP bool) error {
	env, err := parseEnv()
	if err != nil {
		slog.With(logging.ErrKey, err).Error("invalid configuration")
		return err
	}
	if f.Port == "" {
		f.Port = env.Port
	}
	env.warnMissingCredentials()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry SDK")
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.With(logging.ErrKey, err).Error("error shutting down OpenTelemetry SDK")
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	a, err := newApp(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up service")
		return err
	}
	defer a.close()

	streamCfg := messaging.DefaultJobStreamConfig(env.JobMaxDeliver)
	consumer, err := messaging.EnsureJobStream(ctx, a.js, streamCfg)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up job stream")
		gracefulShutdown(nil, a.natsConn, &gracefulCloseWG, cancel)
		return err
	}
	jobHandler := handlers.NewJobHandler(a.summarization, streamCfg.MaxDeliver, streamCfg.BackOff)
	jobConsumer := messaging.NewJobConsumer(consumer, jobHandler, streamCfg, env.WorkerConcurrency)

	gracefulCloseWG.Add(1)
	go func() {
		defer gracefulCloseWG.Done()
		if err := jobConsumer.Run(ctx); err != nil {
			slog.With(logging.ErrKey, err).Error("job consumer stopped")
		}
	}()

	var httpServer *http.Server
	if serveHTTP {
		validator := webhook.NewStreamWebhookValidator(env.StreamAPIKey, env.StreamAPISecret)
		webhookHandler := handlers.NewWebhookHandler(a.lifecycle, validator)
		health := handlers.NewHealthHandler(
			handlers.HealthCheck{Name: "store", Ready: func(ctx context.Context) bool {
				return a.repos.Meeting.IsReady(ctx)
			}},
			handlers.HealthCheck{Name: "nats", Ready: func(context.Context) bool {
				return a.natsConn.IsConnected() && a.publisher.IsReady()
			}},
			handlers.HealthCheck{Name: "job-handler", Ready: func(context.Context) bool {
				return jobHandler.HandlerReady()
			}},
		)
		httpServer = setupHTTPServer(f, newHTTPHandler(webhookHandler, health), &gracefulCloseWG)
	}

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(httpServer, a.natsConn, &gracefulCloseWG, cancel)
	return nil
}

// operate runs a one-shot operator command against the wired services.
func operate(parent context.Context, fn func(ctx context.Context, a *app) error) error {
	env, err := parseEnv()
	if err != nil {
		slog.With(logging.ErrKey, err).Error("invalid configuration")
		return err
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	done := make(chan os.Signal, 1)
	gracefulCloseWG := sync.WaitGroup{}
	a, err := newApp(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up service")
		return err
	}
	defer a.close()

	opErr := fn(ctx, a)
	gracefulShutdown(nil, a.natsConn, &gracefulCloseWG, cancel)
	if opErr != nil {
		slog.With(logging.ErrKey, opErr).Error("command failed")
		return errors.New(domain.ErrorMessage(opErr))
	}
	slog.Info("command completed")
	return nil
}
