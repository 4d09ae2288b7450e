// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	goahttp "goa.design/goa/v3/http"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-interview-service/pkg/constants"
)

// gracefulShutdownSeconds should be higher than NATS client request timeout, and
// lower than the pod or job's graceful termination period.
const gracefulShutdownSeconds = 25

// newHTTPHandler mounts the webhook and health routes behind the middleware chain.
func newHTTPHandler(webhook *handlers.WebhookHandler, health *handlers.HealthHandler) http.Handler {
	mux := goahttp.NewMuxer()
	mux.Handle(http.MethodPost, constants.StreamWebhookPath, webhook.ServeHTTP)
	mux.Handle(http.MethodPost, constants.LegacyWebhookPath, webhook.ServeHTTP)
	mux.Handle(http.MethodGet, constants.LivezPath, health.Livez)
	mux.Handle(http.MethodGet, constants.ReadyzPath, health.Readyz)

	var handler http.Handler = mux

	// Middleware runs in the reverse order it is added: the request id is set
	// before the logger reads it, and the raw body is captured last.
	handler = middleware.WebhookCaptureMiddleware()(handler)
	handler = middleware.RequestLoggerMiddleware()(handler)
	handler = middleware.RequestIDMiddleware()(handler)
	handler = chimiddleware.RealIP(handler)
	handler = chimiddleware.Recoverer(handler)
	handler = otelhttp.NewHandler(handler, "interview-api",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != constants.LivezPath && r.URL.Path != constants.ReadyzPath
		}),
	)
	return handler
}

func listenAddr(f flags) string {
	if f.Bind == "*" {
		return ":" + f.Port
	}
	return f.Bind + ":" + f.Port
}

// setupHTTPServer starts the HTTP server in a goroutine.
func setupHTTPServer(f flags, handler http.Handler, gracefulCloseWG *sync.WaitGroup) *http.Server {
	addr := listenAddr(f)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 3 * time.Second,
	}
	gracefulCloseWG.Add(1)
	go func() {
		slog.With("addr", addr).Debug("starting http server, listening on port " + f.Port)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			slog.With(logging.ErrKey, err).Error("http listener error")
			os.Exit(1)
		}
		// ErrServerClosed is returned as soon as Shutdown is called, not when it
		// completes, so the wait group is released by gracefulShutdown.
	}()

	return httpServer
}

// gracefulShutdown stops the HTTP server, cancels background work and drains NATS.
// httpServer may be nil when only the worker runs.
func gracefulShutdown(httpServer *http.Server, natsConn *nats.Conn, gracefulCloseWG *sync.WaitGroup, cancel context.CancelFunc) {
	slog.With("grace_period_seconds", gracefulShutdownSeconds).Info("graceful shutdown")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		go func() {
			if err := httpServer.Shutdown(ctx); err != nil {
				slog.With(logging.ErrKey, err).Error("http shutdown error")
			}
			gracefulCloseWG.Done()
		}()
	}

	// Stops the job consumer between batches.
	cancel()

	if natsConn != nil && !natsConn.IsClosed() && !natsConn.IsDraining() {
		slog.Info("draining NATS connections")
		if err := natsConn.Drain(); err != nil {
			slog.With(logging.ErrKey, err).Error("error draining NATS connection")
			natsConn.Close()
		}
	}

	finished := make(chan struct{})
	go func() {
		gracefulCloseWG.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		slog.Info("graceful shutdown complete")
	case <-ctx.Done():
		slog.Error("graceful shutdown timed out")
		os.Exit(1)
	}
}
