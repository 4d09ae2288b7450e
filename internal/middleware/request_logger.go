// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-interview-service/pkg/constants"
)

// isProbe reports whether path is a health probe, which is not logged.
func isProbe(path string) bool {
	return path == constants.LivezPath || path == constants.ReadyzPath
}

// responseLevel picks the log level of a finished request from its status.
func responseLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// RequestLoggerMiddleware logs every request except health probes when it
// arrives and when it finishes. The request attributes are appended to the
// context so handler logs carry them too.
func RequestLoggerMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isProbe(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			ctx := r.Context()
			for _, attr := range []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
				slog.Bool("signed", r.Header.Get(constants.SignatureHeader) != ""),
			} {
				ctx = logging.AppendCtx(ctx, attr)
			}
			r = r.WithContext(ctx)

			slog.DebugContext(ctx, "HTTP request received")

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				// Nothing was written; net/http answers 200.
				status = http.StatusOK
			}
			slog.Log(ctx, responseLevel(status), "HTTP request completed",
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
			)
		})
	}
}
