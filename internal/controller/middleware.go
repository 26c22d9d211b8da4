package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/couchsync/server/pkg/ctxlogger"
	"github.com/couchsync/server/pkg/rest"
	"github.com/couchsync/server/pkg/wsrouter"
)

func (c controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := ctxlogger.AppendCtx(r.Context(), slog.String("request_id", uuid.NewString()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"url", r.URL.String(),
			"remote_addr", r.RemoteAddr,
		)
		next.ServeHTTP(w, r)
	})
}

// authMw is the connection gatekeeper. It verifies the bearer credential
// before any room operation is possible; a failed attempt is rejected here
// and never reaches the upgrade.
func (c controller) authMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": "missing token"})
			return
		}

		claims, err := c.roomService.ParseToken(token)
		if err != nil {
			c.logger.InfoContext(r.Context(), "rejected connection", "error", err)
			rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": "invalid or expired token"})
			return
		}

		ctx := context.WithValue(r.Context(), memberIdCtxKey, claims.Subject)
		ctx = context.WithValue(ctx, usernameCtxKey, claims.Username)
		ctx = ctxlogger.AppendCtx(ctx,
			slog.String("member_id", claims.Subject),
			slog.String("username", claims.Username),
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken reads the credential from the Authorization header, falling
// back to the token query parameter since browsers cannot set headers on
// websocket requests.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}

		return ""
	}

	return r.URL.Query().Get("token")
}

func (c controller) wsRequestIdMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc) wsrouter.HandlerFunc {
		return func(ctx context.Context, conn wsrouter.Conn, payload json.RawMessage) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", uuid.NewString()))
			return next(ctx, conn, payload)
		}
	}
}

// wsTimeoutMw bounds every room operation so a store call that never
// returns cannot leave an event pending forever.
func (c controller) wsTimeoutMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc) wsrouter.HandlerFunc {
		return func(ctx context.Context, conn wsrouter.Conn, payload json.RawMessage) error {
			ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
			defer cancel()

			return next(ctx, conn, payload)
		}
	}
}

func (c controller) wsLoggingMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc) wsrouter.HandlerFunc {
		return func(ctx context.Context, conn wsrouter.Conn, payload json.RawMessage) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", wsrouter.GetMessageTypeFromCtx(ctx)))
			c.logger.DebugContext(ctx, "websocket message received")

			start := time.Now()
			err := next(ctx, conn, payload)

			c.logger.InfoContext(ctx, "websocket message handled",
				"processing_time_us", time.Since(start).Microseconds(),
				"error", err,
			)

			return err
		}
	}
}
