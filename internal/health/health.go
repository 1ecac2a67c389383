// Package health implements the liveness and dependency-check endpoints:
// GET /health always returns 200 once the process is serving, GET
// /health/deps pings the database, the NSQ producer, and the configured
// AI provider, returning 503 if any of them is unreachable.
package health

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"citeground/internal/httpx"
	"citeground/internal/provider"
)

// Pinger is satisfied directly by *nsq.Producer.
type Pinger interface {
	Ping() error
}

type Handler struct {
	db       *sql.DB
	producer Pinger
	ai       provider.Provider
	timeout  time.Duration
}

func NewHandler(db *sql.DB, producer Pinger, ai provider.Provider) *Handler {
	return &Handler{db: db, producer: producer, ai: ai, timeout: 5 * time.Second}
}

// Live handles GET /health: the process is up and serving requests.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Deps handles GET /health/deps: checks every external dependency the
// request path touches and reports each one individually.
func (h *Handler) Deps(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{}
	ok := true

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		ok = false
	} else {
		checks["database"] = "ok"
	}

	if err := h.producer.Ping(); err != nil {
		checks["nsq"] = err.Error()
		ok = false
	} else {
		checks["nsq"] = "ok"
	}

	if _, err := h.ai.Embed(ctx, []string{"health check"}); err != nil {
		checks["provider"] = err.Error()
		ok = false
	} else {
		checks["provider"] = "ok"
	}

	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, map[string]any{"status": boolStatus(ok), "checks": checks})
}

func boolStatus(ok bool) string {
	if ok {
		return "ok"
	}
	return "degraded"
}
