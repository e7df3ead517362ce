package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"jee-solver/api/internal/acquire"
	"jee-solver/api/internal/logger"
	"jee-solver/api/internal/solver"
)

const defaultDeadline = 180 * time.Second

// Pinger is implemented by store backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handle struct {
	svc       *solver.Service
	acq       *acquire.Acquirer
	log       *logger.Logger
	health    Pinger
	maxUpload int64
}

// New wires the handlers; health may be nil.
func New(svc *solver.Service, acq *acquire.Acquirer, log *logger.Logger, health Pinger) *Handle {
	if log == nil {
		log = logger.Nop()
	}
	return &Handle{
		svc:       svc,
		acq:       acq,
		log:       log,
		health:    health,
		maxUpload: acq.MaxBytes,
	}
}

func (h *Handle) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.log))

	r.Get("/healthz", h.Healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/solve", h.Solve)
		r.Post("/chat", h.Chat)
		r.Post("/chat/clear", h.ClearChat)
		r.Get("/conversations/{id}", h.Conversation)
	})
	return r
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// requestContext applies a deadline from X-Request-Timeout (seconds) or ?timeoutSec.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	deadline := defaultDeadline
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	}
	return context.WithTimeout(r.Context(), deadline)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
