package main

import (
	"context"
	"errors"
	"hash/fnv"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"jee-solver/api/internal/app"
	"jee-solver/api/internal/config"
	"jee-solver/api/internal/gateway"
	"jee-solver/api/internal/httpserver"
	"jee-solver/api/internal/logger"
	"jee-solver/api/internal/telegram"
)

func main() {
	cfg := config.Load()

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	if err := cfg.ValidateBot(); err != nil {
		lg.Fatal("invalid config", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("startup failed", "err", err)
	}
	defer a.Close()
	a.RunJobs(ctx)

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		lg.Fatal("telegram", "err", err)
	}
	bot.Debug = false
	lg.Info("telegram authorized", "bot", bot.Self.UserName)

	r := telegram.NewRouter(bot, a.Solver, gateway.NewManager(a.Engines), a.Acquirer, lg)

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Get("/healthz", healthz(a.Health))

	addr := "0.0.0.0:" + cfg.Port

	// --- Choose mode: Webhook vs Polling ---
	if cfg.WebhookURL != "" {
		startWebhookMode(ctx, addr, mux, bot, r, cfg.WebhookURL, lg)
	} else {
		startPollingMode(ctx, addr, mux, bot, r, lg)
	}
}

func healthz(p app.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("store: not ok\n" + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// ---------------- Modes -----------------

func startWebhookMode(ctx context.Context, addr string, mux chi.Router, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string, lg *logger.Logger) {
	// webhook path derived from the token
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		lg.Fatal("webhook", "err", err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		lg.Fatal("set webhook", "err", err)
	}

	mux.Post(path, func(w http.ResponseWriter, req *http.Request) {
		upd, err := bot.HandleUpdate(req)
		if err != nil {
			lg.Warn("bad webhook update", "err", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// ack Telegram right away, a solve can take minutes
		go r.HandleUpdate(ctx, *upd)
		w.WriteHeader(http.StatusOK)
	})

	lg.Info("webhook mode", "addr", addr, "path", path)
	if err := httpserver.Serve(ctx, addr, mux, lg); err != nil {
		lg.Error("server stopped", "err", err)
	}
}

func startPollingMode(ctx context.Context, addr string, mux chi.Router, bot *tgbotapi.BotAPI, r *telegram.Router, lg *logger.Logger) {
	// the platform checks healthz in polling mode too
	go func() {
		if err := httpserver.Serve(ctx, addr, mux, lg); err != nil {
			lg.Error("health server stopped", "err", err)
		}
	}()

	// getUpdates returns 409 while a webhook is set
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		lg.Warn("delete webhook", "err", err)
	}

	lg.Info("polling mode")
	runPolling(ctx, bot, func(upd tgbotapi.Update) {
		go r.HandleUpdate(ctx, upd)
	}, lg)
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 from Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

// clampDelay keeps d within [lo, hi].
func clampDelay(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update), lg *logger.Logger) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		select {
		case <-ctx.Done():
			lg.Info("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := clampDelay(retryDelayFromError(err), baseDelay, maxDelay)
			lg.Warn("polling error", "err", err, "retry_in", d.String())
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ---------------- Helpers -----------------

// shortHash derives a stable webhook path from the token (FNV-1a, not a secret hash).
func shortHash(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return strconv.FormatUint(h.Sum64(), 16)
}
