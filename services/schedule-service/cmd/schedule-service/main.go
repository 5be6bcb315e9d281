package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trimline-app/trimline/libs/config"
	"github.com/trimline-app/trimline/libs/db"
	"github.com/trimline-app/trimline/libs/httpx"
	"github.com/trimline-app/trimline/libs/kafkax"
	otelx "github.com/trimline-app/trimline/libs/otel"
	"github.com/trimline-app/trimline/libs/runtime"
	"github.com/trimline-app/trimline/services/schedule-service/internal/cancel"
	"github.com/trimline-app/trimline/services/schedule-service/internal/clock"
	"github.com/trimline-app/trimline/services/schedule-service/internal/feed"
	"github.com/trimline-app/trimline/services/schedule-service/internal/handlers"
	"github.com/trimline-app/trimline/services/schedule-service/internal/model"
	"github.com/trimline-app/trimline/services/schedule-service/internal/notify"
	"github.com/trimline-app/trimline/services/schedule-service/internal/realtime"
	"github.com/trimline-app/trimline/services/schedule-service/internal/storage"
	"github.com/trimline-app/trimline/services/schedule-service/internal/timeline"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "schedule-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelFn()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	clk, err := clock.New(config.String("TIMEZONE", "Asia/Dhaka"))
	if err != nil {
		logger.Error("timezone setup failed", "err", err)
		panic(err)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, config.Int("DB_MAX_CONNS", 10))
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.String("REDIS_ADDR", "localhost:6379"),
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
	defer func() { _ = rdb.Close() }()

	reservations := storage.NewReservationRepository(pool)
	settings := storage.NewSettingsRepository(pool)

	publisher := notify.NewPublisher(
		config.String("KAFKA_BROKERS", ""),
		config.String("KAFKA_NOTIFICATIONS_TOPIC", "notifications.booking.v1"),
		logger,
	)
	defer publisher.Close()

	engine := cancel.NewEngine(reservations, publisher, logger)

	live := handlers.NewLiveTimeline()
	changeFeed := feed.NewRedisFeed(rdb, logger)
	syncs := map[string]*realtime.Synchronizer{}
	for _, barberID := range parseList(config.String("WATCH_BARBER_IDS", "")) {
		barberID := barberID
		s := realtime.New(changeFeed, func(ctx context.Context) ([]model.Reservation, error) {
			return reservations.ListByBarber(ctx, barberID)
		}, func(rs []model.Reservation) {
			refreshLive(clk, settings, live, barberID, rs, logger)
		}, logger.With("barber_id", barberID), realtime.Config{
			Channel:        feed.Channel(barberID),
			HeartbeatEvery: config.Duration("LIVE_HEARTBEAT_EVERY", 30*time.Second),
		})
		syncs[barberID] = s
		s.Start(ctx)
	}

	refreshAll := func(ctx context.Context) {
		for id, s := range syncs {
			if err := s.Refresh(ctx); err != nil {
				logger.Warn("post-mutation refresh failed", "barber_id", id, "err", err)
			}
		}
	}

	timelineHandler := handlers.NewTimelineHandler(reservations, settings, clk, logger)
	cancelHandler := handlers.NewCancelHandler(engine, logger, refreshAll)
	liveHandler := handlers.NewLiveHandler(live, syncs)
	hoursHandler := handlers.NewHoursHandler(settings, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/timeline", timelineHandler.Timeline)
	mux.HandleFunc("/api/v1/timeline/live", liveHandler.Live)
	mux.HandleFunc("/api/v1/reservations/cancel", cancelHandler.Cancel)
	mux.HandleFunc("/api/v1/reservations/bulk-cancel", cancelHandler.BulkCancel)
	mux.HandleFunc("/api/v1/work-hours", hoursHandler.Hours)

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var rateLimitMW httpx.Middleware
	if isTruthy(config.String("RATE_LIMIT_REDIS", "true")) {
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl:schedule"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS")),
			AllowedHeaders: parseList(config.String("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id")),
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "schedule")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	for _, s := range syncs {
		s.Stop()
	}
	logger.Info("http server stopped")
}

// refreshLive recomposes the live view of the current civil day for one
// barber. Runs on the synchronizer goroutine, never on request paths.
func refreshLive(clk *clock.Clock, settings *storage.SettingsRepository, live *handlers.LiveTimeline, barberID string, rs []model.Reservation, logger *slog.Logger) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()

	now := clk.NowMillis()
	defaults, err := settings.ShopDefaults(ctx)
	if err != nil {
		logger.Warn("shop defaults unavailable for live view", "err", err)
		defaults = storage.FallbackShopDefaults()
	}
	workDay, err := settings.WorkDayFor(ctx, barberID, clk.WeekdayKey(now))
	if err != nil {
		logger.Warn("work day settings unavailable for live view", "barber_id", barberID, "err", err)
		workDay = nil
	}

	items := timeline.Compose(clk, rs, timeline.Filters{Mode: timeline.ModeAll}, timeline.DayContext{
		SelectedDay:    &now,
		WorkDay:        workDay,
		Defaults:       defaults,
		ShowEmptySlots: true,
		NowMillis:      now,
	})
	live.Set(barberID, items, now)
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
