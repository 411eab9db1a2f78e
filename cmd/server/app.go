package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"broadcast-orchestrator/internal/encoder"
	"broadcast-orchestrator/internal/livesync"
	"broadcast-orchestrator/internal/platform/config"
	"broadcast-orchestrator/internal/platform/logger"
	"broadcast-orchestrator/internal/platform/metrics"
	"broadcast-orchestrator/internal/platform/storage"
	"broadcast-orchestrator/internal/schedule"
	"broadcast-orchestrator/internal/session"
	"broadcast-orchestrator/internal/stream"
	"broadcast-orchestrator/internal/timeline"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
)

// app is the wired process: one session, its preview stream, the player
// synchronizer and the scheduler.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	db      *sql.DB

	catalog    *timeline.Catalog
	controller *session.Controller
	streams    *stream.Service
	binding    *livesync.Binding
	sync       *livesync.Synchronizer
	store      *schedule.SQLStore
	scheduler  *schedule.Scheduler
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	catalog, err := timeline.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	db, dialect, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	store, err := schedule.NewSQLStore(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	met := metrics.New()

	var enc encoder.Controller = encoder.NewNop(log)
	if cfg.EncoderURL != "" {
		enc = encoder.NewClient(cfg.EncoderURL, cfg.EncoderTimeout, log)
	}

	machine := session.NewMachine(enc, catalog, log, met)
	controller := session.NewController(machine, catalog, cfg.TeardownTimeout, log, met)

	streams := stream.NewService(stream.NewRepository(), cfg.SlidingWindowSize)
	// Registered first: the stream must exist before the synchronizer polls
	// its manifest.
	machine.Subscribe(followSession(streams))

	binding := livesync.NewBinding()
	syncer := livesync.NewSynchronizer(livesync.Config{
		StreamURL:        previewPath(cfg.PreviewRendition),
		PositionInterval: cfg.PositionPollInterval,
		ManifestInterval: cfg.ManifestPollInterval,
		ManifestAttempts: cfg.ManifestMaxAttempts,
		MaxRecoveries:    cfg.PlayerMaxRecoveries,
	},
		machine,
		livesync.NewClockFeed(machine, catalog),
		livesync.NewHTTPManifestFetcher(manifestURL(cfg), cfg.EncoderTimeout),
		binding,
		log, met,
	)
	machine.Subscribe(syncer.OnSessionChange)

	scheduler := schedule.NewScheduler(store, controller, catalog, cfg.SchedulerInterval, log, met)

	log.Info("catalog loaded",
		slog.Int("timelines", len(catalog.Timelines())),
		slog.Int("destinations", len(catalog.Destinations())),
		slog.String("database", string(dialect)))

	return &app{
		cfg:        cfg,
		log:        log,
		metrics:    met,
		db:         db,
		catalog:    catalog,
		controller: controller,
		streams:    streams,
		binding:    binding,
		sync:       syncer,
		store:      store,
		scheduler:  scheduler,
	}, nil
}

// Handler returns the HTTP API wrapped in CORS for the operator UI.
func (a *app) Handler() http.Handler {
	sessions := session.NewHandler(a.controller, a.log)
	preview := livesync.NewHandler(a.sync, a.binding)
	schedules := schedule.NewHandler(a.store, a.catalog, a.catalog, a.log)
	catalog := timeline.NewHandler(a.catalog)
	streams := stream.NewHandler(a.streams, a.log, a.metrics)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(a.log))
	r.Use(metrics.RequestMiddleware(a.metrics))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", a.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessions.GetSession)
			r.Post("/preview", sessions.StartPreview)
			r.Delete("/preview", sessions.StopPreview)
			r.Post("/live", sessions.GoLive)
			r.Delete("/live", sessions.StopLive)
		})
		r.Get("/preview", preview.GetPreview)
		r.Post("/preview/player-errors", preview.ReportPlayerError)
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", schedules.List)
			r.Post("/", schedules.Create)
			r.Post("/conflicts", schedules.CheckConflicts)
			r.Get("/{id}", schedules.Get)
			r.Put("/{id}", schedules.Update)
			r.Delete("/{id}", schedules.Delete)
		})
		r.Get("/timelines", catalog.ListTimelines)
		r.Get("/destinations", catalog.ListDestinations)
	})

	r.Route("/streams/{stream_id}/renditions/{rendition}", func(r chi.Router) {
		r.Post("/segments", streams.RegisterSegment)
		r.Get("/playlist.m3u8", streams.GetPlaylist)
	})
	r.Get("/preview/{rendition}/playlist.m3u8", streams.GetPreviewPlaylist)

	return handlers.CORS(
		handlers.AllowedOrigins(a.cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(r)
}

// Close stops background work and releases the database.
func (a *app) Close() error {
	a.sync.Close()
	return a.db.Close()
}

// followSession keeps the current preview stream in step with the session:
// every new session begins its encoder stream, going idle ends it.
func followSession(streams *stream.Service) session.Listener {
	return func(prev, next session.Session) {
		switch {
		case next.Active() && next.ID != prev.ID:
			streams.Begin(stream.StreamID(next.StreamID))
		case !next.Active() && prev.Active():
			streams.End()
		}
	}
}

func previewPath(rendition string) string {
	return "/preview/" + rendition + "/playlist.m3u8"
}

// manifestURL is where the synchronizer checks readiness: this server's own
// preview endpoint unless PREVIEW_BASE_URL points elsewhere.
func manifestURL(cfg config.Config) string {
	base := strings.TrimSuffix(cfg.PreviewBaseURL, "/")
	if base == "" {
		base = "http://127.0.0.1:" + cfg.Port
	}
	return base + previewPath(cfg.PreviewRendition)
}
