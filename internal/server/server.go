package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/carcert/internal/bridge"
	"github.com/dukerupert/carcert/internal/config"
	"github.com/dukerupert/carcert/internal/handler"
	"github.com/dukerupert/carcert/internal/inbox"
	"github.com/dukerupert/carcert/internal/metrics"
	"github.com/dukerupert/carcert/internal/middleware"
	"github.com/dukerupert/carcert/internal/model"
	"github.com/dukerupert/carcert/internal/notify"
	"github.com/dukerupert/carcert/internal/push"
	"github.com/dukerupert/carcert/internal/store"
	ws "github.com/dukerupert/carcert/internal/websocket"
)

// Options are the inputs the server is assembled from.
type Options struct {
	Config *config.Config
	Store  store.KV
	// VAPIDPublicKey is handed to the web runtime. Empty disables the
	// vapid-key route.
	VAPIDPublicKey string
	Logger         *slog.Logger
}

type Server struct {
	cfg         *config.Config
	hub         *ws.Hub
	metrics     *metrics.Metrics
	bridge      *bridge.Bridge
	scheduler   *bridge.LocalScheduler
	manager     *notify.Manager
	notifyH     *handler.NotificationHandler
	eventsH     *handler.EventsHandler
	pushH       *handler.PushHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

// New wires the notification manager and the HTTP surface around it.
func New(opts Options) *Server {
	cfg := opts.Config
	logger := opts.Logger

	hub := ws.NewHub(logger)
	m := metrics.New()

	box := inbox.New(opts.Store, logger.With("component", "inbox"))
	box.OnChange(func(action string, ns []model.Notification) {
		m.InboxChanged(action, ns)
		hub.InboxChanged(action, ns)
	})

	var platform push.Platform = push.UnsupportedPlatform{}
	var subs handler.SubscriptionStore
	if cfg.Push.Enabled {
		wp := push.NewWebPushPlatform(opts.Store)
		platform = wp
		subs = wp
	}
	registrar := push.NewRegistrar(platform, opts.Store, cfg.Push.TokenTimeout, logger.With("component", "push"))

	b := bridge.New(logger.With("component", "bridge"))
	sched := bridge.NewLocalScheduler(b, logger.With("component", "scheduler"))

	mgr := notify.NewManager(notify.Deps{
		Inbox:     box,
		Registrar: registrar,
		Bridge:    b,
		Scheduler: sched,
		Navigator: hub,
		Logger:    logger.With("component", "notify"),
		Observer:  m,
	})

	return &Server{
		cfg:         cfg,
		hub:         hub,
		metrics:     m,
		bridge:      b,
		scheduler:   sched,
		manager:     mgr,
		notifyH:     handler.NewNotificationHandler(mgr, logger.With("component", "notification_handler")),
		eventsH:     handler.NewEventsHandler(b, logger.With("component", "events_handler")),
		pushH:       handler.NewPushHandler(mgr, subs, opts.VAPIDPublicKey, logger.With("component", "push_handler")),
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimit.Schedule, cfg.RateLimit.Window),
		logger:      logger,
	}
}

// Manager returns the notification manager.
func (s *Server) Manager() *notify.Manager {
	return s.manager
}

// Start starts the manager, the optional demo sequence and the rate limiter
// cleanup loop. The loop stops when ctx is done.
func (s *Server) Start(ctx context.Context) {
	s.manager.Start(ctx)
	if s.cfg.Demo.Enabled {
		n := s.manager.StartDemo(s.cfg.Demo.Interval)
		s.logger.Info("demo notifications scheduled", "count", n, "interval", s.cfg.Demo.Interval)
	}
	go s.rateLimiter.RunCleanup(ctx)
}

// Close tears down the manager and cancels pending local notifications.
func (s *Server) Close() {
	s.manager.Close()
	s.scheduler.Close()
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Inbox
	s.handle(mux, "GET /api/notifications", s.notifyH.List)
	s.handle(mux, "GET /api/notifications/{id}", s.notifyH.Get)
	s.handle(mux, "GET /api/notifications/unread-count", s.notifyH.UnreadCount)
	s.handle(mux, "POST /api/notifications/{id}/read", s.notifyH.MarkRead)
	s.handle(mux, "POST /api/notifications/read-all", s.notifyH.MarkAllRead)
	s.handle(mux, "DELETE /api/notifications/{id}", s.notifyH.Delete)
	s.handle(mux, "DELETE /api/notifications", s.notifyH.ClearAll)

	// Local scheduling
	s.handle(mux, "POST /api/notifications/local", s.rateLimited(s.notifyH.ScheduleLocal))
	s.handle(mux, "DELETE /api/notifications/local/{id}", s.notifyH.CancelLocal)
	s.handle(mux, "POST /api/notifications/certified", s.rateLimited(s.notifyH.Certified))
	s.handle(mux, "POST /api/notifications/theft-alert", s.rateLimited(s.notifyH.TheftAlert))
	s.handle(mux, "POST /api/notifications/transaction", s.rateLimited(s.notifyH.Transaction))
	s.handle(mux, "POST /api/notifications/message", s.rateLimited(s.notifyH.Message))

	// Platform events
	s.handle(mux, "POST /api/events/received", s.eventsH.Received)
	s.handle(mux, "POST /api/events/opened", s.eventsH.Opened)

	// Push registration
	s.handle(mux, "GET /api/push/registration", s.pushH.Registration)
	s.handle(mux, "POST /api/push/register", s.pushH.Register)
	s.handle(mux, "GET /api/push/vapid-key", s.pushH.VAPIDKey)
	s.handle(mux, "POST /api/push/subscription", s.pushH.Subscription)

	mux.HandleFunc("GET /ws", ws.HandleFeed(s.hub, s.manager.ViewNotifications, s.logger.With("component", "websocket")))
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /health", s.healthHandler)

	httpLogger := s.logger.With("component", "http")
	return middleware.Recoverer(httpLogger)(middleware.RequestLogger(httpLogger)(mux))
}

// handle registers h under pattern, instrumented with the pattern as its
// route label.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, middleware.Instrument(s.metrics, pattern)(h))
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, middleware.ClientIP(s.cfg.RateLimit.TrustForwarded))(h).ServeHTTP
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":       "ok",
		"push_granted": s.manager.Registration().PermissionGranted,
		"feed_clients": s.hub.ClientCount(),
	})
}
