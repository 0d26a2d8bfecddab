package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/iserve-be/internal/api/handlers"
	"github.com/isdelr/iserve-be/internal/auth"
	"github.com/isdelr/iserve-be/internal/services"
	"github.com/isdelr/iserve-be/internal/websocket"
)

// RouterConfig collects the dependencies of NewRouter.
type RouterConfig struct {
	Hub             *websocket.Hub
	Tokens          *auth.TokenIssuer
	UserService     services.UserServiceProvider
	EventService    services.EventServiceProvider
	FeedbackService services.FeedbackServiceProvider
	Metrics         http.Handler // optional /metrics handler
	AllowedOrigins  []string
	SecureCookies   bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: !allowsAny(origins),
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(cfg.UserService, cfg.SecureCookies, cfg.Tokens.TTL())
	eventHandler := handlers.NewEventHandler(cfg.EventService)
	feedbackHandler := handlers.NewFeedbackHandler(cfg.FeedbackService)
	wsHandler := handlers.NewWebSocketHandler(cfg.Hub, originChecker(origins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Post("/user", userHandler.Register)
		r.Post("/login", userHandler.Login)
		r.Post("/send-email", feedbackHandler.Send)

		// Protected endpoints
		r.Group(func(r chi.Router) {
			r.Use(cfg.Tokens.Middleware())

			r.Get("/me", userHandler.GetMe)
			r.Get("/users", userHandler.GetAll)
			r.Get("/users/{email}", userHandler.GetProfile)
			r.Put("/users/{email}", userHandler.Update)
			r.Get("/users/{email}/phone", userHandler.GetPhone)
			r.Put("/user/{email}/password", userHandler.ChangePassword)

			r.Get("/events", eventHandler.GetRecent)
			r.Get("/ws/events", wsHandler.Serve)
		})
	})

	return r
}

func allowsAny(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// originChecker mirrors the CORS allow-list for websocket upgrades.
func originChecker(origins []string) func(r *http.Request) bool {
	if allowsAny(origins) {
		return nil
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.ToLower(strings.TrimSuffix(o, "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}
