package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"sproutd/pkg/db"
	"sproutd/services/alerting"
)

const (
	defaultUserTokenTTL = 30 * 24 * time.Hour

	nodesEnrolledTopic      = "sproutd.nodes.enrolled"
	nodeErrorsTopic         = "sproutd.nodes.error"
	measurementCreatedTopic = "sproutd.measurements.created"
	warningCreatedTopic     = "sproutd.warnings.created"
)

// Config controls runtime behaviour for the API handlers.
type Config struct {
	UserTokenTTL   time.Duration
	AllowedOrigins []string
}

// API wires dependencies and configuration for the HTTP handlers.
type API struct {
	store     *Store
	config    Config
	warnings  *alerting.Store
	evaluator *alerting.Evaluator
	log       zerolog.Logger
}

// New initialises the API layer with sane defaults applied to the provided
// configuration.
func New(store *Store, cfg Config, log zerolog.Logger) (*API, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if store.ORM == nil {
		return nil, errors.New("store ORM is required")
	}

	if cfg.UserTokenTTL <= 0 {
		cfg.UserTokenTTL = defaultUserTokenTTL
	}

	warnings, err := alerting.NewStore(store.ORM)
	if err != nil {
		return nil, err
	}
	evaluator, err := alerting.NewEvaluator(warnings, log)
	if err != nil {
		return nil, err
	}

	return &API{
		store:     store,
		config:    cfg,
		warnings:  warnings,
		evaluator: evaluator,
		log:       log,
	}, nil
}

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	allowed := a.config.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	r.Use(httprate.Limit(300, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.handleReadyz)
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Put("/", a.handleCreateUser)
			r.Post("/", a.handleLogin)
			r.Group(func(r chi.Router) {
				r.Use(a.requireUser)
				r.Get("/", a.handleGetUser)
				r.Patch("/", a.handleUpdateUser)
				r.Delete("/", a.handleDeleteUser)
			})
		})

		r.Route("/node", func(r chi.Router) {
			r.Put("/", a.handleEnrollNode)
			r.Group(func(r chi.Router) {
				r.Use(a.requireUser)
				r.Post("/", a.handleCreateNode)
				r.Get("/", a.handleListNodes)
				r.Get("/error", a.handleListNodeErrors)
				r.Get("/{nodeID}", a.handleGetNode)
				r.Patch("/{nodeID}", a.handleUpdateNode)
				r.Delete("/{nodeID}", a.handleDeleteNode)
				r.Post("/{nodeID}/pot", a.handleCreatePot)
				r.Get("/{nodeID}/pot", a.handleListPots)
				r.Get("/{nodeID}/warning", a.handleListNodeWarnings)
			})
			r.Group(func(r chi.Router) {
				r.Use(a.requireNode)
				r.Post("/{nodeID}/heartbeat", a.handleHeartbeat)
				r.Post("/{nodeID}/error", a.handleReportNodeError)
			})
		})

		r.Route("/pot", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(a.requireUser)
				r.Get("/{potID}", a.handleGetPot)
				r.Patch("/{potID}", a.handleUpdatePot)
				r.Delete("/{potID}", a.handleDeletePot)
				r.Get("/{potID}/measurement", a.handleListMeasurements)
				r.Get("/{potID}/warning", a.handleListPotWarnings)
				r.Post("/{potID}/warning/dismiss-all", a.handleDismissAllWarnings)
				r.Post("/{potID}/warning/{warningID}/dismiss", a.handleDismissWarning)
			})
			r.Group(func(r chi.Router) {
				r.Use(a.requireNode)
				r.Put("/{potID}/measurement", a.handleCreateMeasurement)
			})
		})
	})

	return r, nil
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.store.DB != nil {
		if err := db.Ping(r.Context(), a.store.DB); err != nil {
			respondError(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
