package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pedalpoint/api/internal/config"
	"github.com/pedalpoint/api/internal/database"
	"github.com/pedalpoint/api/internal/enum"
	"github.com/pedalpoint/api/internal/handler"
	mw "github.com/pedalpoint/api/internal/middleware"
	"github.com/pedalpoint/api/internal/selection"
	"github.com/pedalpoint/api/internal/service"
	"github.com/pedalpoint/api/internal/ws"
	"github.com/pedalpoint/api/pkg/waflow"
	"github.com/rs/zerolog/log"
)

// New creates a Chi router with all application routes wired up. The public
// customer flow and the websocket endpoint stay outside the authenticated
// group; everything else is admin-only.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, selections selection.Store) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // SvelteKit dev server
			cfg.PublicBaseURL,
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, cfg.Env != "development")
	authHandler.RegisterRoutes(r)

	// Customer order-review flow (slug is the capability, no session)
	confirmService := service.NewConfirmService(pool, func(db database.DBTX) service.ConfirmStore {
		return database.New(db)
	})
	publicHandler := handler.NewPublicHandler(queries, confirmService, selections, hub)
	publicHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param or cookie)
	r.Get("/ws/requests", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require an admin session)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireRole(enum.RoleAdmin))

		authHandler.RegisterAuthenticatedRoutes(r)

		requestService := service.NewRequestService(pool, func(db database.DBTX) service.RequestStore {
			return database.New(db)
		})
		requestHandler := handler.NewRequestHandler(requestService, queries, hub)
		requestHandler.RegisterRoutes(r)

		waClient := waflow.NewClient(cfg.WaFlowURL, cfg.WaFlowTimeout)
		sendHandler := handler.NewSendHandler(queries, waClient, cfg.PublicBaseURL, hub)
		sendHandler.RegisterRoutes(r)

		addonHandler := handler.NewAddonHandler(queries)
		addonHandler.RegisterRoutes(r)

		bundleHandler := handler.NewBundleHandler(queries)
		bundleHandler.RegisterRoutes(r)

		lacarteHandler := handler.NewLaCarteHandler(queries)
		lacarteHandler.RegisterRoutes(r)

		analyticsHandler := handler.NewAnalyticsHandler(queries)
		analyticsHandler.RegisterRoutes(r)

		exportHandler := handler.NewExportHandler(queries)
		exportHandler.RegisterRoutes(r)
	})

	log.Info().Msg("router initialized")
	return r
}
