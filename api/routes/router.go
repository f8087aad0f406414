package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/placemates-backend/api/controllers"
	"github.com/angelmondragon/placemates-backend/api/middleware"
	"github.com/angelmondragon/placemates-backend/internal/membership"
	"github.com/angelmondragon/placemates-backend/internal/places"
	"github.com/angelmondragon/placemates-backend/internal/users"
	"github.com/angelmondragon/placemates-backend/pkg/config"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/placemates-backend/pkg/redis"
)

// Dependencies are the services and probes the router exposes.
type Dependencies struct {
	Config     *config.Config
	Logger     *logger.Logger
	Gatherer   prometheus.Gatherer
	Readiness  []controllers.ReadinessCheck
	Idempotent pkgredis.IdempotencyStore
	Users      *users.Service
	Places     *places.Service
	Membership *membership.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness...))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.Identity, logg))
		if deps.Idempotent != nil {
			r.Use(middleware.Idempotency(deps.Idempotent, logg))
		}

		r.Put("/users/me", controllers.UserRegister(deps.Users, logg))

		r.Route("/places", func(r chi.Router) {
			r.Post("/", controllers.PlaceCreate(deps.Places, logg))
			r.Get("/{placeId}", controllers.PlaceGet(deps.Places, logg))
			r.Delete("/{placeId}", controllers.PlaceDelete(deps.Places, logg))
			r.Post("/{placeId}/membership", controllers.PlaceMembershipToggle(deps.Places, deps.Membership, logg))
		})
	})

	return r
}
