package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/identito-api/internal/config"
	"github.com/jwalitptl/identito-api/internal/handler"
	alerthandler "github.com/jwalitptl/identito-api/internal/handler/alert"
	deduphandler "github.com/jwalitptl/identito-api/internal/handler/dedup"
	identityhandler "github.com/jwalitptl/identito-api/internal/handler/identity"
	qualificationhandler "github.com/jwalitptl/identito-api/internal/handler/qualification"
	"github.com/jwalitptl/identito-api/internal/middleware"
	"github.com/jwalitptl/identito-api/internal/service/dedup"
	"github.com/jwalitptl/identito-api/internal/service/identity"
	"github.com/jwalitptl/identito-api/internal/service/qualification"
	"github.com/jwalitptl/identito-api/internal/service/vigilance"
	"github.com/jwalitptl/identito-api/pkg/logger"
)

// Services groups everything the HTTP surface exposes.
type Services struct {
	Identity      identity.IdentityService
	Dedup         dedup.DedupService
	Vigilance     vigilance.VigilanceService
	Qualification qualification.QualificationService
}

// New assembles the gin engine with the full middleware chain and all routes.
func New(cfg *config.Config, db *sqlx.DB, svcs Services, l *logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	handler.RegisterValidations()
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(l))
	r.Use(middleware.RequestLogger(l))
	r.Use(middleware.Timeout(time.Duration(cfg.Server.TimeoutSeconds) * time.Second))
	r.Use(middleware.RateLimit(rate.Limit(100), 200))

	handler.NewHealthHandler(db).RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWT))
	v1.Use(middleware.ErrorHandler(l))

	identityhandler.NewHandler(svcs.Identity).RegisterRoutes(v1)
	deduphandler.NewHandler(svcs.Dedup).RegisterRoutes(v1)
	alerthandler.NewHandler(svcs.Vigilance).RegisterRoutes(v1)
	qualificationhandler.NewHandler(svcs.Qualification).RegisterRoutes(v1)

	return r
}
