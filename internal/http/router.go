package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/evergogreen/evergogreen/internal/auth"
	"github.com/evergogreen/evergogreen/internal/config"
	"github.com/evergogreen/evergogreen/internal/http/handlers"
	"github.com/evergogreen/evergogreen/internal/http/middlewares"
	"github.com/evergogreen/evergogreen/internal/observability"
	"github.com/evergogreen/evergogreen/internal/repo/postgres"
	"github.com/evergogreen/evergogreen/internal/validation"
)

const serviceName = "evergogreen"

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	validation.Register()

	r := gin.New()

	// own registry per router so tests can build routers freely
	promReg := prometheus.NewRegistry()
	prom := observability.NewProm(promReg)

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(otelgin.Middleware(serviceName))
	r.Use(prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))

	// health + metrics

	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	health := handlers.NewHealthHandler(ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))

	// wire up repositories and services

	usersRepo := postgres.NewUsersRepo(pool, prom)
	entriesRepo := postgres.NewEntriesRepo(pool, prom)

	jwtManager := auth.NewManager(cfg.JWTSecret)
	authMw := middlewares.NewAuthMiddleware(jwtManager)

	usersHandler := handlers.NewUsersHandler(usersRepo, jwtManager)
	vhiHandler := handlers.NewVhiHandler(entriesRepo, usersRepo)

	loginLimiter := middlewares.NewRateLimiter(10, time.Minute)

	api := r.Group("/api")

	users := api.Group("/users")
	users.POST("", authMw.RequireAuth(), usersHandler.Identify)
	users.POST("/new", middlewares.RequireJSON(), usersHandler.Register)
	users.POST("/auth", middlewares.RequireJSON(), loginLimiter.Middleware(middlewares.KeyByIP), usersHandler.Authenticate)
	users.DELETE("/delete", authMw.RequireAuth(), usersHandler.DeleteSelf)
	users.DELETE("/delete/:id", authMw.RequireAuth(), usersHandler.DeleteByID)

	vhi := api.Group("/vhi")
	vhi.GET("", vhiHandler.List)
	vhi.POST("/add", middlewares.RequireJSON(), authMw.RequireAuth(), vhiHandler.Add)
	vhi.DELETE("/delete", vhiHandler.DeleteMissingID)
	vhi.DELETE("/delete/:id", authMw.RequireAuth(), vhiHandler.DeleteByID)

	return r
}
