package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	apiv1 "github.com/facilityhub/facility/pkg/api/v1"
	"github.com/facilityhub/facility/pkg/common"
	"github.com/facilityhub/facility/pkg/gateway/services"
	"github.com/facilityhub/facility/pkg/index"
	"github.com/facilityhub/facility/pkg/repository"
	"github.com/facilityhub/facility/pkg/types"
)

type Gateway struct {
	Config      types.AppConfig
	RedisClient *common.RedisClient
	BackendRepo repository.BackendRepository
	IndexStore  index.IndexStore
	Services    *services.Services

	registry   *prometheus.Registry
	httpServer *http.Server
	echo       *echo.Echo
	ctx        context.Context
	cancelFunc context.CancelFunc

	baseRouteGroup *echo.Group
	rootRouteGroup *echo.Group
}

func NewGateway() (*Gateway, error) {
	configManager, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		return nil, err
	}
	config := configManager.GetConfig()
	SetupLogging(config)

	return NewGatewayWithConfig(config)
}

// SetupLogging configures the global zerolog logger from config
func SetupLogging(config types.AppConfig) {
	if config.PrettyLogs {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	if config.DebugMode || config.PrettyLogs {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}
}

// NewGatewayWithConfig connects the record store, search mirror and (in
// remote mode) Redis described by config
func NewGatewayWithConfig(config types.AppConfig) (*Gateway, error) {
	ctx, cancel := context.WithCancel(context.Background())
	gateway := &Gateway{
		Config:     config,
		ctx:        ctx,
		cancelFunc: cancel,
		registry:   prometheus.NewRegistry(),
	}

	if err := gateway.initBackend(); err != nil {
		cancel()
		return nil, err
	}

	if err := gateway.initIndex(); err != nil {
		gateway.BackendRepo.Close()
		if gateway.RedisClient != nil {
			gateway.RedisClient.Close()
		}
		cancel()
		return nil, err
	}

	gateway.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gateway.Services = services.NewServices(
		gateway.BackendRepo.Stores(),
		index.NewMirrors(gateway.IndexStore),
		services.NewMetrics(gateway.registry),
	)

	return gateway, nil
}

func (g *Gateway) initBackend() error {
	// Local mode: skip Redis and Postgres
	if g.Config.IsLocalMode() {
		log.Info().Msg("running in local mode - Redis and Postgres disabled, using in-memory store")
		g.BackendRepo = repository.NewMemoryBackend()
		return nil
	}

	redisClient, err := common.NewRedisClient(g.Config.Database.Redis, common.WithClientName("FacilityGateway"))
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	backendRepo, err := repository.NewPostgresBackend(g.Config.Database.Postgres)
	if err != nil {
		redisClient.Close()
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := MigrateWithLock(g.ctx, backendRepo, redisClient); err != nil {
		backendRepo.Close()
		redisClient.Close()
		return err
	}

	g.RedisClient = redisClient
	g.BackendRepo = backendRepo
	return nil
}

func (g *Gateway) initIndex() error {
	switch g.Config.Search.Backend {
	case types.SearchBackendElasticsearch:
		cfg := g.Config.Search.Elasticsearch
		store, err := index.NewElasticsearchIndexStore(g.ctx, index.ElasticsearchConfig{
			URL:         cfg.URL,
			IndexPrefix: cfg.IndexPrefix,
			Username:    cfg.Username,
			Password:    cfg.Password,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to elasticsearch: %w", err)
		}
		g.IndexStore = store
	case types.SearchBackendSQLite, "":
		store, err := index.NewSQLiteIndexStore(g.Config.Search.SQLite.Path)
		if err != nil {
			return fmt.Errorf("failed to open sqlite index: %w", err)
		}
		g.IndexStore = store
	default:
		return fmt.Errorf("unknown search backend %q", g.Config.Search.Backend)
	}

	log.Info().Str("backend", g.Config.Search.Backend).Msg("search mirror ready")
	return nil
}

// MigrateWithLock applies the schema migrations of backend. With rdb set
// they run under the shared init lock so only one process migrates at a time.
func MigrateWithLock(ctx context.Context, backend repository.SQLBackendRepository, rdb *common.RedisClient) error {
	if rdb != nil {
		unlock, err := initLock(ctx, rdb, "migrations")
		if err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		defer unlock()
	}

	if err := backend.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run postgres migrations: %w", err)
	}
	return nil
}

func initLock(ctx context.Context, rdb *common.RedisClient, name string) (func(), error) {
	lockKey := common.Keys.GatewayInitLock(name)
	lock := common.NewRedisLock(rdb)

	if err := lock.Acquire(ctx, lockKey, common.RedisLockOptions{TtlS: 60, Retries: 240}); err != nil {
		return nil, err
	}

	return func() {
		if err := lock.Release(lockKey); err != nil {
			log.Error().Str("lock_key", lockKey).Err(err).Msg("failed to release init lock")
		}
	}, nil
}

func (g *Gateway) initHTTP() error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	// Configure logging middleware
	if g.Config.Gateway.HTTP.EnablePrettyLogs {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "${time_rfc3339} ${id} ${method} ${uri} ${status} ${latency_human}\n",
		}))
	}

	// CORS
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  g.Config.Gateway.HTTP.CORS.AllowedOrigins,
		AllowHeaders:  g.Config.Gateway.HTTP.CORS.AllowedHeaders,
		AllowMethods:  g.Config.Gateway.HTTP.CORS.AllowedMethods,
		ExposeHeaders: exposedHeaders(),
	}))

	e.Use(middleware.Recover())

	g.echo = e
	g.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", g.Config.Gateway.HTTP.Host, g.Config.Gateway.HTTP.Port),
		Handler: e,
	}

	g.baseRouteGroup = e.Group(apiv1.HttpServerBaseRoute)
	g.rootRouteGroup = e.Group(apiv1.HttpServerRootRoute)

	// Health and metrics stay reachable without the token
	apiv1.NewHealthGroup(g.baseRouteGroup.Group("/health"), g.RedisClient,
		apiv1.HealthCheck{Name: "store", Ping: g.BackendRepo.Ping},
		apiv1.HealthCheck{Name: "mirror", Ping: g.IndexStore.Ping},
	)
	g.rootRouteGroup.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{})))

	return nil
}

func (g *Gateway) registerServices() error {
	apiv1.RegisterEntityRoutes(g.baseRouteGroup, g.Services, apiv1.RequireToken(g.Config.Gateway.AuthToken))

	log.Info().
		Strs("kinds", []string{types.KindFacility.Plural(), types.KindRoom.Plural(), types.KindResident.Plural()}).
		Msg("entity APIs registered")

	return nil
}

// Handler returns the HTTP handler with every route registered
func (g *Gateway) Handler() (http.Handler, error) {
	if g.echo == nil {
		if err := g.initHTTP(); err != nil {
			return nil, fmt.Errorf("failed to initialize http server: %w", err)
		}
		if err := g.registerServices(); err != nil {
			return nil, fmt.Errorf("failed to register services: %w", err)
		}
	}
	return g.echo, nil
}

// StartAsync starts the HTTP server without blocking
func (g *Gateway) StartAsync() error {
	if _, err := g.Handler(); err != nil {
		return err
	}

	addr := g.httpServer.Addr
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	go func() {
		if err := g.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	log.Info().
		Str("host", g.Config.Gateway.HTTP.Host).
		Int("port", g.Config.Gateway.HTTP.Port).
		Str("mode", g.Config.Mode).
		Msg("gateway http server running")

	return nil
}

// Shutdown gracefully shuts down the gateway (exported for external use)
func (g *Gateway) Shutdown() {
	g.shutdown()
}

func (g *Gateway) Start() error {
	if err := g.StartAsync(); err != nil {
		return err
	}

	terminationSignal := make(chan os.Signal, 1)
	signal.Notify(terminationSignal, os.Interrupt, syscall.SIGTERM)
	<-terminationSignal

	log.Info().Msg("termination signal received. shutting down...")
	g.shutdown()

	return nil
}

// shutdown gracefully shuts down the gateway
func (g *Gateway) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), g.Config.Gateway.ShutdownTimeout)
	defer cancel()

	// The server drains before the stores it depends on are closed
	if g.httpServer != nil {
		if err := g.httpServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown http server")
		}
	}

	eg := errgroup.Group{}

	eg.Go(func() error {
		return g.IndexStore.Close()
	})

	eg.Go(func() error {
		return g.BackendRepo.Close()
	})

	if g.RedisClient != nil {
		eg.Go(func() error {
			return g.RedisClient.Close()
		})
	}

	g.cancelFunc()

	if err := eg.Wait(); err != nil {
		log.Error().Err(err).Msg("failed to shutdown gateway gracefully")
	}

	log.Info().Msg("gateway stopped")
}

func exposedHeaders() []string {
	return []string{
		apiv1.HeaderTotalCount,
		apiv1.HeaderLink,
		echo.HeaderLocation,
		"X-" + apiv1.ApplicationName + "-alert",
		"X-" + apiv1.ApplicationName + "-error",
		"X-" + apiv1.ApplicationName + "-params",
	}
}
