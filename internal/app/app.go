package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chu0802/CryptoTrader/api"
	"github.com/chu0802/CryptoTrader/internal/config"
	"github.com/chu0802/CryptoTrader/internal/infrastructure"
	"github.com/chu0802/CryptoTrader/internal/push"
	"github.com/chu0802/CryptoTrader/internal/storage"
)

// App wires the shared dependencies: configuration, logging, the file store,
// and, for the modes that need them, Postgres and NATS.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Store  *storage.FileStore

	DB         *pgxpool.Pool
	Repo       *storage.Repository
	NC         *nats.Conn
	JS         nats.JetStreamContext
	Gateway    *push.Gateway
	HTTPServer *http.Server
}

func NewApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := infrastructure.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &App{
		Config: &cfg,
		Logger: logger,
		Store:  storage.NewFileStore(cfg.DataRoot, cfg.ResultsRoot, cfg.StatusRoot, logger),
	}, nil
}

// initDatabase connects the Postgres mirror and ensures its schema.
func (a *App) initDatabase(ctx context.Context) error {
	pool, err := pgxpool.Connect(ctx, a.Config.DB_DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = pool
	a.Repo = storage.NewRepository(pool)

	if err := a.Repo.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

func (a *App) initNATS() error {
	nc, js, err := infrastructure.InitNATS(a.Config.NatsURL, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.NC = nc
	a.JS = js
	return nil
}

// RunServe starts the read-only visualization server: REST over the stored
// results and candle mirror, plus the websocket snapshot stream.
func (a *App) RunServe(ctx context.Context) error {
	if err := a.initDatabase(ctx); err != nil {
		return err
	}
	if err := a.initNATS(); err != nil {
		return err
	}
	a.Gateway = push.NewGateway(a.JS, a.Logger)

	a.HTTPServer = &http.Server{
		Addr:    ":" + a.Config.Port,
		Handler: a.setupRouter(),
	}

	go func() {
		a.Logger.Info("starting http server", zap.String("port", a.Config.Port))
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	return a.waitForShutdown()
}

func (a *App) waitForShutdown() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	a.Logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.NC.Close()
	a.DB.Close()

	return nil
}

func (a *App) setupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	apiHandler := api.NewHandler(a.Repo, a.Store, a.Logger)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/klines/:symbol", apiHandler.GetHistoryKLines)
		v1.GET("/results/:strategy/:symbol", apiHandler.GetResults)
		v1.GET("/profit/:strategy/:symbol", apiHandler.GetProfitHistory)
	}

	r.StaticFile("/", "./static/index.html")
	r.Static("/static", "./static")

	r.GET("/ws", func(c *gin.Context) {
		a.Gateway.ServeHTTP(c.Writer, c.Request)
	})

	return r
}
