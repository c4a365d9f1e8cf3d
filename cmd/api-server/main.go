package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/mediqueue/internal/api"
	"github.com/hackgods/mediqueue/internal/appointment"
	"github.com/hackgods/mediqueue/internal/config"
	"github.com/hackgods/mediqueue/internal/consultation"
	"github.com/hackgods/mediqueue/internal/db"
	"github.com/hackgods/mediqueue/internal/directory"
	"github.com/hackgods/mediqueue/internal/lock"
	"github.com/hackgods/mediqueue/internal/logging"
	"github.com/hackgods/mediqueue/internal/queue"
	redisclient "github.com/hackgods/mediqueue/internal/redis"
)

// stores bundles the repositories of one storage backend.
type stores struct {
	appointments  appointment.Repository
	consultations consultation.Repository
	directory     directory.Repository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("api-server", cfg.Env, cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api-server stopped")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	logger.Info().
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreBackend).
		Str("lock", cfg.LockBackend).
		Dur("slot_duration", cfg.SlotDuration).
		Int("slot_capacity", cfg.SlotCapacity).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var deps []api.Dependency
	var st stores

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			return fmt.Errorf("postgres connection: %w", err)
		}
		defer pgPool.Close()
		logger.Info().Msg("connected to Postgres")

		st = postgresStores(pgPool)
		deps = append(deps, api.Dependency{Name: "postgres", Pinger: pgPool, Critical: true})
	default:
		st = memoryStores()
		logger.Warn().Msg("using in-memory store, data is lost on restart")
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.LockBackend == config.LockRedis {
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			return fmt.Errorf("redis connection: %w", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, cfg.LockWait)
		deps = append(deps, api.Dependency{Name: "redis", Pinger: redisPinger(rdb)})
	}

	dir := directory.NewCachedRepository(st.directory, cfg.DirectoryCacheSize, cfg.DirectoryCacheTTL)

	handler := api.NewRouter(api.RouterConfig{
		Appointments:  appointment.NewService(st.appointments, dir, locker, cfg, logger),
		Queue:         queue.NewService(st.appointments, dir, cfg),
		Consultations: consultation.NewService(st.consultations, st.appointments, logger),
		Directory:     dir,
		Logger:        logger,
		Location:      cfg.Location(),
		Clock:         time.Now,
		Dependencies:  deps,
		Env:           cfg.Env,
		Version:       cfg.Version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down api-server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func postgresStores(pool *pgxpool.Pool) stores {
	return stores{
		appointments:  appointment.NewPgRepository(pool),
		consultations: consultation.NewPgRepository(pool),
		directory:     directory.NewPgRepository(pool),
	}
}

// memoryStores keeps no event log; there is no relay for it to feed.
func memoryStores() stores {
	return stores{
		appointments:  appointment.NewMemoryRepository(nil),
		consultations: consultation.NewMemoryRepository(nil),
		directory:     directory.NewMemoryRepository(),
	}
}

func redisPinger(rdb *redis.Client) api.PingFunc {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
