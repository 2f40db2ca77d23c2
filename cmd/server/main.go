package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authgate/internal/config"
	"github.com/iliyamo/authgate/internal/database"
	"github.com/iliyamo/authgate/internal/handler"
	"github.com/iliyamo/authgate/internal/logging"
	"github.com/iliyamo/authgate/internal/metrics"
	"github.com/iliyamo/authgate/internal/queue"
	"github.com/iliyamo/authgate/internal/repository"
	"github.com/iliyamo/authgate/internal/router"
	"github.com/iliyamo/authgate/internal/service"
	"github.com/iliyamo/authgate/internal/utils"
)

func main() {
	// A missing .env is fine: the environment may already be populated.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel)
	log.WithField("config", cfg.String()).Info("starting authgate")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unreachable: account cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	var (
		accounts repository.AccountStore
		posts    repository.PostStore
		db       *sql.DB
	)
	switch cfg.DBDriver {
	case config.DriverMySQL:
		var err error
		if db, err = database.Open(cfg); err != nil {
			return err
		}
		defer db.Close()
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = database.Migrate(migrateCtx, db)
		cancel()
		if err != nil {
			return err
		}
		accounts, posts = repository.NewAccountRepo(db), repository.NewPostRepo(db)
	default:
		log.Warn("using in-memory storage; data is lost on restart")
		accounts, posts = repository.NewMemory()
	}
	accounts = repository.NewCachedAccounts(accounts, rdb, config.LoadAccountCacheConfig(), m)

	revocations, err := newRevocationList(ctx, cfg, db, rdb, log)
	if err != nil {
		return err
	}

	codec, err := utils.NewCodec(utils.CodecConfig{
		Secret:      []byte(cfg.JWTSecret),
		TTL:         cfg.TokenTTL,
		NeverExpire: cfg.NeverExpire,
		Issuer:      "authgate",
	})
	if err != nil {
		return err
	}
	if cfg.NeverExpire {
		log.Warn("TOKEN_TTL=never: session tokens do not expire")
	}

	var events service.EventPublisher
	if qcfg := config.LoadQueueConfig(); qcfg.Enabled {
		pub := queue.NewPublisher(qcfg, log)
		go pub.Run(ctx)
		go queue.NewConsumer(qcfg, log).Run(ctx)
		events = pub
	}

	adapter := service.NewAccounts(accounts, utils.NewHasher(cfg.BcryptCost))
	gate := service.NewGate(codec, adapter, service.GateOptions{
		Revocations:   revocations,
		LookupTimeout: cfg.LookupTimeout,
		Metrics:       m,
		Logger:        log,
	})
	life := service.NewLifecycle(codec, adapter, service.LifecycleOptions{
		Revocations: revocations,
		Events:      events,
		Metrics:     m,
		Logger:      log,
	})

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.Use(logging.RequestLogger(log))

	router.RegisterRoutes(e, m)
	router.RegisterAuth(e, router.AuthDeps{
		Cfg:       cfg,
		RateLimit: config.LoadRateLimitConfig(),
		Redis:     rdb,
		Log:       log,
		Gate:      gate,
		Auth:      handler.NewAuthHandler(cfg, life),
		Profile:   handler.NewProfileHandler(cfg, accounts, life),
		Posts:     handler.NewPostHandler(cfg, posts),
	})

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		log.Infof("listening on %s (env=%s)", addr, cfg.Env)
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return e.Shutdown(shutdownCtx)
}

// newRevocationList picks the revocation backend.  "none" returns a nil
// list: logout then only clears the cookie.
func newRevocationList(ctx context.Context, cfg config.Config, db *sql.DB, rdb *redis.Client, log logrus.FieldLogger) (repository.RevocationList, error) {
	switch cfg.Revocation {
	case config.RevocationRedis:
		if rdb == nil {
			return nil, errors.New("REVOCATION_BACKEND=redis but redis is unreachable")
		}
		return repository.NewRedisRevocations(rdb, ""), nil
	case config.RevocationMySQL:
		tokens := repository.NewTokenRepo(db)
		go purgeRevoked(ctx, tokens, log)
		return tokens, nil
	default:
		log.Warn("token revocation disabled: a token copied before logout stays valid until it expires")
		return nil, nil
	}
}

// purgeRevoked drops revocation rows whose tokens have expired anyway.
func purgeRevoked(ctx context.Context, tokens *repository.TokenRepo, log logrus.FieldLogger) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := tokens.PurgeExpired(ctx, now)
			if err != nil {
				log.WithError(err).Warn("purge revoked tokens failed")
				continue
			}
			if n > 0 {
				log.WithField("rows", n).Debug("purged revoked tokens")
			}
		}
	}
}
