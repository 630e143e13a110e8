package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"accountd/modules/account"
	"accountd/pkg/config"
	"accountd/pkg/cookie"
	"accountd/pkg/email"
	"accountd/pkg/httpserver"
	"accountd/pkg/logger"
	"accountd/pkg/oauth"
	"accountd/pkg/password"
	"accountd/pkg/pg"
	"accountd/pkg/queue"
	"accountd/pkg/token"
)

type appConfig struct {
	Logger  logger.Config
	HTTP    httpserver.Config
	DB      pg.Config
	Cookie  cookie.Config
	Email   email.Config
	Queue   queue.Config
	Account account.Config
	Google  oauth.GoogleConfig
	GitHub  oauth.GitHubConfig
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithLevel(cfg.Logger.Level),
		logger.WithFormat(cfg.Logger.Format),
	)

	if err := run(cfg, log); err != nil {
		log.Error("accountd exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg appConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.DB, log); err != nil {
		return err
	}

	cookies, err := cookie.NewFromConfig(cfg.Cookie)
	if err != nil {
		return err
	}

	var sender email.Sender
	if cfg.Email.PostmarkServerToken != "" {
		sender, err = email.NewPostmarkClient(cfg.Email)
		if err != nil {
			return err
		}
	} else {
		log.Warn("postmark not configured, writing emails to disk",
			slog.String("dir", cfg.Email.DevDir))
		sender = email.NewDevSender(cfg.Email.DevDir)
	}

	backoff := cfg.Queue.BackoffPolicy()
	queueStorage := queue.NewPGStorage(pool, backoff)

	enqueuer, err := queue.NewEnqueuer(queueStorage)
	if err != nil {
		return err
	}

	worker, err := queue.NewWorker(queueStorage,
		queue.WithPollInterval(cfg.Queue.PollInterval),
		queue.WithBatchSize(cfg.Queue.BatchSize),
		queue.WithMaxConcurrent(cfg.Queue.MaxConcurrent),
		queue.WithJobTimeout(cfg.Queue.JobTimeout),
		queue.WithDoneRetention(cfg.Queue.DoneRetention),
		queue.WithWorkerLogger(log),
	)
	if err != nil {
		return err
	}

	jobs := account.NewEmailJobs(sender, cfg.Account.PublicURL, cfg.Email.SupportEmail)
	worker.RegisterHandlers(jobs.Handlers()...)

	hasher := password.NewHasher()
	tokens := token.NewService(token.NewPGStore(pool))

	accountStore := account.NewPGStore(pool)
	accountSvc := account.NewService(cfg.Account, accountStore, hasher, tokens, enqueuer,
		account.WithServiceLogger(log),
	)

	oauthSvc := oauth.NewService(
		oauth.NewPGStateStore(pool),
		[]oauth.ProviderAdapter{
			oauth.NewGoogleAdapter(cfg.Google),
			oauth.NewGitHubAdapter(cfg.GitHub),
		},
		oauth.WithLogger(log),
	)

	router := account.NewRouter(cfg.Account, accountSvc, oauthSvc, cookies, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/health", httpserver.HealthCheckHandler(ctx, log, pg.Healthcheck(pool)))
	r.Mount("/account", router.Handle())

	srv := httpserver.New(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx, r) })
	g.Go(worker.Run(ctx))
	g.Go(func() error { return runCleanup(ctx, log, tokens, oauthSvc) })

	return g.Wait()
}

// runCleanup periodically prunes spent rows the hot paths never revisit:
// tokens long past expiry and oauth states whose redirect never came back.
func runCleanup(ctx context.Context, log *slog.Logger, tokens *token.Service, oauthSvc *oauth.Service) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n, err := tokens.PurgeExpired(ctx, 24*time.Hour); err != nil {
				log.Error("failed to purge expired tokens", logger.Error(err))
			} else if n > 0 {
				log.Info("purged expired tokens", slog.Int64("count", n))
			}

			if n, err := oauthSvc.PurgeExpired(ctx); err != nil {
				log.Error("failed to purge expired oauth states", logger.Error(err))
			} else if n > 0 {
				log.Info("purged expired oauth states", slog.Int64("count", n))
			}
		}
	}
}
