package main

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	authweb "github.com/goliatone/go-auth-web"
	"github.com/goliatone/go-auth-web/activitymap"
	"github.com/goliatone/go-auth-web/config"
	"github.com/goliatone/go-auth-web/logging"
	"github.com/goliatone/go-auth-web/middleware/csrf"
	"github.com/goliatone/go-auth-web/observability"
	"github.com/goliatone/go-auth-web/provider/firebase"
	"github.com/goliatone/go-auth-web/repository"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// app holds the wired components of a running server.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	server   router.Server[*fiber.App]
	obs      *observability.Server
	db       *bun.DB
	activity *repository.ActivityStore
	ready    atomic.Bool
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.Setup(logging.Options{
		Service: "authweb",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	provider, err := firebase.NewIdentityProvider(ctx, firebase.Config{
		APIKey:               cfg.Firebase.APIKey,
		Endpoint:             cfg.Firebase.Endpoint,
		ContinueURL:          cfg.Firebase.ContinueURL,
		LegacyGenderPhotoURL: cfg.Firebase.LegacyGenderPhotoURL,
	})
	if err != nil {
		return nil, err
	}

	sinks := authweb.MultiSink{activitymap.LogSink(logger.With("component", "activity"))}

	if cfg.MetricsAddr != "" {
		a.obs = observability.NewServer(cfg.MetricsAddr, logger.With("component", "observability"), a.ready.Load)
		sinks = append(sinks, authweb.NewMetricsSink(a.obs.Registry()))
	}

	if cfg.ActivityDSN != "" {
		db, err := repository.OpenSQLite(cfg.ActivityDSN)
		if err != nil {
			return nil, err
		}
		store := repository.NewActivityStore(db)
		if err := store.Init(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.db = db
		a.activity = store
		sinks = append(sinks, store)
	}

	views, err := viewsFS(cfg.ViewsDir)
	if err != nil {
		return nil, err
	}
	engine := django.NewFileSystem(http.FS(views), ".html")
	engine.Reload(cfg.Debug)

	a.server = router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:          true,
			StrictRouting:         false,
			PassLocalsToViews:     true,
			DisableStartupMessage: true,
			Views:                 engine,
		}))
	})

	r := a.server.Router()
	r.Use(mflash.New(mflash.ConfigDefault))
	r.Use(csrf.New(csrf.Config{
		SecureKey:  []byte(cfg.CSRF.SecureKey),
		Expiration: cfg.CSRF.Expiration,
	}))

	opts := []authweb.AuthControllerOption{
		authweb.WithAuthProvider(provider),
		authweb.WithAuthLogger(logger.With("component", "auth")),
		authweb.WithAuthDebug(cfg.Debug),
		authweb.WithAuthRedirectDelay(cfg.RedirectDelay),
		authweb.WithAuthCallTimeout(cfg.CallTimeout),
		authweb.WithAuthActivity(sinks),
	}
	authweb.RegisterAuthRoutes(r, opts...)

	return a, nil
}

func viewsFS(dir string) (fs.FS, error) {
	if dir == "" {
		return authweb.GetViewsFS(), nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "views directory not accessible").
			WithMetadata(map[string]any{"views_dir": dir})
	}
	if !info.IsDir() {
		return nil, goerrors.New("views path is not a directory", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"views_dir": dir})
	}
	return os.DirFS(dir), nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	logger := a.logger
	logger.Info("starting authweb",
		"http_addr", cfg.HTTPAddr,
		"metrics_addr", cfg.MetricsAddr,
		"activity_log", cfg.ActivityDSN != "",
	)

	var obsErr <-chan error
	if a.obs != nil {
		if obsErr, err = a.obs.Start(); err != nil {
			return err
		}
	}

	httpErr := make(chan error, 1)
	go func() {
		if err := a.server.Serve(cfg.HTTPAddr); err != nil {
			httpErr <- err
		}
	}()
	a.ready.Store(true)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-httpErr:
		logger.Error("http server failed", "error", err)
		a.shutdown()
		return goerrors.Wrap(err, goerrors.CategoryInternal, "http server failed")
	case err := <-obsErr:
		logger.Error("observability server failed", "error", err)
		a.shutdown()
		return err
	}

	a.shutdown()
	logger.Info("shutdown complete")
	return nil
}

func (a *app) shutdown() {
	a.ready.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Warn("error stopping http server", "error", err)
	}
	if a.obs != nil {
		if err := a.obs.Stop(ctx); err != nil {
			a.logger.Warn("error stopping observability server", "error", err)
		}
	}
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("error closing activity database", "error", err)
		}
	}
}
