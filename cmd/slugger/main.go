package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/httplog"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/undeadops/slugger/internal/api"
	"github.com/undeadops/slugger/internal/auth"
	"github.com/undeadops/slugger/internal/config"
	"github.com/undeadops/slugger/internal/db"
	"github.com/undeadops/slugger/internal/postgres"
	"github.com/undeadops/slugger/internal/secrets"
	"github.com/undeadops/slugger/internal/store"
	"github.com/undeadops/slugger/internal/store/memory"
)

const (
	appName = "slugger"
)

var version string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && (args[0] == "serve" || args[0] == "token") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "token":
		err = runToken(ctx, args, os.Stdout)
	default:
		err = run(ctx, args)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	logger := httplog.NewLogger(appName, httplog.Options{
		JSON:     true,
		Concise:  true,
		LogLevel: level,
		Tags: map[string]string{
			"version": version,
			"app":     appName,
		},
	})

	logger.Info().Str("version", version).Msgf("Starting %s version %s", appName, version)

	g, ctx := errgroup.WithContext(ctx)

	logger.Info().Str("backend", cfg.Backend).Msg("Setting up storage backend...")
	kv, closeStore, err := openStore(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer closeStore()

	router := api.Router(
		api.NewRedirectHandler(store.NewRedirects(kv, logger), logger),
		auth.NewVerifier(secretSource(cfg.SecretsDir)),
		logger,
		api.Options{
			HomeURL:        cfg.HomeURL,
			AllowedOrigins: cfg.AllowedOrigins,
		},
	)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		BaseContext:  requestBaseContext(ctx),
	}

	g.Go(func() error {
		logger.Info().Msgf("Starting %s server on port %s", appName, cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		logger.Info().Msgf("Shutting down %s server", appName)
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// requestBaseContext keeps request contexts alive while Shutdown drains them;
// only values are inherited from ctx.
func requestBaseContext(ctx context.Context) func(net.Listener) context.Context {
	return func(net.Listener) context.Context {
		return context.WithoutCancel(ctx)
	}
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (store.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendDynamoDB:
		client := &db.Client{
			Region:      cfg.Region,
			Table:       cfg.Table,
			DDBEndpoint: cfg.DDBEndpoint,
			DebugMode:   cfg.Debug,
			Logger:      logger,
		}
		if err := db.SetupDB(ctx, client); err != nil {
			return nil, nil, err
		}
		return client, noop, nil

	case config.BackendPostgres:
		conn, err := postgres.Connect(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return postgres.NewStore(conn), conn.Close, nil

	default:
		logger.Warn().Msg("Using in-memory storage; redirects are lost on restart")
		return memory.New(), noop, nil
	}
}

// secretSource looks in the secrets directory first, then the environment.
func secretSource(dir string) secrets.Chain {
	var chain secrets.Chain
	if dir != "" {
		chain = append(chain, secrets.Dir(dir))
	}
	return append(chain, secrets.NewEnv())
}

// runToken prints an operator token signed with the server's secret.
func runToken(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(appName+" token", flag.ContinueOnError)
	user := fs.String("user", "", "user name to embed in the token")
	secretsDir := fs.String("secrets-dir", os.Getenv("SECRETS_DIR"), "directory holding secret files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("-user is required")
	}

	secret, err := secretSource(*secretsDir).Secret(ctx, auth.SecretName)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", auth.SecretName, err)
	}

	token, err := auth.NewSigner(secret).Issue(*user)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, token)
	return err
}
