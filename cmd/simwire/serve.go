package main

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/simwire/simwire/internal/config"
	"github.com/simwire/simwire/internal/errors"
	"github.com/simwire/simwire/pkg/eventqueue"
	"github.com/simwire/simwire/pkg/region"
	"github.com/simwire/simwire/pkg/server"
	"github.com/simwire/simwire/pkg/terrainstore"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		udpAddr    string
		httpAddr   string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the region simulator",
		Long: `Run the region simulator.

Circuits are served over UDP. The HTTP listener carries the event
queue under /caps and Prometheus metrics.

Configuration is read from --config, or simwire.yaml in the working
directory when present, and falls back to built-in defaults.

Examples:
  simwire serve
  simwire serve --config /etc/simwire/simwire.yaml
  simwire serve --udp 0.0.0.0:9000 --http 0.0.0.0:9080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			errorOutput.jsonLogs = cfg.Log.Format == "json"
			if udpAddr != "" {
				cfg.UDP.Address = udpAddr
			}
			if httpAddr != "" {
				cfg.HTTP.Address = httpAddr
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to simwire.yaml")
	cmd.Flags().StringVar(&udpAddr, "udp", "", "UDP listen address (default from config)")
	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address, empty string in config disables")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if config.Exists(".") {
		return config.Load(".")
	}
	return config.New(), nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	store, err := openStore(ctx, cfg.Terrain)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics := server.NewMetrics(server.WithRegistry(prometheus.DefaultRegisterer))
	queues := eventqueue.NewManager(cfg.EventQueueConfig(),
		eventqueue.WithLogger(logger),
		eventqueue.WithRegisterer(prometheus.DefaultRegisterer))

	rc, err := cfg.RegionConfig()
	if err != nil {
		return err
	}
	reg := region.New(rc, store,
		region.WithLogger(logger),
		region.WithEventQueues(queues))
	agents, err := cfg.Agents()
	if err != nil {
		return err
	}
	for _, a := range agents {
		reg.ExpectAgent(a)
	}

	srv := server.New(cfg.ServerConfig(),
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithAuthorizer(reg),
		server.WithEventQueue(queues))
	if err := reg.Attach(srv); err != nil {
		return err
	}

	printBanner()
	info("region    %s (%d, %d)", reg.Config().Name, reg.Config().GridX, reg.Config().GridY)
	info("udp       %s", cfg.UDP.Address)
	if cfg.HTTP.Address != "" {
		info("http      %s", cfg.HTTP.Address)
	}
	info("terrain   %s store", cfg.Terrain.Store)
	fmt.Println()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if cfg.HTTP.Address != "" {
		hs := &http.Server{
			Addr:              cfg.HTTP.Address,
			Handler:           httpRoutes(cfg, queues),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			return serveHTTP(gctx, hs)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	success("Shut down cleanly")
	return nil
}

func httpRoutes(cfg *config.Config, queues *eventqueue.Manager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Mount("/caps", queues.Routes())
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return r
}

// serveHTTP runs hs until ctx is done, then shuts it down gracefully.
func serveHTTP(ctx context.Context, hs *http.Server) error {
	ln, err := net.Listen("tcp", hs.Addr)
	if err != nil {
		return errors.New(errors.CodeHTTPListen).
			WithDetail("Could not listen on " + hs.Addr).
			Wrap(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- hs.Serve(ln)
	}()

	select {
	case err := <-done:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-done
	return nil
}

// openStore builds the configured terrain store.
func openStore(ctx context.Context, cfg config.TerrainConfig) (terrainstore.Store, error) {
	switch cfg.Store {
	case config.StoreSQL:
		dialect, err := terrainstore.ParseDialect(cfg.SQL.Driver)
		if err != nil {
			return nil, errors.New(errors.CodeStoreOpen).Wrap(err)
		}
		db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, errors.New(errors.CodeStoreOpen).Wrap(err)
		}
		store := terrainstore.NewSQLStore(db,
			terrainstore.WithSQLDialect(dialect),
			terrainstore.WithSQLTableName(cfg.SQL.Table))
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, errors.New(errors.CodeStoreOpen).
				WithDetail("Could not create the terrain table").
				Wrap(err)
		}
		return &sqlStoreCloser{SQLStore: store, db: db}, nil

	case config.StoreS3:
		opts := s3.Options{
			Region:      cfg.S3.Region,
			Credentials: envCredentials(),
		}
		if cfg.S3.Endpoint != "" {
			opts.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			opts.UsePathStyle = true
		}
		return terrainstore.NewS3Store(s3.New(opts), cfg.S3.Bucket, cfg.S3.Prefix), nil

	default:
		return terrainstore.NewMemoryStore(), nil
	}
}

// sqlStoreCloser closes the database with the store.
type sqlStoreCloser struct {
	*terrainstore.SQLStore
	db *sql.DB
}

func (s *sqlStoreCloser) Close() error {
	s.SQLStore.Close()
	return s.db.Close()
}

// envCredentials reads static credentials from the standard AWS
// environment variables.
func envCredentials() aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		creds := aws.Credentials{
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "EnvironmentVariables",
		}
		if strings.TrimSpace(creds.AccessKeyID) == "" || creds.SecretAccessKey == "" {
			return aws.Credentials{}, fmt.Errorf("simwire: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are not set")
		}
		return creds, nil
	})
}
