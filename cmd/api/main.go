package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"inkpad/api/internal/access"
	"inkpad/api/internal/app"
	"inkpad/api/internal/chunk"
	"inkpad/api/internal/config"
	"inkpad/api/internal/docstore"
	"inkpad/api/internal/editor"
	"inkpad/api/internal/export"
	"inkpad/api/internal/format"
	"inkpad/api/internal/history"
	"inkpad/api/internal/live"
	"inkpad/api/internal/logging"
	"inkpad/api/internal/mathrender"
	"inkpad/api/internal/search"
	"inkpad/api/internal/session"
	"inkpad/api/internal/store"
)

type partStore interface {
	ListParts(ctx context.Context, documentID string) ([]store.DocumentPart, error)
	Apply(ctx context.Context, documentID string, ops []store.PartOp) error
	ListSummaries(ctx context.Context) ([]store.DocumentSummary, error)
	SearchParts(ctx context.Context, text string, limit int) ([]store.PartHit, error)
	UpsertUser(ctx context.Context, user store.User) error
	GetUsers(ctx context.Context, ids []string) ([]store.User, error)
	Ping(ctx context.Context) error
	Close() error
}

func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (partStore, error) {
	if cfg.StoreBackend == "sqlite" {
		logger.Info().Str("path", cfg.SQLitePath).Msg("using sqlite store")
		s, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir, logger); err != nil {
		db.Close()
		return nil, err
	}
	return store.NewPostgresStore(db), nil
}

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	parts, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("store initialization failed")
	}
	defer parts.Close()

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("failed to create repos dir")
	}

	gate := access.Gate{AdminEmail: cfg.AdminEmail}
	policy := chunk.Policy{LimitBytes: cfg.ChunkLimitBytes, WordBoundary: cfg.ChunkWordBoundary}
	hist := history.New(cfg.ReposDir, logger)

	var sessions *session.RedisStore
	var locker docstore.Locker = docstore.NewLocalLocker()
	if strings.TrimSpace(cfg.RedisURL) != "" {
		logger.Info().Msg("using redis for sessions and document write locks")
		sessions, err = session.NewRedisStore(cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer sessions.Close()
		locker = session.NewRedisLocker(sessions.Client(), cfg.RedisKeyPrefix, cfg.WriteLockTTL)
	}

	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meili.Close()
	}

	var searchService *search.Service
	docs := docstore.New(parts, gate, policy,
		docstore.WithLocker(locker),
		docstore.WithUsers(parts),
		docstore.WithLogger(logger),
		docstore.WithObserver(hist),
		docstore.WithObserver(docstore.ObserverFunc(func(ctx context.Context, doc docstore.Document, by access.Subject) {
			searchService.DocumentSaved(ctx, doc, by)
		})),
	)
	searchService = search.NewService(meili, search.NewSQLSearcher(parts), docs, gate, logger)
	if meili != nil {
		go func() {
			// give the health loop a moment to see the server
			time.Sleep(2 * time.Second)
			searchService.ReindexAll(context.Background())
		}()
	}

	formatter := format.New(mathrender.NewAdapter(nil, cfg.EquationTextScale, logger))
	exportOpts := []export.Option{}
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		archive, err := export.NewArchive(ctx, export.ArchiveConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			URLTTL:    cfg.ExportURLTTL,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("export archive unavailable")
		} else {
			exportOpts = append(exportOpts, export.WithArchive(archive))
		}
	}

	liveHandler := live.NewHandler(docs, editor.AutosaveOptions{
		Debounce:   cfg.AutosaveDebounce,
		MaxRetries: cfg.AutosaveMaxRetries,
		Backoff:    cfg.AutosaveBackoff,
	}, corsOrigins(cfg.CORSOrigin), logger)

	deps := app.Deps{
		Docs:      docs,
		Store:     parts,
		Users:     parts,
		History:   hist,
		Search:    searchService,
		Export:    export.NewService(docs, formatter, exportOpts...),
		Formatter: formatter,
		Live:      liveHandler,
	}
	if sessions != nil {
		deps.Sessions = sessions
	}
	if meili != nil {
		deps.Index = meili
	}
	service := app.New(cfg, deps, logger)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("inkpad API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}

func corsOrigins(origin string) []string {
	if origin == "" || origin == "*" {
		return nil
	}
	var out []string
	for _, o := range strings.Split(origin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
