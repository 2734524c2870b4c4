// Command dreamcolord starts the DreamColor daemon: the gRPC API plus the
// HTTP surface for export downloads, health and metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/bekovrafik/DreamColor/internal/api"
	"github.com/bekovrafik/DreamColor/internal/config"
	"github.com/bekovrafik/DreamColor/internal/credential"
	pkgcrypto "github.com/bekovrafik/DreamColor/internal/crypto"
	"github.com/bekovrafik/DreamColor/internal/document"
	"github.com/bekovrafik/DreamColor/internal/genai"
	"github.com/bekovrafik/DreamColor/internal/limiter"
	"github.com/bekovrafik/DreamColor/internal/migrate"
	"github.com/bekovrafik/DreamColor/internal/pipeline"
	"github.com/bekovrafik/DreamColor/internal/repository"
	"github.com/bekovrafik/DreamColor/internal/repository/postgres"
	"github.com/bekovrafik/DreamColor/internal/repository/sqlite"
	grpcserver "github.com/bekovrafik/DreamColor/internal/server/grpc"
	httpserver "github.com/bekovrafik/DreamColor/internal/server/http"
	"github.com/bekovrafik/DreamColor/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// costly calls hit the generation provider or render documents
var rateLimited = []string{"Chat", "Speak", "StartGeneration", "RegeneratePage", "Export"}

// main parses configuration, opens the store and serves the API until a signal arrives.
func main() {
	cfg, err := config.LoadServer(os.Args[0], os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		config.Exitf("%v", err)
	}

	var logger *zap.Logger
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer func() { _ = logger.Sync() }()

	secret, err := cfg.LoadSecret()
	if err != nil {
		logger.Fatal("load secret", zap.Error(err))
	}
	signKey, err := pkgcrypto.Subkey(secret, "token-signing")
	if err != nil {
		logger.Fatal("derive signing key", zap.Error(err))
	}
	authSvc := service.NewAuthService(signKey, cfg.TokenTTL)

	if cfg.PrintToken != "" {
		tok, err := authSvc.IssueDeviceToken(cfg.PrintToken)
		if err != nil {
			config.Exitf("issue token: %v", err)
		}
		fmt.Println(tok.AccessToken)
		return
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.Store),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, ping, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer closeStore()

	// Services
	repo := repository.NewStateRepo(kv)
	ledger, err := service.NewLedgerService(ctx, repo, logger)
	if err != nil {
		logger.Fatal("ledger", zap.Error(err))
	}
	books, err := service.NewBookService(ctx, repo, logger)
	if err != nil {
		logger.Fatal("books", zap.Error(err))
	}
	adv, err := service.NewAdventure(ctx, repo, logger)
	if err != nil {
		logger.Fatal("adventure", zap.Error(err))
	}
	vault, err := credential.NewVault(repo, secret, cfg.APIKey, logger)
	if err != nil {
		logger.Fatal("credential vault", zap.Error(err))
	}

	gen := genai.New(genai.Config{
		BaseURL:     cfg.GenAIBaseURL,
		TextModel:   cfg.TextModel,
		ImageModel:  cfg.ImageModel,
		SpeechModel: cfg.SpeechModel,
		Voice:       cfg.Voice,
		HTTPClient:  &http.Client{Timeout: cfg.HTTPTimeout},
	}, vault)

	orch := pipeline.NewOrchestrator(pipeline.Collaborators{Text: gen, Images: gen, Credentials: vault}, ledger, cfg.SceneAttempts, logger)
	jobs := pipeline.NewManager(orch, ledger, adv, logger)
	studio := service.NewStudio(ledger, books, adv, document.NewAssembler(logger), cfg.ExportDir(), logger)

	// gRPC server with interceptors
	authn := grpcserver.NewAuthenticator(authSvc, limiter.NewLockout(15*time.Minute, 5, 15*time.Minute), logger)
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			authn.Unary(),
			grpcserver.RateLimitUnary(limiter.NewRate(cfg.RatePerMinute, cfg.RateBurst), rateLimited...),
		),
		grpc.ChainStreamInterceptor(
			grpcserver.RecoverStream(logger),
			grpcserver.LoggingStream(logger),
			authn.Stream(),
		),
	}
	if cfg.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)

	app := grpcserver.New(grpcserver.Deps{
		Ledger:    ledger,
		Books:     books,
		Adventure: adv,
		Chat:      service.NewBrainstorm(adv, gen, logger),
		Speech:    service.NewSpeech(gen, logger),
		Jobs:      jobs,
		Studio:    studio,
		Vault:     vault,
	}, logger)
	api.RegisterDreamColorServer(s, app)

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpserver.NewRouter(studio, authSvc, ping, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Listen
	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc listening", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLSCert != ""))
		errCh <- s.Serve(lis)
	}()
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for stop
	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		exitCode = 1
	}

	// graceful shutdown
	hs.Shutdown()
	if _, err := jobs.Cancel(); err == nil {
		logger.Info("running job canceled for shutdown")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.Stop()
	}
	if err := jobs.Wait(shutdownCtx); err != nil {
		logger.Warn("job still running at exit", zap.Error(err))
	}

	logger.Info("shutdown complete")
	if exitCode != 0 {
		_ = logger.Sync()
		os.Exit(exitCode)
	}
}

// openStore opens the configured KV backend and returns its readiness probe and closer.
func openStore(ctx context.Context, cfg config.Server) (repository.KV, httpserver.Pinger, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		if err := migrate.UpPostgres(ctx, cfg.DSN); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("pgxpool: %w", err)
		}
		return postgres.NewKVRepo(db), db.Ping, db.Close, nil
	default:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		st, err := sqlite.Open(ctx, cfg.SQLitePath())
		if err != nil {
			return nil, nil, nil, err
		}
		return st, st.Ping, func() { _ = st.Close() }, nil
	}
}
