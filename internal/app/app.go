package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/pricetag/internal/config"
	"github.com/hitoshi/pricetag/internal/database"
	"github.com/hitoshi/pricetag/internal/fontfit"
	"github.com/hitoshi/pricetag/internal/handler"
	"github.com/hitoshi/pricetag/internal/importer"
	"github.com/hitoshi/pricetag/internal/itemstore"
	"github.com/hitoshi/pricetag/internal/layout"
	"github.com/hitoshi/pricetag/internal/logger"
	"github.com/hitoshi/pricetag/internal/metrics"
	"github.com/hitoshi/pricetag/internal/middleware"
	"github.com/hitoshi/pricetag/internal/pdf"
	"github.com/hitoshi/pricetag/internal/repository"
	"github.com/hitoshi/pricetag/internal/security"
	"github.com/hitoshi/pricetag/internal/worker/cleanup"
	"github.com/hitoshi/pricetag/internal/workspace"
)

// cleanupInterval はワークスペース削除ジョブの実行間隔。
const cleanupInterval = 24 * time.Hour

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込みの失敗もJSONで記録できるよう、先にinfoレベルで初期化する
	logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("storage", cfg.StorageDriver),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// server はserveモードで組み立てた依存関係一式。
type server struct {
	handler     http.Handler
	manager     *workspace.Manager
	rateLimiter *middleware.RateLimiter
	closers     []func()
}

// close は組み立てたリソースを逆順に解放する。
func (s *server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildServer は設定から全依存関係をワイヤリングし、ルーターを構築する。
// 呼び出し側は使い終わったらcloseを呼ぶこと。
func buildServer(cfg *config.Config) (srv *server, err error) {
	srv = &server{}
	defer func() {
		if err != nil {
			srv.close()
			srv = nil
		}
	}()

	// 1. ワークスペース状態の保存先
	repo, health, err := openStateRepo(cfg, srv)
	if err != nil {
		return srv, err
	}

	// 2. ドメインサービスの初期化
	wsCfg, err := workspaceConfig(cfg)
	if err != nil {
		return srv, err
	}
	ids, err := itemstore.NewSnowflakeGenerator(cfg.SnowflakeNode)
	if err != nil {
		return srv, fmt.Errorf("failed to create id generator: %w", err)
	}

	var measurer fontfit.Measurer
	if m, err := fontfit.NewDefaultMeasurer(); err != nil {
		slog.Warn("font measurer unavailable, labels will use the initial font size",
			slog.String("error", err.Error()),
		)
	} else {
		measurer = m
		srv.closers = append(srv.closers, func() { m.Close() })
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	srv.manager = workspace.NewManager(repo, ids, measurer, wsCfg, collector, slog.Default())
	srv.closers = append(srv.closers, srv.manager.Close)

	// 3. 外部サービスのクライアント
	ssrfGuard := security.NewSSRFGuard(importer.SheetsHost)
	sheets := importer.NewSheetsClient(ssrfGuard, cfg.SheetsFetchTimeout, cfg.SheetsMaxSize, slog.Default())

	var renderer pdf.Renderer
	if client := pdf.NewClient(cfg.PDFRendererURL, cfg.PDFTimeout, slog.Default()); client.Enabled() {
		renderer = client
	} else {
		slog.Warn("PDF_RENDERER_URL is not set, PDF export is disabled")
	}

	// 4. ルーターの構築
	srv.rateLimiter = middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitExport),
	)
	srv.closers = append(srv.closers, srv.rateLimiter.Stop)

	srv.handler = handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       srv.rateLimiter,
		HealthChecker:     health,
		Metrics:           collector,
		Gatherer:          registry,
		Workspaces:        srv.manager,
		WorkspaceConfig: handler.WorkspaceHandlerConfig{
			CookieSecure: cfg.CookieSecure,
			CookieMaxAge: cfg.WorkspaceRetentionDays * 24 * 60 * 60,
		},
		Sanitizer:    security.NewTextSanitizer(),
		Sheets:       sheets,
		ImportConfig: handler.ImportHandlerConfig{MaxUploadSize: cfg.ImportMaxSize},
		PDF:          renderer,
	})
	return srv, nil
}

// openStateRepo はSTORAGE_DRIVERに応じたリポジトリを開く。
// memoryの場合、ヘルスチェッカーはnil（常にok）になる。
func openStateRepo(cfg *config.Config, srv *server) (repository.StateRepository, handler.HealthChecker, error) {
	if cfg.StorageDriver != config.StoragePostgres {
		slog.Warn("using in-memory storage, workspaces are lost on restart")
		return repository.NewMemoryStateRepo(), nil, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	srv.closers = append(srv.closers, func() { db.Close() })

	if err := db.Ping(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return repository.NewPostgresStateRepo(db), db, nil
}

// workspaceConfig は環境変数の値をワークスペースの設定に変換する。
func workspaceConfig(cfg *config.Config) (workspace.Config, error) {
	format, err := layout.ParsePageFormat(cfg.PageFormat)
	if err != nil {
		return workspace.Config{}, fmt.Errorf("invalid PAGE_FORMAT: %w", err)
	}
	margin, err := layout.ParseMargin(cfg.PageMargin)
	if err != nil {
		return workspace.Config{}, fmt.Errorf("invalid PAGE_MARGIN: %w", err)
	}
	fit := fontfit.Options{
		InitialSize: cfg.FontInitialSize,
		MinSize:     cfg.FontMinSize,
		Step:        cfg.FontStep,
		MaxSteps:    cfg.FontMaxSteps,
	}
	if err := fit.Validate(); err != nil {
		return workspace.Config{}, fmt.Errorf("invalid FONT_* settings: %w", err)
	}

	return workspace.Config{
		HistoryLimit: cfg.HistoryLimit,
		Grid:         layout.Grid{Columns: layout.DefaultColumns, ItemsPerPage: cfg.PageCapacity},
		Format:       format,
		Margin:       margin,
		FontFit:      fit,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	srv, err := buildServer(cfg)
	if err != nil {
		return err
	}
	defer srv.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// memoryドライバーではworkerが別プロセスのデータを消せないため、サーバー内で削除する
	if cfg.StorageDriver == config.StorageMemory {
		job := cleanup.NewCleanupJob(srv.manager, slog.Default())
		job.RetentionDays = cfg.WorkspaceRetentionDays
		go job.Start(ctx, cleanupInterval)
	}

	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     srv.handler,
		ReadTimeout: 15 * time.Second,
		// PDF変換の待ち時間を含める
		WriteTimeout: cfg.PDFTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 保持期間を過ぎたワークスペースの行を日次で削除する。postgresドライバー専用。
func runWorker(cfg *config.Config) error {
	if cfg.StorageDriver != config.StoragePostgres {
		return fmt.Errorf("worker requires STORAGE_DRIVER=%s, got %q", config.StoragePostgres, cfg.StorageDriver)
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established (worker)")

	job := cleanup.NewCleanupJob(repository.NewPostgresStateRepo(db), slog.Default())
	job.RetentionDays = cfg.WorkspaceRetentionDays

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Duration("interval", cleanupInterval),
		slog.Int("retention_days", cfg.WorkspaceRetentionDays),
	)
	job.Start(ctx, cleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("migrate requires DATABASE_URL")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.MigrateUp(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://127.0.0.1:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
