package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/blockpie/internal/archive"
	"github.com/goodnatureofminers/blockpie/internal/attribution"
	"github.com/goodnatureofminers/blockpie/internal/checkpoint"
	"github.com/goodnatureofminers/blockpie/internal/explorer"
	"github.com/goodnatureofminers/blockpie/internal/ledger"
	"github.com/goodnatureofminers/blockpie/internal/metrics"
	"github.com/goodnatureofminers/blockpie/internal/model"
	"github.com/goodnatureofminers/blockpie/internal/poller"
	"github.com/goodnatureofminers/blockpie/internal/render"
	"github.com/goodnatureofminers/blockpie/internal/repository/clickhouse"
	"github.com/goodnatureofminers/blockpie/internal/transport"
)

const network = "veil"

type config struct {
	ExplorerURL       string        `long:"explorer-url" env:"BLOCKPIE_EXPLORER_URL" default:"https://explorer-api.veil-project.com/api/" description:"explorer API base url"`
	Interval          int           `long:"interval" env:"BLOCKPIE_INTERVAL" default:"300" description:"polling interval in seconds"`
	Verbose           bool          `long:"verbose" short:"v" env:"BLOCKPIE_VERBOSE" description:"log every processed block"`
	LedgerPath        string        `long:"ledger-path" env:"BLOCKPIE_LEDGER_PATH" default:"miner_data.csv" description:"csv ledger with per-miner totals"`
	CheckpointPath    string        `long:"checkpoint-path" env:"BLOCKPIE_CHECKPOINT_PATH" description:"bbolt file keeping the cursor across restarts"`
	StartHeight       *uint64       `long:"start-height" env:"BLOCKPIE_START_HEIGHT" description:"height to start tracking from when no checkpoint exists"`
	HTTPTimeout       time.Duration `long:"http-timeout" env:"BLOCKPIE_HTTP_TIMEOUT" default:"10s" description:"explorer request timeout"`
	RequestsPerSecond int           `long:"requests-per-second" env:"BLOCKPIE_REQUESTS_PER_SECOND" default:"10" description:"explorer request rate limit, 0 disables it"`
	BlockCacheSize    int           `long:"block-cache-size" env:"BLOCKPIE_BLOCK_CACHE_SIZE" default:"10000" description:"number of cached explorer blocks, 0 disables the cache"`
	Aliases           []string      `long:"alias" env:"BLOCKPIE_ALIASES" env-delim:"," description:"miner alias as PREFIX:Name, repeatable"`
	HTTPAddr          string        `long:"http-addr" env:"BLOCKPIE_HTTP_ADDR" default:":2112" description:"metrics and snapshot listen address, empty disables it"`
	ClickhouseDSN     string        `long:"clickhouse-dsn" env:"BLOCKPIE_CLICKHOUSE_DSN" description:"clickhouse dsn for the attribution archive"`
}

func main() {
	cfg := config{}
	if _, err := flags.Parse(&cfg); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "failed to parse flags: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aliases, err := parseAliases(cfg.Aliases)
	if err != nil {
		logger.Fatal("Invalid alias", zap.Error(err))
	}

	store, err := ledger.NewStore(cfg.LedgerPath, logger)
	if err != nil {
		logger.Fatal("Failed to create ledger", zap.Error(err))
	}
	if err := store.Load(); err != nil {
		logger.Fatal("Failed to load ledger", zap.String("path", cfg.LedgerPath), zap.Error(err))
	}
	logger.Info("Ledger loaded", zap.String("path", store.Path()), zap.Uint64("total_blocks", store.Total()))

	deps := poller.Dependencies{
		Attributor: attribution.NewAttributor(aliases),
		Store:      store,
		Metrics:    metrics.NewPoller(network),
	}
	pollerCfg := poller.Config{
		Interval: time.Duration(cfg.Interval) * time.Second,
	}

	if cfg.CheckpointPath != "" {
		checkpoints, err := checkpoint.Open(cfg.CheckpointPath, logger)
		if err != nil {
			logger.Fatal("Failed to open checkpoint store", zap.Error(err))
		}
		defer func() {
			if err := checkpoints.Close(); err != nil {
				logger.Error("Failed to close checkpoint store", zap.Error(err))
			}
		}()
		cursor, ok, err := checkpoints.Load()
		if err != nil {
			logger.Fatal("Failed to load checkpoint", zap.Error(err))
		}
		if ok {
			pollerCfg.Cursor = cursor
			if cfg.StartHeight != nil {
				logger.Warn("Checkpoint found, ignoring start height", zap.Uint64("start_height", *cfg.StartHeight))
			}
		}
		deps.Checkpoint = checkpoints
	}
	if !pollerCfg.Cursor.Started && cfg.StartHeight != nil {
		pollerCfg.Cursor.Start(*cfg.StartHeight)
	}

	client, err := explorer.NewClient(explorer.Config{
		BaseURL:           cfg.ExplorerURL,
		Timeout:           cfg.HTTPTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		CacheSize:         cfg.BlockCacheSize,
	}, metrics.NewExplorerClient(network), logger)
	if err != nil {
		logger.Fatal("Failed to create explorer client", zap.Error(err))
	}
	deps.Client = client

	if cfg.ClickhouseDSN != "" {
		repo, err := clickhouse.NewRepository(cfg.ClickhouseDSN, metrics.NewClickhouseRepository(network))
		if err != nil {
			logger.Fatal("Failed to connect to clickhouse", zap.Error(err))
		}
		defer func() {
			if err := repo.Close(); err != nil {
				logger.Error("Failed to close clickhouse connection", zap.Error(err))
			}
		}()

		writer := archive.NewWriter(repo, logger)
		writer.Start(ctx)
		defer writer.Stop()
		reconcile(ctx, writer, store.Snapshot(), logger)
		deps.Archive = writer
	}

	snapshot := transport.NewSnapshotHandler(logger)
	deps.Renderer = render.Multi{render.NewTable(os.Stdout), snapshot}

	if cfg.HTTPAddr != "" {
		serveHTTP(ctx, cfg.HTTPAddr, snapshot, logger)
	}

	service, err := poller.NewService(pollerCfg, deps, logger)
	if err != nil {
		logger.Fatal("Failed to create poller", zap.Error(err))
	}
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Poller stopped", zap.Error(err))
	}
	logger.Info("Shutting down", zap.Uint64("last_processed_height", service.Cursor().LastProcessedHeight))
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if !verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return zapCfg.Build()
}

// parseAliases merges PREFIX:Name pairs over the built-in aliases.
func parseAliases(values []string) (map[string]string, error) {
	aliases := attribution.DefaultAliases()
	for _, value := range values {
		prefix, name, ok := strings.Cut(value, ":")
		prefix, name = strings.TrimSpace(prefix), strings.TrimSpace(name)
		if !ok || name == "" || utf8.RuneCountInString(prefix) != attribution.PrefixLength {
			return nil, fmt.Errorf("%q: want %d character PREFIX:Name", value, attribution.PrefixLength)
		}
		aliases[prefix] = name
	}
	return aliases, nil
}

func reconcile(ctx context.Context, writer *archive.Writer, entries []model.AggregateEntry, logger *zap.Logger) {
	mismatches, err := writer.Reconcile(ctx, entries)
	if err != nil {
		logger.Warn("Archive reconciliation skipped", zap.Error(err))
		return
	}
	if len(mismatches) == 0 {
		logger.Info("Archive matches ledger", zap.Int("miners", len(entries)))
	}
}

func serveHTTP(ctx context.Context, addr string, snapshot *transport.SnapshotHandler, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle(transport.MinersPath, snapshot)
	mux.HandleFunc("/healthz", snapshot.Health)

	s := &http.Server{
		Addr:              addr,
		Handler:           cors.Default().Handler(mux),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down the http server")
		if err := s.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown http server", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to listen and serve", zap.Error(err))
		}
	}()
}
