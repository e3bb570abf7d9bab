package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/config"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/cache"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/erp"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/inventorypoint"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/inventorypoint/dto"
	ipListenerPkg "github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/inventorypoint/listener"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/inventorypoint/publisher"
	ipRepoPkg "github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/inventorypoint/repository"
	ipUCPkg "github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/inventorypoint/usecase"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/merge"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/migration"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/normalize"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/observability/metrics"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/observability/tracing"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/region"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/validate"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	exitOK         = 0
	exitValidation = 1
	exitUpstream   = 2
)

const usage = `usage:
  sync --date YYYY-MM-DD
  sync --days N
  sync --backfill FROM TO
  listen
  migrate`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage)
		return exitValidation
	}

	_ = godotenv.Load() // Load .env file if it exists
	cfg, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitValidation
	}

	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = "console"
		logConfig.Level = "debug"
	}
	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	shutdownTracing, err := tracing.NewProvider(tracing.Config{
		Enabled:          cfg.Tracing.Enabled,
		ServiceName:      cfg.Tracing.ServiceName,
		Environment:      cfg.Server.AppEnv,
		ExporterEndpoint: cfg.Tracing.ExporterEndpoint,
		ExporterProtocol: cfg.Tracing.ExporterProtocol,
		SamplingRatio:    cfg.Tracing.SamplingRatio,
	}, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize tracing", zap.Error(err))
		return exitValidation
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			appLogger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "migrate":
		return runMigrate(ctx, cfg, appLogger)
	case "sync":
		dates, err := parseDates(args[1:], time.Now())
		if err != nil {
			fmt.Fprintf(stderr, "%v\n%s\n", err, usage)
			return exitValidation
		}
		return runSync(ctx, cfg, appLogger, dates, stdout)
	case "listen":
		return runListen(ctx, cfg, appLogger)
	default:
		fmt.Fprintln(stderr, usage)
		return exitValidation
	}
}

// parseDates resolves exactly one of --date, --days or --backfill FROM TO.
func parseDates(args []string, now time.Time) ([]time.Time, error) {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	date := fs.String("date", "", "single data date")
	days := fs.Int("days", 0, "last N dates ending yesterday")
	backfill := fs.String("backfill", "", "first date of an inclusive range; the last date follows as an argument")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := 0
	for _, ok := range []bool{*date != "", *days != 0, *backfill != ""} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New("exactly one of --date, --days or --backfill is required")
	}

	switch {
	case *date != "":
		if fs.NArg() != 0 {
			return nil, fmt.Errorf("unexpected arguments %v", fs.Args())
		}
		d, err := dto.ParseDate(*date)
		if err != nil {
			return nil, err
		}
		return []time.Time{d}, nil
	case *days != 0:
		return dto.DatesForDays(*days, now)
	default:
		if fs.NArg() != 1 {
			return nil, errors.New("--backfill needs FROM and TO")
		}
		from, err := dto.ParseDate(*backfill)
		if err != nil {
			return nil, err
		}
		to, err := dto.ParseDate(fs.Arg(0))
		if err != nil {
			return nil, err
		}
		return dto.DatesBetween(from, to)
	}
}

func connectPostgres(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Postgres.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second)
	return db, nil
}

func runMigrate(ctx context.Context, cfg *config.Config, appLogger *zap.Logger) int {
	db, err := connectPostgres(cfg)
	if err != nil {
		appLogger.Error("Could not connect to database", zap.Error(err))
		return exitValidation
	}
	defer db.Close()

	if err := migration.Up(ctx, db); err != nil {
		appLogger.Error("migration failed", zap.Error(err))
		return exitValidation
	}
	appLogger.Info("migrations applied", zap.String("db_name", cfg.Postgres.DBName))
	return exitOK
}

// newUseCase wires the sync pipeline. The returned cleanup closes the
// optional Redis and Kafka clients.
func newUseCase(cfg *config.Config, appLogger *zap.Logger, db *sqlx.DB, syncMetrics *metrics.SyncMetrics) (inventorypoint.UseCase, func(), error) {
	var closers []func() error
	cleanup := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	params := ipUCPkg.Params{
		Repo: ipRepoPkg.NewPGRepository(db),
		Fetcher: erp.NewClient(erp.Config{
			BaseURL:        cfg.ERP.BaseURL,
			AuthMode:       erp.AuthMode(cfg.ERP.AuthMode),
			ClientID:       cfg.ERP.ClientID,
			ClientSecret:   cfg.ERP.ClientSecret,
			Currency:       cfg.ERP.Currency,
			PageSize:       cfg.ERP.PageSize,
			MinInterval:    cfg.ERP.MinInterval,
			MaxRetries:     cfg.ERP.MaxRetries,
			BackoffInitial: cfg.ERP.BackoffInitial,
			Timeout:        cfg.ERP.Timeout,
		}, appLogger),
		Normalizer: normalize.NewNormalizer(region.NewClassifier(appLogger.Named("region")), appLogger.Named("normalize")),
		Engine:     merge.NewEngine(),
		Validator:  validate.NewValidator(appLogger.Named("validate")),
		Metrics:    syncMetrics,
		Logger:     appLogger,
		Options: ipUCPkg.Options{
			EnrichInventory: cfg.Sync.EnrichInventory,
			LockTTL:         cfg.Sync.LockTTL,
		},
	}

	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("could not connect to redis: %w", err)
		}
		closers = append(closers, redisClient.Close)
		params.Locker = redisClient
		appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := publisher.NewKafkaPublisher(&publisher.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		closers = append(closers, kafkaPublisher.Close)
		params.Publisher = kafkaPublisher
		appLogger.Info("Kafka publisher enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	return ipUCPkg.NewInventoryPointUseCase(params), cleanup, nil
}

func newSyncMetrics(cfg *config.Config) *metrics.SyncMetrics {
	return metrics.NewSyncMetrics(metrics.Config{ServiceName: "inventory-point-sync", Environment: cfg.Server.AppEnv})
}

func runSync(ctx context.Context, cfg *config.Config, appLogger *zap.Logger, dates []time.Time, stdout io.Writer) int {
	db, err := connectPostgres(cfg)
	if err != nil {
		appLogger.Error("Could not connect to database", zap.Error(err))
		return exitValidation
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	syncMetrics := newSyncMetrics(cfg)
	uc, cleanup, err := newUseCase(cfg, appLogger, db, syncMetrics)
	defer cleanup()
	if err != nil {
		appLogger.Error("Could not build sync pipeline", zap.Error(err))
		return exitValidation
	}

	summaries, err := uc.SyncRange(ctx, dates)
	for _, s := range summaries {
		fmt.Fprintln(stdout, s.String())
	}

	if werr := syncMetrics.WriteTextfile(cfg.Metrics.TextfilePath); werr != nil {
		appLogger.Warn("failed to write metrics textfile", zap.Error(werr))
	}
	return exitCode(err)
}

// runListen serves sync requests from Kafka until interrupted.
func runListen(ctx context.Context, cfg *config.Config, appLogger *zap.Logger) int {
	if len(cfg.Kafka.Brokers) == 0 {
		appLogger.Error("listen requires KAFKA_BROKERS")
		return exitValidation
	}

	db, err := connectPostgres(cfg)
	if err != nil {
		appLogger.Error("Could not connect to database", zap.Error(err))
		return exitValidation
	}
	defer db.Close()

	syncMetrics := newSyncMetrics(cfg)
	uc, cleanup, err := newUseCase(cfg, appLogger, db, syncMetrics)
	defer cleanup()
	if err != nil {
		appLogger.Error("Could not build sync pipeline", zap.Error(err))
		return exitValidation
	}

	kafkaConsumer := ipListenerPkg.NewKafkaConsumer(&ipListenerPkg.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.RequestTopic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer kafkaConsumer.Close()
	appLogger.Info("Connected to Kafka Consumer", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.RequestTopic))

	ipListenerPkg.NewSyncListener(kafkaConsumer, uc, appLogger).Start(ctx)

	if werr := syncMetrics.WriteTextfile(cfg.Metrics.TextfilePath); werr != nil {
		appLogger.Warn("failed to write metrics textfile", zap.Error(werr))
	}
	return exitOK
}

// exitCode maps a run error to the process status. Upstream failures win
// over validation failures when a range hit both; persistence and lock
// failures exit like validation failures.
func exitCode(err error) int {
	var apiErr *erp.APIError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, erp.ErrUpstream), errors.Is(err, erp.ErrAuth), errors.As(err, &apiErr):
		return exitUpstream
	default:
		return exitValidation
	}
}
