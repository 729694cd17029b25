package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Freeeeeet/turnos/internal/audit"
	"github.com/Freeeeeet/turnos/internal/cache"
	"github.com/Freeeeeet/turnos/internal/config"
	"github.com/Freeeeeet/turnos/internal/controller/rest"
	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/Freeeeeet/turnos/internal/notify"
	"github.com/Freeeeeet/turnos/internal/repository"
	"github.com/Freeeeeet/turnos/internal/repository/memory"
	"github.com/Freeeeeet/turnos/internal/service"
	"github.com/Freeeeeet/turnos/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App собранные зависимости процесса
type App struct {
	Config    *config.Config
	Pool      *pgxpool.Pool // nil при STORAGE_DRIVER=memory
	Booking   *service.BookingService
	Scheduler *Scheduler
	Router    http.Handler

	logger  *zap.Logger
	closers []func() error
}

// New подключает хранилища и внешние сервисы по конфигу и собирает сервисы.
// Необязательные интеграции (Redis, RabbitMQ, MinIO, Telegram) включаются,
// только если заданы их адреса.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}

	var (
		slots     service.SlotStore
		providers service.ProviderDirectory
		studies   service.StudyDirectory
		audits    []service.AuditLog
	)

	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		dir := memory.NewDirectory()
		SeedDemo(dir)
		slots = memory.NewSlotStore()
		providers = dir.Providers()
		studies = dir.Studies()
		logger.Warn("Using in-memory storage, data is lost on restart")
	default:
		pool, err := NewPool(ctx, cfg.DBDSN, cfg.DBMaxConns)
		if err != nil {
			return nil, err
		}
		a.Pool = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		slots = repository.NewSlotRepository(pool)
		providers = repository.NewProviderRepository(pool)
		studies = repository.NewStudyRepository(pool, logger)
		audits = append(audits, audit.NewPostgresLog(pool))
	}

	var (
		searchCache service.SearchCache = service.NoopCache{}
		locker      Locker
	)
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		searchCache = cache.NewSearchCache(rdb, cfg.CacheTTL)
		locker = cache.NewLocker(rdb, logger)
	}

	if cfg.RabbitMQURL != "" {
		conn, err := audit.Dial(cfg.RabbitMQURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)

		queueLog, err := audit.NewQueueLog(conn, cfg.AuditQueue, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		audits = append(audits, queueLog)
	}

	var auditLog service.AuditLog
	if len(audits) > 0 {
		auditLog = audit.Tee(audits)
	}

	var notifier service.Notifier = notify.NewLogNotifier(logger)
	if cfg.TelegramToken != "" {
		b, err := notify.NewBot(cfg.TelegramToken)
		if err != nil {
			a.Close()
			return nil, err
		}
		notifier = notify.NewTelegramNotifier(b, providers, logger)
	}

	var files service.FileStore
	if cfg.MinioEndpoint != "" {
		client, err := storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		files = storage.NewMinioStorage(client, cfg.MinioBucket)
	}

	planner := service.NewPlannerService(slots, providers, auditLog, searchCache, logger)
	a.Booking = service.NewBookingService(slots, studies, auditLog, notifier, searchCache, logger)
	query := service.NewQueryService(slots, providers, searchCache, logger)
	attachments := service.NewAttachmentService(slots, files, auditLog, searchCache, logger)

	a.Scheduler = NewScheduler(a.Booking, locker, cfg.SweepInterval, logger)

	handler := rest.NewHandler(rest.Services{
		Planner:     planner,
		Booking:     a.Booking,
		Query:       query,
		Attachments: attachments,
		Health:      a.health,
	}, logger)
	a.Router = rest.NewRouter(handler, rest.RouterConfig{RateLimitRPS: cfg.RateLimitRPS}, logger)

	return a, nil
}

func (a *App) health(ctx context.Context) error {
	if a.Pool == nil {
		return nil
	}
	if err := a.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err)
	}
	return nil
}

// Close дожидается фоновых уведомлений и закрывает подключения в обратном порядке
func (a *App) Close() {
	if a.Booking != nil {
		a.Booking.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Failed to close resource", zap.Error(err))
		}
	}
	a.closers = nil
}
