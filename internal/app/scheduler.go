package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const sweepLockKey = "turnos:sweep:leader"

// Completer переводит прошедшие записи в completed
type Completer interface {
	CompleteDue(ctx context.Context) (int, error)
}

// Locker блокировка ведущего экземпляра
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, string, error)
	Unlock(ctx context.Context, key, token string) error
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	completer Completer
	locker    Locker // nil - без блокировки, один экземпляр
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once
	done      sync.WaitGroup
}

// NewScheduler создаёт новый планировщик
func NewScheduler(completer Completer, locker Locker, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		completer: completer,
		locker:    locker,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("interval", s.interval))

	s.done.Add(1)
	go s.runSweepTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.done.Wait()
}

// runSweepTask периодически закрывает прошедшие записи
func (s *Scheduler) runSweepTask(ctx context.Context) {
	defer s.done.Done()

	// Первый запуск сразу при старте
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-s.stopChan:
			s.logger.Info("Sweep task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Sweep task cancelled")
			return
		}
	}
}

// Sweep один проход; при заданном locker выполняется только ведущим
func (s *Scheduler) Sweep(ctx context.Context) {
	if s.locker != nil {
		acquired, token, err := s.locker.TryLock(ctx, sweepLockKey, s.interval)
		if err != nil {
			s.logger.Error("Failed to acquire sweep lock", zap.Error(err))
			return
		}
		if !acquired {
			return
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), sweepLockKey, token); err != nil {
				s.logger.Warn("Failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	completed, err := s.completer.CompleteDue(ctx)
	if err != nil {
		s.logger.Error("Failed to complete due slots", zap.Int("completed", completed), zap.Error(err))
		return
	}

	if completed > 0 {
		s.logger.Info("Due slots completed", zap.Int("completed", completed))
	}
}
