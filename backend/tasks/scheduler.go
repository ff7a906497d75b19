package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reaper 清理已自行退出的子进程记录
type Reaper interface {
	Reap(ctx context.Context) (bool, error)
}

type Scheduler struct {
	reaper       Reaper
	reapInterval time.Duration
	log          *zap.Logger
}

func NewScheduler(reaper Reaper, reapInterval time.Duration) *Scheduler {
	return &Scheduler{
		reaper:       reaper,
		reapInterval: reapInterval,
		log:          zap.L().Named("tasks"),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}

	if s.reaper != nil {
		go s.runWithTicker(ctx, s.reapInterval, "child reaper", func(ctx context.Context) {
			if _, err := s.reaper.Reap(ctx); err != nil {
				s.log.Debug("reap failed", zap.Error(err))
			}
		})
	}
}

func (s *Scheduler) runWithTicker(ctx context.Context, interval time.Duration, name string, fn func(context.Context)) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.safeRun(ctx, name, fn)
		}
	}
}

func (s *Scheduler) safeRun(ctx context.Context, name string, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task panicked", zap.String("task", name), zap.Any("panic", r))
		}
	}()
	fn(ctx)
}
