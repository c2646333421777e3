// Package scheduler drives the periodic analysis cycle.
package scheduler

import (
	"context"
	"time"

	"tradepilot/internal/logger"
)

// CycleScheduler 按固定周期执行任务，周期边界对齐 UTC 墙钟。
type CycleScheduler struct {
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

// NewCycleScheduler builds a scheduler bound to ctx.
func NewCycleScheduler(ctx context.Context, interval, offset time.Duration) *CycleScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &CycleScheduler{
		Interval: interval,
		Offset:   offset,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks running task on every aligned tick until ctx is done.
func (s *CycleScheduler) Start(task func()) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("CycleScheduler: task is nil, exit")
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("CycleScheduler: invalid interval=%s, exit", s.Interval)
		return
	}
	if s.Offset < 0 {
		logger.Warnf("CycleScheduler: negative offset=%s, clamp to 0", s.Offset)
		s.Offset = 0
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn().UTC()
	logger.Infof("CycleScheduler: started interval=%s offset=%s run_immediately=%v at=%s",
		s.Interval, s.Offset, s.RunImmediately, startAt.Format(time.RFC3339))

	if s.RunImmediately {
		logger.Infof("CycleScheduler: RunImmediately=true, execute once before alignment loop")
		task()
	}

	for {
		now := s.nowFn().UTC()
		wakeAt, wait := s.nextTick(now)
		uptime := now.Sub(startAt)

		logger.Debugf("CycleScheduler: 下一轮将在=%s 执行 (in %s) | uptime=%s",
			wakeAt.Format(time.RFC3339),
			wait.Truncate(time.Second),
			uptime.Truncate(time.Second),
		)

		if wait <= 0 {
			task()
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			logger.Infof("CycleScheduler: ctx done, exit")
			return
		case <-timer.C:
		}
		task()
	}
}

func (s *CycleScheduler) nextTick(now time.Time) (wakeAt time.Time, wait time.Duration) {
	now = now.UTC()
	wakeAt = now.Truncate(s.Interval).Add(s.Interval).Add(s.Offset)
	wait = wakeAt.Sub(now)
	return wakeAt, wait
}
