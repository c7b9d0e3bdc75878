package scheduler

import (
	"context"
	"time"

	"stockadvisor/internal/logger"
)

// Task is one periodic job. Errors are logged and do not stop the loop.
type Task func(ctx context.Context) error

// AlignedScheduler 在 Interval 的整点边界（加 Offset）上周期执行任务。
type AlignedScheduler struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	nowFn func() time.Time
}

func NewAlignedScheduler(name string, interval, offset time.Duration) *AlignedScheduler {
	return &AlignedScheduler{
		Name:     name,
		Interval: interval,
		Offset:   offset,
		nowFn:    time.Now,
	}
}

// Run blocks until ctx is done.
func (s *AlignedScheduler) Run(ctx context.Context, task Task) error {
	if s == nil || task == nil {
		return nil
	}
	if s.Interval <= 0 {
		logger.Warnf("AlignedScheduler[%s]: invalid interval=%s, exit", s.Name, s.Interval)
		return nil
	}
	if s.Offset < 0 {
		logger.Warnf("AlignedScheduler[%s]: negative offset=%s, clamp to 0", s.Name, s.Offset)
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn().UTC()
	logger.Infof("AlignedScheduler[%s]: started interval=%s offset=%s run_immediately=%v at=%s",
		s.Name, s.Interval, s.Offset, s.RunImmediately, startAt.Format(time.RFC3339))

	if s.RunImmediately {
		s.exec(ctx, task)
	}

	for {
		now := s.nowFn().UTC()
		wakeAt, wait := s.nextTimes(now)
		logger.Debugf("AlignedScheduler[%s]: 下一次执行=%s (in %s) | uptime=%s",
			s.Name, wakeAt.Format(time.RFC3339), wait.Truncate(time.Second), now.Sub(startAt).Truncate(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("AlignedScheduler[%s]: ctx done, exit", s.Name)
			return nil
		case <-timer.C:
		}
		s.exec(ctx, task)
	}
}

func (s *AlignedScheduler) exec(ctx context.Context, task Task) {
	if ctx.Err() != nil {
		return
	}
	if err := task(ctx); err != nil {
		logger.Warnf("AlignedScheduler[%s]: task failed: %v", s.Name, err)
	}
}

func (s *AlignedScheduler) nextTimes(now time.Time) (wakeAt time.Time, wait time.Duration) {
	now = now.UTC()
	wakeAt = now.Truncate(s.Interval).Add(s.Offset)
	if !wakeAt.After(now) {
		wakeAt = wakeAt.Add(s.Interval)
	}
	return wakeAt, wakeAt.Sub(now)
}
