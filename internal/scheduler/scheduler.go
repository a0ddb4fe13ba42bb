package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	accountdomain "github.com/smallbiznis/makerhub/internal/account/domain"
	"github.com/smallbiznis/makerhub/internal/clock"
	"github.com/smallbiznis/makerhub/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobAccountRefresh = "account_refresh"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// JobLocker keeps a job from running on two replicas at once.
type JobLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	GenID      *snowflake.Node
	AccountSvc accountdomain.Service
	Locker     *ratelimit.Locker `optional:"true"`
	Config     Config            `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	clock      clock.Clock
	genID      *snowflake.Node
	cfg        Config
	accountSvc accountdomain.Service
	locker     JobLocker
	cron       *cron.Cron
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.GenID == nil || p.AccountSvc == nil {
		return nil, ErrInvalidConfig
	}

	s := &Scheduler{
		log:        p.Log.Named("scheduler"),
		clock:      p.Clock,
		genID:      p.GenID,
		cfg:        p.Config.withDefaults(),
		accountSvc: p.AccountSvc,
	}
	// A typed nil *Locker inside the interface would defeat the nil check.
	if p.Locker != nil {
		s.locker = p.Locker
	}

	s.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{log: s.log})))
	if _, err := s.cron.AddFunc(s.cfg.AccountRefreshSpec, func() {
		if err := s.RunAccountRefresh(context.Background()); err != nil {
			s.log.Error("scheduled job failed", zap.String("job", jobAccountRefresh), zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule %s %q: %w", jobAccountRefresh, s.cfg.AccountRefreshSpec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Info("scheduler started", zap.String("account_refresh", s.cfg.AccountRefreshSpec))
	s.cron.Start()
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunAccountRefresh polls connected accounts that cannot take charges yet.
func (s *Scheduler) RunAccountRefresh(ctx context.Context) error {
	return s.runJob(ctx, jobAccountRefresh, func(ctx context.Context) (int, error) {
		return s.accountSvc.RefreshPending(ctx)
	})
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) (int, error)) error {
	log := s.log.With(
		zap.String("job", name),
		zap.String("run_id", s.genID.Generate().String()),
	)

	if s.locker != nil {
		key := "scheduler:lock:" + name
		token, ok, err := s.locker.TryLock(parent, key, s.cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("%s: lock: %w", name, err)
		}
		if !ok {
			log.Debug("job already running elsewhere")
			return nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(parent), key, token); err != nil {
				log.Warn("job unlock failed", zap.Error(err))
			}
		}()
	}

	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	processed, err := fn(ctx)
	took := s.clock.Now().Sub(start)
	if err == nil {
		log.Info("job finished", zap.Int("processed", processed), zap.Duration("took", took))
		return nil
	}

	// deadline is a soft timeout, the next tick picks up the rest
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out",
			zap.Int("processed", processed),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// cronLogger routes robfig/cron diagnostics to zap.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
