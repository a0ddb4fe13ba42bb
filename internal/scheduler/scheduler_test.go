package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/makerhub/internal/account/domain"
	"github.com/smallbiznis/makerhub/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type accountSvcMock struct {
	mock.Mock
	accountdomain.Service
}

func (m *accountSvcMock) RefreshPending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type lockerStub struct {
	held     bool
	err      error
	released []string
}

func (l *lockerStub) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if l.err != nil {
		return "", false, l.err
	}
	if l.held {
		return "", false, nil
	}
	return "token-" + key, true, nil
}

func (l *lockerStub) Release(_ context.Context, key, token string) error {
	l.released = append(l.released, key+"="+token)
	return nil
}

func newScheduler(t *testing.T, svc accountdomain.Service, cfg Config) *Scheduler {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	s, err := New(Params{
		Log:        zap.NewNop(),
		Clock:      clock.NewFakeClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)),
		GenID:      node,
		AccountSvc: svc,
		Config:     cfg,
	})
	require.NoError(t, err)
	return s
}

func TestRunAccountRefreshCallsService(t *testing.T) {
	svc := &accountSvcMock{}
	svc.On("RefreshPending", mock.Anything).Return(2, nil).Once()

	s := newScheduler(t, svc, Config{})
	require.NoError(t, s.RunAccountRefresh(context.Background()))
	svc.AssertExpectations(t)
}

func TestRunAccountRefreshWrapsErrors(t *testing.T) {
	svc := &accountSvcMock{}
	svc.On("RefreshPending", mock.Anything).Return(0, errors.New("db down")).Once()

	s := newScheduler(t, svc, Config{})
	err := s.RunAccountRefresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account_refresh: db down")
}

func TestRunJobTimeoutIsSoft(t *testing.T) {
	s := newScheduler(t, &accountSvcMock{}, Config{JobTimeout: 5 * time.Millisecond})
	err := s.runJob(context.Background(), "slow", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.NoError(t, err)
}

func TestRunJobSkipsWhenLockHeldElsewhere(t *testing.T) {
	svc := &accountSvcMock{}
	s := newScheduler(t, svc, Config{})
	s.locker = &lockerStub{held: true}

	require.NoError(t, s.RunAccountRefresh(context.Background()))
	svc.AssertNotCalled(t, "RefreshPending", mock.Anything)
}

func TestRunJobReleasesLock(t *testing.T) {
	svc := &accountSvcMock{}
	svc.On("RefreshPending", mock.Anything).Return(0, nil).Once()
	locker := &lockerStub{}
	s := newScheduler(t, svc, Config{})
	s.locker = locker

	require.NoError(t, s.RunAccountRefresh(context.Background()))
	assert.Equal(t, []string{"scheduler:lock:account_refresh=token-scheduler:lock:account_refresh"}, locker.released)
}

func TestNewRejectsBadCronSpec(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	_, err = New(Params{
		Log:        zap.NewNop(),
		Clock:      clock.System(),
		GenID:      node,
		AccountSvc: &accountSvcMock{},
		Config:     Config{AccountRefreshSpec: "every now and then"},
	})
	assert.Error(t, err)

	_, err = New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestProvideConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "*/15 * * * *", cfg.AccountRefreshSpec)
	assert.Equal(t, cfg, Config{}.withDefaults())
}
