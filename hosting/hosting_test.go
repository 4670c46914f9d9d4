package hosting

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocrud/modular/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewEnvironment_Defaults(t *testing.T) {
	env := NewEnvironment("")
	assert.Equal(t, Production, env.Name())
	assert.True(t, env.IsProduction())
	assert.False(t, env.IsDevelopment())
	assert.NotEmpty(t, env.ApplicationName())
	assert.Equal(t, filepath.Join(env.ContentRootPath(), "wwwroot"), env.WebRootPath())
}

func TestNewEnvironment_Options(t *testing.T) {
	root := t.TempDir()
	env := NewEnvironment("staging",
		WithApplicationName("orders"),
		WithContentRoot(root),
		WithWebRoot("public"),
	)

	assert.True(t, env.IsStaging())
	assert.True(t, env.IsEnvironment("STAGING"))
	assert.False(t, env.IsEnvironment("Production"))
	assert.Equal(t, "orders", env.ApplicationName())
	assert.Equal(t, root, env.ContentRootPath())
	assert.Equal(t, filepath.Join(root, "public"), env.WebRootPath())
}

func TestEnvironmentFromVariables(t *testing.T) {
	t.Setenv("MODTEST_ENVIRONMENT", "Development")
	assert.True(t, EnvironmentFromVariables("MODTEST_").IsDevelopment())

	assert.True(t, EnvironmentFromVariables("UNSET_PREFIX_").IsProduction())
}

type recordingService struct {
	name    string
	startFn func(ctx context.Context) error
	stopErr error
	order   *[]string
	mu      *sync.Mutex
}

func (s *recordingService) Name() string { return s.name }

func (s *recordingService) Start(ctx context.Context) error {
	if s.startFn != nil {
		return s.startFn(ctx)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *recordingService) Stop(ctx context.Context) error {
	s.mu.Lock()
	*s.order = append(*s.order, s.name)
	s.mu.Unlock()
	return s.stopErr
}

func TestHostedServiceManager_StartStop(t *testing.T) {
	var (
		order []string
		mu    sync.Mutex
	)
	manager := NewHostedServiceManager(logging.NewNopFactory().CreateLogger("test"))
	boom := errors.New("boom")

	manager.Add(&recordingService{name: "a", order: &order, mu: &mu})
	manager.Add(&recordingService{name: "b", order: &order, mu: &mu, stopErr: boom})
	manager.Add(&recordingService{
		name:  "failing",
		order: &order,
		mu:    &mu,
		startFn: func(context.Context) error {
			return errors.New("cannot listen")
		},
	})
	assert.Equal(t, 3, manager.Count())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := manager.StartAll(ctx)

	select {
	case err := <-errCh:
		assert.ErrorContains(t, err, "failing")
	case <-time.After(2 * time.Second):
		t.Fatal("expected start error")
	}

	cancel()
	manager.Wait()

	err := manager.StopAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ElementsMatch(t, []string{"a", "b", "failing"}, order)
}

func TestBackgroundService_Stop(t *testing.T) {
	started := make(chan struct{})
	svc := NewBackgroundService("bg", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, logging.NewNopFactory().CreateLogger("test"))

	done := make(chan error, 1)
	go func() { done <- svc.Start(context.Background()) }()

	<-started
	require.NoError(t, svc.Stop(context.Background()))
	require.NoError(t, <-done)
	assert.True(t, svc.Stopped())

	// 重复调用安全
	assert.NoError(t, svc.Stop(context.Background()))
	// 停止后不再启动
	assert.NoError(t, svc.Start(context.Background()))
}

func TestBackgroundService_ParentCancelled(t *testing.T) {
	svc := NewBackgroundService("idle", nil, logging.NewNopFactory().CreateLogger("test"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, svc.Start(ctx))
}

func TestBackgroundService_StopWithoutStart(t *testing.T) {
	svc := NewBackgroundService("idle", nil, logging.NewNopFactory().CreateLogger("test"))
	assert.NoError(t, svc.Stop(context.Background()))
}

func TestBackgroundService_StopTimeout(t *testing.T) {
	release := make(chan struct{})
	running := make(chan struct{})
	svc := NewBackgroundService("stubborn", func(ctx context.Context) error {
		close(running)
		<-release
		return nil
	}, logging.NewNopFactory().CreateLogger("test"))

	done := make(chan error, 1)
	go func() { done <- svc.Start(context.Background()) }()
	<-running

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Stop(ctx), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, <-done)
}

func TestTimedHostedService(t *testing.T) {
	var calls atomic.Int32
	svc := NewTimedHostedService("tick", 5*time.Millisecond, func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("first run fails")
		}
		return nil
	}, logging.NewNopFactory().CreateLogger("test"))
	assert.Equal(t, "tick", svc.Name())

	done := make(chan error, 1)
	go func() { done <- svc.Start(context.Background()) }()

	require.Eventually(t, func() bool { return svc.Runs() >= 3 }, 2*time.Second, time.Millisecond)
	require.NoError(t, svc.Stop(context.Background()))
	assert.NoError(t, <-done)
	assert.Equal(t, int64(calls.Load()), svc.Runs())
}
