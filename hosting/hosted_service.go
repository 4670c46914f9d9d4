package hosting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocrud/modular/logging"
	"github.com/hashicorp/go-multierror"
)

// HostedService 由宿主管理生命周期的后台服务
//
// Start 在独立的 goroutine 中调用，应阻塞到 ctx 结束；Stop 必须遵守 ctx 的截止时间。
type HostedService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Named 可选接口，提供用于日志的服务名称
type Named interface {
	Name() string
}

type managedService struct {
	name string
	svc  HostedService
}

// HostedServiceManager 托管服务管理器
type HostedServiceManager struct {
	logger logging.Logger

	mu       sync.RWMutex
	services []managedService
	running  sync.WaitGroup
}

// NewHostedServiceManager 创建托管服务管理器
func NewHostedServiceManager(logger logging.Logger) *HostedServiceManager {
	return &HostedServiceManager{logger: logger}
}

// Add 添加托管服务，未实现 Named 的服务按序号命名
func (m *HostedServiceManager) Add(service HostedService) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := fmt.Sprintf("#%d", len(m.services)+1)
	if n, ok := service.(Named); ok && n.Name() != "" {
		name = n.Name()
	}
	m.services = append(m.services, managedService{name: name, svc: service})
}

func (m *HostedServiceManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.services)
}

func (m *HostedServiceManager) snapshot() []managedService {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]managedService(nil), m.services...)
}

// StartAll 启动所有托管服务
//
// 返回的通道接收服务异常退出的错误，容量等于服务数量，不会关闭。
// ctx 结束导致的返回不视为错误。
func (m *HostedServiceManager) StartAll(ctx context.Context) <-chan error {
	services := m.snapshot()
	errCh := make(chan error, len(services))
	m.logger.Info("Starting hosted services", logging.F("count", len(services)))

	for _, ms := range services {
		m.running.Add(1)
		go func() {
			defer m.running.Done()
			m.logger.Debug("Hosted service starting", logging.F("service", ms.name))

			err := ms.svc.Start(ctx)
			switch {
			case err == nil:
				m.logger.Debug("Hosted service returned", logging.F("service", ms.name))
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				m.logger.Debug("Hosted service context done", logging.F("service", ms.name))
			default:
				m.logger.Error("Hosted service failed", logging.F("service", ms.name), logging.Err(err))
				errCh <- fmt.Errorf("hosted service %s: %w", ms.name, err)
			}
		}()
	}
	return errCh
}

// StopAll 并发调用 Stop，按添加的相反顺序派发，汇总所有错误
func (m *HostedServiceManager) StopAll(ctx context.Context) error {
	services := m.snapshot()
	m.logger.Info("Stopping hosted services", logging.F("count", len(services)))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	for i := len(services) - 1; i >= 0; i-- {
		ms := services[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ms.svc.Stop(ctx); err != nil {
				m.logger.Error("Hosted service stop failed", logging.F("service", ms.name), logging.Err(err))
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("stop %s: %w", ms.name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return result.ErrorOrNil()
}

// Wait 等待所有 Start 返回
func (m *HostedServiceManager) Wait() {
	m.running.Wait()
}

// BackgroundService 在可取消的 context 中运行一个函数
//
// Stop 取消该 context 并等待函数返回。run 为 nil 时服务空转到停止。
type BackgroundService struct {
	name   string
	logger logging.Logger
	run    func(ctx context.Context) error

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewBackgroundService 创建后台服务
func NewBackgroundService(name string, run func(ctx context.Context) error, logger logging.Logger) *BackgroundService {
	return &BackgroundService{name: name, run: run, logger: logger}
}

func (s *BackgroundService) Name() string {
	return s.name
}

// Start 运行函数直到返回或被停止；停止引起的 context.Canceled 返回 nil
func (s *BackgroundService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("background service %s already started", s.name)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel, s.done = cancel, make(chan struct{})
	done := s.done
	s.mu.Unlock()

	defer close(done)
	defer cancel()

	if s.run == nil {
		<-runCtx.Done()
		return nil
	}
	err := s.run(runCtx)
	if errors.Is(err, context.Canceled) && runCtx.Err() != nil && ctx.Err() == nil {
		s.logger.Debug("Background service stopped", logging.F("service", s.name))
		return nil
	}
	return err
}

// Stop 可重复调用；服务从未启动时立即返回
func (s *BackgroundService) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("Background service stop timed out", logging.F("service", s.name))
		return ctx.Err()
	}
}

// Stopped 报告是否已请求停止
func (s *BackgroundService) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// TimedHostedService 按固定间隔执行任务，任务错误只记录不中断
type TimedHostedService struct {
	*BackgroundService
	runs atomic.Int64
}

// NewTimedHostedService 创建定时托管服务
func NewTimedHostedService(name string, interval time.Duration, task func(ctx context.Context) error, logger logging.Logger) *TimedHostedService {
	t := &TimedHostedService{}
	t.BackgroundService = NewBackgroundService(name, func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				t.runs.Add(1)
				if err := task(ctx); err != nil {
					logger.Error("Timed task failed", logging.F("service", name), logging.Err(err))
				}
			}
		}
	}, logger)
	return t
}

// Runs 返回任务已执行的次数
func (t *TimedHostedService) Runs() int64 {
	return t.runs.Load()
}
