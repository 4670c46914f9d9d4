package cron

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocrud/modular/di"
	"github.com/gocrud/modular/logging"
	"github.com/robfig/cron/v3"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// jobDefinition 任务定义
type jobDefinition struct {
	spec    string
	name    string
	handler any
}

// JobInfo 已注册任务的调度信息
type JobInfo struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev"`
}

// Scheduler 定时任务托管服务
//
// 任务处理函数的参数在每次执行时从容器解析，context.Context 参数接收运行中的 context，
// 返回的 error 会被记录。
type Scheduler struct {
	cron      *cron.Cron
	logger    logging.Logger
	container di.Container
	jobDefs   []jobDefinition

	mu      sync.RWMutex
	jobs    map[string]cron.EntryID
	specs   map[string]string
	running atomic.Bool
}

func newScheduler(container di.Container, logger logging.Logger, defs []jobDefinition, opts ...cron.Option) *Scheduler {
	return &Scheduler{
		cron:      cron.New(opts...),
		logger:    logger,
		container: container,
		jobDefs:   defs,
		jobs:      make(map[string]cron.EntryID),
		specs:     make(map[string]string),
	}
}

// Name 托管服务名称
func (s *Scheduler) Name() string {
	return "cron"
}

// Running 报告调度器是否在运行
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Start 注册所有任务并启动调度，阻塞直到 ctx 结束
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info(fmt.Sprintf("Cron scheduler starting with %d jobs", len(s.jobDefs)))

	for _, job := range s.jobDefs {
		run, err := s.wrap(ctx, job)
		if err != nil {
			return fmt.Errorf("cron: job '%s': %w", job.name, err)
		}
		if err := s.addJob(job.spec, job.name, run); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.running.Store(true)

	<-ctx.Done()
	return nil
}

// Stop 停止调度，等待执行中的任务完成或 ctx 到期
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Cron scheduler stopping")
	s.running.Store(false)

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries 返回任务的调度信息
func (s *Scheduler) Entries() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, def := range s.jobDefs {
		id, ok := s.jobs[def.name]
		if !ok {
			continue
		}
		entry := s.cron.Entry(id)
		out = append(out, JobInfo{Name: def.name, Spec: s.specs[def.name], Next: entry.Next, Prev: entry.Prev})
	}
	return out
}

// Remove 移除任务
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, exists := s.jobs[name]
	if !exists {
		return false
	}
	s.cron.Remove(entryID)
	delete(s.jobs, name)
	delete(s.specs, name)
	s.logger.Info("Cron job removed", logging.F("job", name))
	return true
}

func (s *Scheduler) addJob(spec, name string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("cron: job '%s' already registered", name)
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		s.logger.Debug("Cron job started", logging.F("job", name))
		job()
		s.logger.Debug("Cron job completed", logging.F("job", name), logging.F("elapsed", time.Since(start).String()))
	})
	if err != nil {
		return fmt.Errorf("cron: failed to add job '%s': %w", name, err)
	}

	s.jobs[name] = entryID
	s.specs[name] = spec
	s.logger.Info("Cron job registered", logging.F("job", name), logging.F("spec", spec))
	return nil
}

// wrap 把处理函数包装为无参函数，参数在每次执行时从容器解析
func (s *Scheduler) wrap(ctx context.Context, job jobDefinition) (func(), error) {
	if fn, ok := job.handler.(func()); ok {
		return fn, nil
	}

	handlerValue := reflect.ValueOf(job.handler)
	handlerType := handlerValue.Type()
	if handlerType.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler must be a function, got %v", handlerType.Kind())
	}
	if handlerType.NumOut() > 1 || (handlerType.NumOut() == 1 && handlerType.Out(0) != errorType) {
		return nil, errors.New("handler may only return error")
	}
	if s.container == nil {
		return nil, errors.New("DI container not available")
	}

	return func() {
		args := make([]reflect.Value, handlerType.NumIn())
		for i := range args {
			paramType := handlerType.In(i)
			if paramType == contextType {
				args[i] = reflect.ValueOf(ctx)
				continue
			}

			instance, err := s.container.Get(paramType)
			if err != nil {
				s.logger.Error("Failed to resolve cron job parameter",
					logging.F("job", job.name),
					logging.F("parameter", paramType.String()),
					logging.Err(err))
				return
			}
			if instance == nil {
				args[i] = reflect.Zero(paramType)
			} else {
				args[i] = reflect.ValueOf(instance)
			}
		}

		results := handlerValue.Call(args)
		if len(results) == 1 && !results[0].IsNil() {
			s.logger.Error("Cron job failed", logging.F("job", job.name), logging.Err(results[0].Interface().(error)))
		}
	}, nil
}

// cronLogger 把框架日志适配到 cron 的日志接口
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := convertToFields(keysAndValues)
	fields = append(fields, logging.Err(err))
	l.logger.Error(msg, fields...)
}

func convertToFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.F(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
