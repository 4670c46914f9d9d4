// Package cron 提供定时任务模块
package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gocrud/modular/config"
	"github.com/gocrud/modular/core"
	"github.com/gocrud/modular/di"
	"github.com/gocrud/modular/logging"
	"github.com/gocrud/modular/web"
	"github.com/robfig/cron/v3"
)

// SectionName 配置节名称
const SectionName = "Cron"

// Settings 模块配置，对应配置节 Cron
type Settings struct {
	// Seconds 启用秒级精度
	Seconds bool `json:"seconds"`
	// Location 时区，默认 UTC
	Location string `json:"location"`
	// EnableLogger 启用 cron 库的内部调度日志
	EnableLogger bool `json:"enable_logger"`
	// Jobs 按任务名称覆盖调度表达式
	Jobs               map[string]string `json:"jobs"`
	DisableHealthCheck bool              `json:"disable_health_check"`
}

// Module 定时任务模块
type Module struct {
	settings Settings
	jobs     []jobDefinition

	scheduler *Scheduler
	logger    logging.Logger
}

// Option 模块选项
type Option func(*Module)

// WithSeconds 启用秒级精度
func WithSeconds() Option {
	return func(m *Module) { m.settings.Seconds = true }
}

// WithLocation 设置时区
func WithLocation(location string) Option {
	return func(m *Module) { m.settings.Location = location }
}

// EnableCronLogger 启用 cron 库的内部调度日志
func EnableCronLogger() Option {
	return func(m *Module) { m.settings.EnableLogger = true }
}

// AddJob 添加任务
//
// handler 可以是 func()，也可以是参数从容器解析的函数：
//
//	cron.AddJob("0 */5 * * * *", "sync-data", func(ctx context.Context, svc *DataService) error {
//	    return svc.Sync(ctx)
//	})
func AddJob(spec, name string, handler any) Option {
	return func(m *Module) {
		m.jobs = append(m.jobs, jobDefinition{spec: spec, name: name, handler: handler})
	}
}

// NewModule 创建定时任务模块
func NewModule(opts ...Option) *Module {
	m := &Module{settings: Settings{Location: "UTC"}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Name() string {
	return "cron"
}

// Scheduler 返回调度器，ConfigureServices 之前为 nil
func (m *Module) Scheduler() *Scheduler {
	return m.scheduler
}

// resolveSettings 合并代码与配置文件中的设置，配置文件优先
func (m *Module) resolveSettings(fromConfig Settings) Settings {
	s := m.settings
	s.Seconds = s.Seconds || fromConfig.Seconds
	s.EnableLogger = s.EnableLogger || fromConfig.EnableLogger
	s.DisableHealthCheck = fromConfig.DisableHealthCheck
	if fromConfig.Location != "" {
		s.Location = fromConfig.Location
	}
	s.Jobs = fromConfig.Jobs
	return s
}

// ConfigureServices 校验任务并注册调度器为托管服务
func (m *Module) ConfigureServices(ctx *core.ServiceConfigurationContext) error {
	fromConfig, err := config.LoadOrDefault[Settings](ctx.Configuration(), SectionName)
	if err != nil {
		return fmt.Errorf("cron: load settings: %w", err)
	}
	settings := m.resolveSettings(fromConfig)

	location, err := time.LoadLocation(settings.Location)
	if err != nil {
		return fmt.Errorf("cron: invalid location %q: %w", settings.Location, err)
	}

	fields := cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor
	if settings.Seconds {
		fields |= cron.Second
	}
	parser := cron.NewParser(fields)

	seen := make(map[string]struct{}, len(m.jobs))
	defs := make([]jobDefinition, 0, len(m.jobs))
	for _, job := range m.jobs {
		if job.name == "" {
			return errors.New("cron: job name is required")
		}
		if _, dup := seen[job.name]; dup {
			return fmt.Errorf("cron: job '%s' already registered", job.name)
		}
		seen[job.name] = struct{}{}

		// 配置键统一为小写
		if spec, ok := settings.Jobs[strings.ToLower(job.name)]; ok && spec != "" {
			job.spec = spec
		}
		if _, err := parser.Parse(job.spec); err != nil {
			return fmt.Errorf("cron: job '%s': invalid spec %q: %w", job.name, job.spec, err)
		}
		defs = append(defs, job)
	}

	logger := ctx.LoggerFactory().CreateLogger("Cron")
	opts := []cron.Option{
		cron.WithParser(parser),
		cron.WithLocation(location),
		cron.WithChain(cron.Recover(newCronLogger(logger))),
	}
	if settings.EnableLogger {
		opts = append(opts, cron.WithLogger(newCronLogger(logger)))
	}

	scheduler := newScheduler(ctx.Container(), logger, defs, opts...)
	di.Register[*Scheduler](ctx.Container(), di.WithValue(scheduler))
	ctx.AddHostedService(scheduler)

	m.scheduler = scheduler
	m.settings = settings
	return nil
}

// OnApplicationInitialization 在启用 Web 时映射健康检查
func (m *Module) OnApplicationInitialization(ctx *core.ApplicationInitializationContext) error {
	loggerFactory, err := core.GetLoggerFactory(ctx)
	if err != nil {
		return err
	}
	m.logger = loggerFactory.CreateLogger("Cron")

	cfg, err := core.GetConfiguration(ctx)
	if err != nil {
		return err
	}
	settings, err := config.LoadOrDefault[Settings](cfg, SectionName)
	if err != nil {
		return fmt.Errorf("cron: load settings: %w", err)
	}
	if settings.DisableHealthCheck {
		return nil
	}

	builder, err := core.GetApplicationBuilderOrNil(ctx)
	if err != nil {
		return err
	}
	if builder != nil {
		builder.Get("/health/cron", web.HealthHandler("cron", m.healthCheck))
		m.logger.Debug("Mapped cron health check", logging.F("jobs", len(m.jobs)))
	}
	return nil
}

func (m *Module) healthCheck(context.Context) error {
	if !m.scheduler.Running() {
		return errors.New("scheduler is not running")
	}
	return nil
}
