// Package redis 提供按名称管理的 Redis 客户端模块
package redis

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/gocrud/modular/config"
	"github.com/gocrud/modular/core"
	"github.com/gocrud/modular/di"
	"github.com/gocrud/modular/internal/registry"
	"github.com/gocrud/modular/logging"
	"github.com/gocrud/modular/web"
	goredis "github.com/redis/go-redis/v9"
)

// SectionName 配置节名称
const SectionName = "Redis"

// Factory Redis 客户端工厂
type Factory struct {
	*registry.Registry[*goredis.Client]
}

func newFactory() *Factory {
	return &Factory{registry.New("redis",
		func(_ context.Context, c *goredis.Client) error { return c.Close() },
		func(ctx context.Context, c *goredis.Client) error { return c.Ping(ctx).Err() },
	)}
}

// Module Redis 模块
//
// 客户端来自配置节 Redis:Clients:<name>，也可以通过 WithClient 在代码中添加或调整。
// 名为 default 的客户端同时以无名方式注册到容器。
type Module struct {
	configures map[string][]func(*ClientOptions)
	order      []string

	factory *Factory
	logger  logging.Logger
}

// Option 模块选项
type Option func(*Module)

// WithClient 添加客户端，或在配置文件的基础上调整同名客户端
func WithClient(name string, configure ...func(*ClientOptions)) Option {
	return func(m *Module) {
		if _, exists := m.configures[name]; !exists {
			m.order = append(m.order, name)
		}
		m.configures[name] = append(m.configures[name], configure...)
	}
}

// NewModule 创建 Redis 模块
func NewModule(opts ...Option) *Module {
	m := &Module{configures: make(map[string][]func(*ClientOptions))}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Name() string {
	return "redis"
}

// Factory 返回客户端工厂，ConfigureServices 之前为 nil
func (m *Module) Factory() *Factory {
	return m.factory
}

// clientOptions 合并配置文件与代码中的客户端配置
// 配置文件中的客户端按名称排序，代码中新增的客户端按添加顺序排在后面
func (m *Module) clientOptions(settings Settings) []*ClientOptions {
	names := slices.Sorted(maps.Keys(settings.Clients))
	for _, name := range m.order {
		if _, exists := settings.Clients[name]; !exists {
			names = append(names, name)
		}
	}

	out := make([]*ClientOptions, 0, len(names))
	for _, name := range names {
		opts := NewDefaultOptions(name)
		if fromConfig, ok := settings.Clients[name]; ok {
			opts.merge(fromConfig)
		}
		for _, configure := range m.configures[name] {
			if configure != nil {
				configure(opts)
			}
		}
		out = append(out, opts)
	}
	return out
}

// ConfigureServices 创建客户端并注册到容器
// go-redis 按需建立连接，这里不会访问服务器
func (m *Module) ConfigureServices(ctx *core.ServiceConfigurationContext) error {
	settings, err := config.LoadOrDefault[Settings](ctx.Configuration(), SectionName)
	if err != nil {
		return fmt.Errorf("redis: load settings: %w", err)
	}

	factory := newFactory()
	for _, opts := range m.clientOptions(settings) {
		if err := opts.Validate(); err != nil {
			factory.Close(context.Background())
			return fmt.Errorf("redis: invalid configuration for '%s': %w", opts.Name, err)
		}

		client := goredis.NewClient(opts.redisOptions())
		if err := factory.Add(opts.Name, client); err != nil {
			client.Close()
			factory.Close(context.Background())
			return err
		}

		ctx.Logger().Info("Redis client registered",
			logging.F("name", opts.Name),
			logging.F("addr", opts.Addr),
			logging.F("db", opts.DB))
	}

	c := ctx.Container()
	di.Register[*Factory](c, di.WithValue(factory))
	factory.Each(func(name string, client *goredis.Client) {
		di.Register[*goredis.Client](c, di.WithName(name), di.WithValue(client))
		if name == registry.DefaultName {
			di.Register[*goredis.Client](c, di.WithValue(client))
		}
	})

	m.factory = factory
	return nil
}

// OnApplicationInitialization 可选地检查连通性，并在启用 Web 时映射健康检查
func (m *Module) OnApplicationInitialization(ctx *core.ApplicationInitializationContext) error {
	loggerFactory, err := core.GetLoggerFactory(ctx)
	if err != nil {
		return err
	}
	m.logger = loggerFactory.CreateLogger("Redis")

	cfg, err := core.GetConfiguration(ctx)
	if err != nil {
		return err
	}
	settings, err := config.LoadOrDefault[Settings](cfg, SectionName)
	if err != nil {
		return fmt.Errorf("redis: load settings: %w", err)
	}

	if settings.PingOnStart {
		pingCtx, cancel := context.WithTimeout(ctx.Context(), 10*time.Second)
		defer cancel()
		if err := m.factory.Ping(pingCtx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		m.logger.Info("Redis clients reachable", logging.F("count", m.factory.Len()))
	}

	if settings.DisableHealthCheck {
		return nil
	}
	builder, err := core.GetApplicationBuilderOrNil(ctx)
	if err != nil {
		return err
	}
	if builder != nil {
		builder.Get("/health/redis", web.HealthHandler("redis", m.factory.Ping))
	}
	return nil
}

// OnApplicationShutdown 关闭所有客户端
func (m *Module) OnApplicationShutdown(ctx *core.ApplicationShutdownContext) error {
	if m.factory == nil {
		return nil
	}
	if m.logger != nil {
		m.logger.Info("Closing redis clients")
	}
	return m.factory.Close(ctx.Context())
}
