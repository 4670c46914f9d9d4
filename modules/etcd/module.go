// Package etcd 提供按名称管理的 etcd 客户端模块
package etcd

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/gocrud/modular/config"
	"github.com/gocrud/modular/core"
	"github.com/gocrud/modular/di"
	"github.com/gocrud/modular/internal/registry"
	"github.com/gocrud/modular/logging"
	"github.com/gocrud/modular/web"
	"github.com/hashicorp/go-multierror"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// SectionName 配置节名称
const SectionName = "Etcd"

// Factory etcd 客户端工厂
type Factory struct {
	*registry.Registry[*clientv3.Client]
}

func newFactory() *Factory {
	return &Factory{registry.New("etcd",
		func(_ context.Context, c *clientv3.Client) error { return c.Close() },
		ping,
	)}
}

// ping 任意一个端点可用即视为健康
func ping(ctx context.Context, c *clientv3.Client) error {
	var result *multierror.Error
	for _, endpoint := range c.Endpoints() {
		if _, err := c.Status(ctx, endpoint); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", endpoint, err))
			continue
		}
		return nil
	}
	return result.ErrorOrNil()
}

// Module etcd 模块
//
// 客户端来自配置节 Etcd:Clients:<name>，也可以通过 WithClient 在代码中添加或调整。
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

// NewModule 创建 etcd 模块
func NewModule(opts ...Option) *Module {
	m := &Module{configures: make(map[string][]func(*ClientOptions))}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Name() string {
	return "etcd"
}

// Factory 返回客户端工厂，ConfigureServices 之前为 nil
func (m *Module) Factory() *Factory {
	return m.factory
}

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
func (m *Module) ConfigureServices(ctx *core.ServiceConfigurationContext) error {
	settings, err := config.LoadOrDefault[Settings](ctx.Configuration(), SectionName)
	if err != nil {
		return fmt.Errorf("etcd: load settings: %w", err)
	}

	factory := newFactory()
	for _, opts := range m.clientOptions(settings) {
		if err := opts.Validate(); err != nil {
			factory.Close(context.Background())
			return fmt.Errorf("etcd: invalid configuration for '%s': %w", opts.Name, err)
		}

		client, err := clientv3.New(opts.clientConfig())
		if err != nil {
			factory.Close(context.Background())
			return fmt.Errorf("etcd: failed to create client '%s': %w", opts.Name, err)
		}
		if err := factory.Add(opts.Name, client); err != nil {
			client.Close()
			factory.Close(context.Background())
			return err
		}

		ctx.Logger().Info("etcd client registered",
			logging.F("name", opts.Name),
			logging.F("endpoints", opts.Endpoints))
	}

	c := ctx.Container()
	di.Register[*Factory](c, di.WithValue(factory))
	factory.Each(func(name string, client *clientv3.Client) {
		di.Register[*clientv3.Client](c, di.WithName(name), di.WithValue(client))
		if name == registry.DefaultName {
			di.Register[*clientv3.Client](c, di.WithValue(client))
		}
	})

	m.factory = factory
	return nil
}

// OnApplicationInitialization 在启用 Web 时映射健康检查
func (m *Module) OnApplicationInitialization(ctx *core.ApplicationInitializationContext) error {
	loggerFactory, err := core.GetLoggerFactory(ctx)
	if err != nil {
		return err
	}
	m.logger = loggerFactory.CreateLogger("Etcd")

	cfg, err := core.GetConfiguration(ctx)
	if err != nil {
		return err
	}
	settings, err := config.LoadOrDefault[Settings](cfg, SectionName)
	if err != nil {
		return fmt.Errorf("etcd: load settings: %w", err)
	}
	if settings.DisableHealthCheck {
		return nil
	}

	builder, err := core.GetApplicationBuilderOrNil(ctx)
	if err != nil {
		return err
	}
	if builder != nil {
		builder.Get("/health/etcd", web.HealthHandler("etcd", m.factory.Ping))
	}
	return nil
}

// OnApplicationShutdown 关闭所有客户端
func (m *Module) OnApplicationShutdown(ctx *core.ApplicationShutdownContext) error {
	if m.factory == nil {
		return nil
	}
	if m.logger != nil {
		m.logger.Info("Closing etcd clients")
	}
	return m.factory.Close(ctx.Context())
}
