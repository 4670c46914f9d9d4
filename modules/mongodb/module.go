// Package mongodb 提供按名称管理的 MongoDB 客户端模块
package mongodb

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
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// SectionName 配置节名称
const SectionName = "MongoDB"

// Factory MongoDB 客户端工厂
type Factory struct {
	*registry.Registry[*mongo.Client]
}

func newFactory() *Factory {
	return &Factory{registry.New("mongo",
		func(ctx context.Context, c *mongo.Client) error { return c.Disconnect(ctx) },
		func(ctx context.Context, c *mongo.Client) error { return c.Ping(ctx, readpref.Primary()) },
	)}
}

// Module MongoDB 模块
//
// 客户端来自配置节 MongoDB:Clients:<name>。配置了 database 的客户端
// 还会以同样的名称注册 *mongo.Database。
type Module struct {
	configures map[string][]func(*ClientOptions)
	order      []string

	factory *Factory
	logger  logging.Logger
}

// Option 模块选项
type Option func(*Module)

// WithClient 添加客户端，或在配置文件的基础上调整同名客户端
func WithClient(name, uri string, configure ...func(*ClientOptions)) Option {
	return func(m *Module) {
		if _, exists := m.configures[name]; !exists {
			m.order = append(m.order, name)
		}
		if uri != "" {
			m.configures[name] = append(m.configures[name], func(o *ClientOptions) { o.URI = uri })
		}
		m.configures[name] = append(m.configures[name], configure...)
	}
}

// NewModule 创建 MongoDB 模块
func NewModule(opts ...Option) *Module {
	m := &Module{configures: make(map[string][]func(*ClientOptions))}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Name() string {
	return "mongodb"
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
// 驱动在后台建立连接，服务器不可达不会导致构建失败
func (m *Module) ConfigureServices(ctx *core.ServiceConfigurationContext) error {
	settings, err := config.LoadOrDefault[Settings](ctx.Configuration(), SectionName)
	if err != nil {
		return fmt.Errorf("mongodb: load settings: %w", err)
	}

	factory := newFactory()
	databases := make(map[string]string)
	for _, opts := range m.clientOptions(settings) {
		if err := opts.Validate(); err != nil {
			factory.Close(context.Background())
			return fmt.Errorf("mongodb: invalid configuration for '%s': %w", opts.Name, err)
		}

		client, err := mongo.Connect(opts.clientOptions())
		if err != nil {
			factory.Close(context.Background())
			return fmt.Errorf("mongodb: failed to create client '%s': %w", opts.Name, err)
		}
		if err := factory.Add(opts.Name, client); err != nil {
			client.Disconnect(context.Background())
			factory.Close(context.Background())
			return err
		}
		if opts.Database != "" {
			databases[opts.Name] = opts.Database
		}

		ctx.Logger().Info("Mongo client registered",
			logging.F("name", opts.Name),
			logging.F("database", opts.Database))
	}

	c := ctx.Container()
	di.Register[*Factory](c, di.WithValue(factory))
	factory.Each(func(name string, client *mongo.Client) {
		di.Register[*mongo.Client](c, di.WithName(name), di.WithValue(client))
		var db *mongo.Database
		if dbName, ok := databases[name]; ok {
			db = client.Database(dbName)
			di.Register[*mongo.Database](c, di.WithName(name), di.WithValue(db))
		}
		if name == registry.DefaultName {
			di.Register[*mongo.Client](c, di.WithValue(client))
			if db != nil {
				di.Register[*mongo.Database](c, di.WithValue(db))
			}
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
	m.logger = loggerFactory.CreateLogger("MongoDB")

	cfg, err := core.GetConfiguration(ctx)
	if err != nil {
		return err
	}
	settings, err := config.LoadOrDefault[Settings](cfg, SectionName)
	if err != nil {
		return fmt.Errorf("mongodb: load settings: %w", err)
	}

	if settings.PingOnStart {
		pingCtx, cancel := context.WithTimeout(ctx.Context(), 10*time.Second)
		defer cancel()
		if err := m.factory.Ping(pingCtx); err != nil {
			return fmt.Errorf("mongodb: %w", err)
		}
	}

	if settings.DisableHealthCheck {
		return nil
	}
	builder, err := core.GetApplicationBuilderOrNil(ctx)
	if err != nil {
		return err
	}
	if builder != nil {
		builder.Get("/health/mongodb", web.HealthHandler("mongodb", m.factory.Ping))
	}
	return nil
}

// OnApplicationShutdown 断开所有客户端
func (m *Module) OnApplicationShutdown(ctx *core.ApplicationShutdownContext) error {
	if m.factory == nil {
		return nil
	}
	if m.logger != nil {
		m.logger.Info("Closing mongo clients")
	}
	return m.factory.Close(ctx.Context())
}
