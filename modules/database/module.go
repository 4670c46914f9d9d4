// Package database 提供基于 GORM 的多数据库连接模块
package database

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
	"gorm.io/gorm"
)

// SectionName 配置节名称
const SectionName = "Database"

// Factory 数据库连接工厂
type Factory struct {
	*registry.Registry[*gorm.DB]
}

func newFactory() *Factory {
	return &Factory{registry.New("database",
		func(_ context.Context, db *gorm.DB) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
		func(ctx context.Context, db *gorm.DB) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	)}
}

// Module 数据库模块
//
// 连接来自配置节 Database:Connections:<name>，也可以通过 WithConnection 在代码中添加或调整。
// 名为 default 的连接同时以无名方式注册到容器。
type Module struct {
	configures map[string][]func(*ConnectionOptions)
	order      []string

	factory *Factory
	logger  logging.Logger
}

// Option 模块选项
type Option func(*Module)

// WithConnection 添加连接，或在配置文件的基础上调整同名连接
func WithConnection(name string, configure ...func(*ConnectionOptions)) Option {
	return func(m *Module) {
		if _, exists := m.configures[name]; !exists {
			m.order = append(m.order, name)
		}
		m.configures[name] = append(m.configures[name], configure...)
	}
}

// NewModule 创建数据库模块
func NewModule(opts ...Option) *Module {
	m := &Module{configures: make(map[string][]func(*ConnectionOptions))}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Name() string {
	return "database"
}

// Factory 返回连接工厂，ConfigureServices 之前为 nil
func (m *Module) Factory() *Factory {
	return m.factory
}

func (m *Module) connectionOptions(settings Settings) []*ConnectionOptions {
	names := slices.Sorted(maps.Keys(settings.Connections))
	for _, name := range m.order {
		if _, exists := settings.Connections[name]; !exists {
			names = append(names, name)
		}
	}

	out := make([]*ConnectionOptions, 0, len(names))
	for _, name := range names {
		opts := NewDefaultOptions(name)
		if fromConfig, ok := settings.Connections[name]; ok {
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

// open 打开连接、配置连接池并执行自动迁移
func open(opts *ConnectionOptions, logger logging.Logger) (*gorm.DB, error) {
	dialector, err := opts.dialector()
	if err != nil {
		return nil, err
	}
	level, err := parseGormLevel(opts.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(logger.WithFields(logging.F("connection", opts.Name)), level, opts.SlowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", opts.Name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB for '%s': %w", opts.Name, err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.MaxLifetime)

	if len(opts.AutoMigrate) > 0 {
		if err := db.AutoMigrate(opts.AutoMigrate...); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("auto migrate failed for '%s': %w", opts.Name, err)
		}
	}
	return db, nil
}

// ConfigureServices 打开所有连接并注册到容器
func (m *Module) ConfigureServices(ctx *core.ServiceConfigurationContext) error {
	settings, err := config.LoadOrDefault[Settings](ctx.Configuration(), SectionName)
	if err != nil {
		return fmt.Errorf("database: load settings: %w", err)
	}

	logger := ctx.LoggerFactory().CreateLogger("Database")
	factory := newFactory()
	for _, opts := range m.connectionOptions(settings) {
		if err := opts.Validate(); err != nil {
			factory.Close(context.Background())
			return fmt.Errorf("database: invalid configuration for '%s': %w", opts.Name, err)
		}

		db, err := open(opts, logger)
		if err != nil {
			factory.Close(context.Background())
			return fmt.Errorf("database: %w", err)
		}
		if err := factory.Add(opts.Name, db); err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				sqlDB.Close()
			}
			factory.Close(context.Background())
			return err
		}

		ctx.Logger().Info("Database registered",
			logging.F("name", opts.Name),
			logging.F("dialector", db.Dialector.Name()))
	}

	c := ctx.Container()
	di.Register[*Factory](c, di.WithValue(factory))
	factory.Each(func(name string, db *gorm.DB) {
		di.Register[*gorm.DB](c, di.WithName(name), di.WithValue(db))
		if name == registry.DefaultName {
			di.Register[*gorm.DB](c, di.WithValue(db))
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
	m.logger = loggerFactory.CreateLogger("Database")

	cfg, err := core.GetConfiguration(ctx)
	if err != nil {
		return err
	}
	settings, err := config.LoadOrDefault[Settings](cfg, SectionName)
	if err != nil {
		return fmt.Errorf("database: load settings: %w", err)
	}
	if settings.DisableHealthCheck {
		return nil
	}

	builder, err := core.GetApplicationBuilderOrNil(ctx)
	if err != nil {
		return err
	}
	if builder != nil {
		builder.Get("/health/database", web.HealthHandler("database", m.factory.Ping))
		m.logger.Debug("Mapped database health check")
	}
	return nil
}

// OnApplicationShutdown 关闭所有连接
func (m *Module) OnApplicationShutdown(ctx *core.ApplicationShutdownContext) error {
	if m.factory == nil {
		return nil
	}
	if m.logger != nil {
		m.logger.Info("Closing database connections")
	}
	return m.factory.Close(ctx.Context())
}
