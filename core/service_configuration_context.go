package core

import (
	"fmt"
	"reflect"

	"github.com/gocrud/modular/config"
	"github.com/gocrud/modular/di"
	"github.com/gocrud/modular/hosting"
	"github.com/gocrud/modular/logging"
	"github.com/gocrud/modular/web"
)

// ServiceConfigurationContext 服务配置上下文
// 在容器构建之前提供给模块，包含容器、配置、日志等核心组件
type ServiceConfigurationContext struct {
	container     di.Container
	configuration config.Configuration
	environment   hosting.Environment
	loggerFactory logging.LoggerFactory
	logger        logging.Logger
	web           *web.ApplicationBuilder

	// hostedServices 已创建的托管服务实例
	hostedServices []hosting.HostedService
	// hostedServiceTypes 注册在容器中、构建后解析的托管服务
	hostedServiceTypes []reflect.Type
}

// Container 返回底层的 DI 容器
// 可以直接使用 di.Register[T](ctx.Container(), ...)
func (c *ServiceConfigurationContext) Container() di.Container {
	return c.container
}

// Configuration 获取配置对象
func (c *ServiceConfigurationContext) Configuration() config.Configuration {
	return c.configuration
}

// Environment 获取环境信息
func (c *ServiceConfigurationContext) Environment() hosting.Environment {
	return c.environment
}

// Logger 获取日志记录器
func (c *ServiceConfigurationContext) Logger() logging.Logger {
	return c.logger
}

// LoggerFactory 获取日志工厂
func (c *ServiceConfigurationContext) LoggerFactory() logging.LoggerFactory {
	return c.loggerFactory
}

// Web 返回 HTTP 请求管道构建器，未启用 Web 时为 nil
// 可在此阶段调用 AddControllers
func (c *ServiceConfigurationContext) Web() *web.ApplicationBuilder {
	return c.web
}

// AddHostedService 添加托管服务实例
func (c *ServiceConfigurationContext) AddHostedService(service hosting.HostedService) {
	c.hostedServices = append(c.hostedServices, service)
}

// RegisterHostedService 把 T 注册到容器并作为托管服务运行，支持依赖注入
// 示例: core.RegisterHostedService[*Worker](ctx, di.WithFactory(NewWorker))
func RegisterHostedService[T hosting.HostedService](ctx *ServiceConfigurationContext, opts ...di.Option) {
	di.Register[T](ctx.container, opts...)
	ctx.hostedServiceTypes = append(ctx.hostedServiceTypes, di.TypeOf[T]())
}

// resolveHostedServices 返回实例和容器解析出的全部托管服务，容器必须已构建
func (c *ServiceConfigurationContext) resolveHostedServices() ([]hosting.HostedService, error) {
	services := make([]hosting.HostedService, 0, len(c.hostedServices)+len(c.hostedServiceTypes))
	services = append(services, c.hostedServices...)

	for _, typ := range c.hostedServiceTypes {
		instance, err := c.container.Get(typ)
		if err != nil {
			return nil, fmt.Errorf("app: resolve hosted service %v: %w", typ, err)
		}
		hs, ok := instance.(hosting.HostedService)
		if !ok {
			return nil, fmt.Errorf("app: %v does not implement hosting.HostedService", typ)
		}
		services = append(services, hs)
	}
	return services, nil
}

// ConfigureOptions 配置选项模式（支持静态、快照和监听三种模式）
// T: 配置类型
// section: 配置节名称（例如 "app", "database"）
// 使用示例: core.ConfigureOptions[AppSetting](ctx, "app")
func ConfigureOptions[T any](ctx *ServiceConfigurationContext, section string) {
	cache := config.NewOptionsCache[T](ctx.configuration, section)

	// Option[T] 应用生命周期内不变
	di.Register[config.Option[T]](ctx.container,
		di.WithValue(config.NewOption(cache.Get())),
	)

	// OptionMonitor[T] 配置重载后自动更新
	di.Register[config.OptionMonitor[T]](ctx.container,
		di.WithValue(config.NewOptionMonitor(cache)),
	)

	// OptionSnapshot[T] 每个作用域一份快照
	di.Register[config.OptionSnapshot[T]](ctx.container,
		di.WithFactory(func() config.OptionSnapshot[T] {
			return config.NewOptionSnapshot(cache.Snapshot())
		}),
		di.WithScoped(),
	)

	ctx.logger.Debug("Configured options",
		logging.F("type", di.TypeOf[T]().String()),
		logging.F("section", section))
}
