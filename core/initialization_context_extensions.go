package core

import (
	"github.com/gocrud/modular/config"
	"github.com/gocrud/modular/di"
	"github.com/gocrud/modular/hosting"
	"github.com/gocrud/modular/internal/check"
	"github.com/gocrud/modular/logging"
	"github.com/gocrud/modular/web"
)

// 以下函数在模块初始化期间从 ServiceProvider 获取框架服务。
// 每次调用都直接查询容器，不做缓存。

// GetApplicationBuilder 返回 HTTP 请求管道构建器
// 访问器未注册或应用未启用 Web 时返回错误
func GetApplicationBuilder(ctx *ApplicationInitializationContext) (*web.ApplicationBuilder, error) {
	builder, err := GetApplicationBuilderOrNil(ctx)
	if err != nil {
		return nil, err
	}
	return check.NotNil(builder, "applicationBuilder")
}

// GetApplicationBuilderOrNil 返回 HTTP 请求管道构建器，未启用 Web 时为 nil
// 访问器本身必须已注册
func GetApplicationBuilderOrNil(ctx *ApplicationInitializationContext) (*web.ApplicationBuilder, error) {
	accessor, err := di.GetRequiredService[*di.ObjectAccessor[*web.ApplicationBuilder]](ctx.ServiceProvider)
	if err != nil {
		return nil, err
	}
	if accessor == nil {
		return nil, nil
	}
	return accessor.Value(), nil
}

// GetEnvironment 返回运行环境
func GetEnvironment(ctx *ApplicationInitializationContext) (hosting.Environment, error) {
	return di.GetRequiredService[hosting.Environment](ctx.ServiceProvider)
}

// GetEnvironmentOrNil 返回运行环境，未注册时为 nil
func GetEnvironmentOrNil(ctx *ApplicationInitializationContext) (hosting.Environment, error) {
	return di.GetService[hosting.Environment](ctx.ServiceProvider)
}

// GetConfiguration 返回应用配置
func GetConfiguration(ctx *ApplicationInitializationContext) (config.Configuration, error) {
	return di.GetRequiredService[config.Configuration](ctx.ServiceProvider)
}

// GetLoggerFactory 返回日志工厂
func GetLoggerFactory(ctx *ApplicationInitializationContext) (logging.LoggerFactory, error) {
	return di.GetRequiredService[logging.LoggerFactory](ctx.ServiceProvider)
}

// MustGetApplicationBuilder 同 GetApplicationBuilder，失败时 panic
func MustGetApplicationBuilder(ctx *ApplicationInitializationContext) *web.ApplicationBuilder {
	return must(GetApplicationBuilder(ctx))
}

// MustGetEnvironment 同 GetEnvironment，失败时 panic
func MustGetEnvironment(ctx *ApplicationInitializationContext) hosting.Environment {
	return must(GetEnvironment(ctx))
}

// MustGetConfiguration 同 GetConfiguration，失败时 panic
func MustGetConfiguration(ctx *ApplicationInitializationContext) config.Configuration {
	return must(GetConfiguration(ctx))
}

// MustGetLoggerFactory 同 GetLoggerFactory，失败时 panic
func MustGetLoggerFactory(ctx *ApplicationInitializationContext) logging.LoggerFactory {
	return must(GetLoggerFactory(ctx))
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
