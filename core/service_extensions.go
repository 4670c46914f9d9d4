package core

import (
	"reflect"

	"github.com/gocrud/modular/di"
)

// AddSingleton 将接口 T 绑定到实现 impl，并注册为单例
// impl 可以是实例，也可以是构造函数
//
// 示例:
//
//	core.AddSingleton[IService](ctx, NewServiceImpl)
func AddSingleton[T any](ctx *ServiceConfigurationContext, impl any) {
	di.Register[T](ctx.container, bindOption(impl), di.WithSingleton())
}

// AddTransient 将接口 T 绑定到实现 impl，并注册为瞬态服务
// impl 必须是构造函数
//
// 示例:
//
//	core.AddTransient[IWorker](ctx, NewWorker)
func AddTransient[T any](ctx *ServiceConfigurationContext, impl any) {
	di.Register[T](ctx.container, di.WithFactory(impl), di.WithTransient())
}

// AddScoped 将接口 T 绑定到实现 impl，并注册为作用域服务
// impl 必须是构造函数
//
// 示例:
//
//	core.AddScoped[IRequestScope](ctx, NewRequestScope)
func AddScoped[T any](ctx *ServiceConfigurationContext, impl any) {
	di.Register[T](ctx.container, di.WithFactory(impl), di.WithScoped())
}

func bindOption(impl any) di.Option {
	if reflect.TypeOf(impl).Kind() == reflect.Func {
		return di.WithFactory(impl)
	}
	return di.WithValue(impl)
}
