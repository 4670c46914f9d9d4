package core

import (
	"context"

	"github.com/gocrud/modular/di"
)

// ApplicationInitializationContext 应用初始化阶段传给模块的上下文
type ApplicationInitializationContext struct {
	// ServiceProvider 已构建的 DI 容器
	ServiceProvider di.Container

	ctx context.Context
}

// NewApplicationInitializationContext 创建初始化上下文，serviceProvider 不能为 nil
func NewApplicationInitializationContext(ctx context.Context, serviceProvider di.Container) *ApplicationInitializationContext {
	if serviceProvider == nil {
		panic("app: serviceProvider cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &ApplicationInitializationContext{ServiceProvider: serviceProvider, ctx: ctx}
}

// Context 返回初始化过程的 context
func (c *ApplicationInitializationContext) Context() context.Context {
	return c.ctx
}

// ApplicationShutdownContext 应用关闭阶段传给模块的上下文
type ApplicationShutdownContext struct {
	ServiceProvider di.Container

	ctx context.Context
}

// NewApplicationShutdownContext 创建关闭上下文，serviceProvider 不能为 nil
func NewApplicationShutdownContext(ctx context.Context, serviceProvider di.Container) *ApplicationShutdownContext {
	if serviceProvider == nil {
		panic("app: serviceProvider cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &ApplicationShutdownContext{ServiceProvider: serviceProvider, ctx: ctx}
}

// Context 返回关闭过程的 context，带有关闭超时
func (c *ApplicationShutdownContext) Context() context.Context {
	return c.ctx
}
