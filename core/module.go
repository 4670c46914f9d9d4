package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrModuleCycle 模块依赖存在循环
var ErrModuleCycle = errors.New("module dependency cycle")

// Module 应用模块
// 模块通过实现下面的单方法接口参与应用生命周期，至少实现其中一个
type Module interface {
	// Name 返回模块名称，用于日志记录和调试
	Name() string
}

// ServiceConfigurator 在容器构建之前注册服务
type ServiceConfigurator interface {
	ConfigureServices(ctx *ServiceConfigurationContext) error
}

// PreInitializer 在所有模块的 OnApplicationInitialization 之前执行
type PreInitializer interface {
	OnPreApplicationInitialization(ctx *ApplicationInitializationContext) error
}

// Initializer 容器构建之后执行，可以解析服务、注册路由
type Initializer interface {
	OnApplicationInitialization(ctx *ApplicationInitializationContext) error
}

// PostInitializer 在所有模块的 OnApplicationInitialization 之后执行
type PostInitializer interface {
	OnPostApplicationInitialization(ctx *ApplicationInitializationContext) error
}

// ShutdownHandler 应用关闭时按模块加载的相反顺序执行
type ShutdownHandler interface {
	OnApplicationShutdown(ctx *ApplicationShutdownContext) error
}

// DependencyProvider 声明依赖的模块，依赖总是先于本模块加载
type DependencyProvider interface {
	DependsOn() []Module
}

// validateModule 检查模块是否实现了任何受支持的接口
func validateModule(m Module) error {
	switch m.(type) {
	case ServiceConfigurator, PreInitializer, Initializer, PostInitializer, ShutdownHandler, DependencyProvider:
		return nil
	}
	return fmt.Errorf("app: Module '%s' does not implement any supported interfaces "+
		"(ServiceConfigurator, PreInitializer, Initializer, PostInitializer, ShutdownHandler, DependencyProvider). "+
		"Check if your method signatures exactly match the interface definitions", m.Name())
}

// loadModules 深度优先展开依赖，依赖在前，每种模块类型只出现一次
func loadModules(roots []Module) ([]Module, error) {
	const (
		visiting = 1
		visited  = 2
	)

	state := make(map[reflect.Type]int)
	ordered := make([]Module, 0, len(roots))
	var path []string

	var visit func(m Module) error
	visit = func(m Module) error {
		if m == nil {
			return errors.New("app: nil module")
		}
		typ := reflect.TypeOf(m)

		switch state[typ] {
		case visited:
			return nil
		case visiting:
			return fmt.Errorf("%w: %s -> %s", ErrModuleCycle, strings.Join(path, " -> "), m.Name())
		}

		if err := validateModule(m); err != nil {
			return err
		}

		state[typ] = visiting
		path = append(path, m.Name())

		if dp, ok := m.(DependencyProvider); ok {
			for _, dep := range dp.DependsOn() {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		path = path[:len(path)-1]
		state[typ] = visited
		ordered = append(ordered, m)
		return nil
	}

	for _, m := range roots {
		if err := visit(m); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
