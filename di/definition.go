package di

import (
	"fmt"
	"reflect"
	"sync"
)

// ScopeType 服务的生命周期
type ScopeType int

const (
	// ScopeSingleton 每个容器一个实例（默认）
	ScopeSingleton ScopeType = iota
	// ScopeTransient 每次解析创建新实例
	ScopeTransient
	// ScopeScoped 每个作用域一个实例
	ScopeScoped
)

func (s ScopeType) String() string {
	switch s {
	case ScopeSingleton:
		return "singleton"
	case ScopeTransient:
		return "transient"
	case ScopeScoped:
		return "scoped"
	default:
		return fmt.Sprintf("ScopeType(%d)", int(s))
	}
}

// ServiceKey 服务类型加名称，空名称为默认服务
type ServiceKey struct {
	Type reflect.Type
	Name string
}

func (k ServiceKey) String() string {
	if k.Name == "" {
		return k.Type.String()
	}
	return fmt.Sprintf("%v(name=%s)", k.Type, k.Name)
}

// ServiceDefinition 服务注册信息
//
// 构造方式按优先级：IsValue 使用 Impl 本身；IsFactory 或 Impl 为函数时调用函数；
// 否则按 ImplType 创建结构体并注入带 `di` 标签的字段。
type ServiceDefinition struct {
	ID       int
	Type     reflect.Type
	Name     string
	Scope    ScopeType
	ImplType reflect.Type
	Impl     any
	// IsFactory Impl 是参数由容器注入的工厂函数
	IsFactory bool
	// IsValue Impl 是现成的实例
	IsValue bool
	// InjectFields 对 IsValue 的实例执行 `di` 标签字段注入
	InjectFields bool

	plan *plan

	singletonOnce sync.Once
	singleton     any
	singletonErr  error
}

func (d *ServiceDefinition) key() ServiceKey {
	return ServiceKey{Type: d.Type, Name: d.Name}
}

func (d *ServiceDefinition) isFunc() bool {
	return d.IsFactory || (d.Impl != nil && reflect.TypeOf(d.Impl).Kind() == reflect.Func)
}

// Option 配置服务注册
type Option func(*ServiceDefinition)

// WithScope 设置生命周期
func WithScope(scope ScopeType) Option {
	return func(d *ServiceDefinition) { d.Scope = scope }
}

func WithSingleton() Option { return WithScope(ScopeSingleton) }

func WithTransient() Option { return WithScope(ScopeTransient) }

func WithScoped() Option { return WithScope(ScopeScoped) }

// WithValue 注册现成的实例，生命周期固定为单例
func WithValue(v any) Option {
	return func(d *ServiceDefinition) {
		d.Impl = v
		d.IsValue = true
		d.Scope = ScopeSingleton
	}
}

// WithFactory 注册工厂函数，参数从容器解析
//
// 函数返回 T 或 (T, error)。
func WithFactory(fn any) Option {
	return func(d *ServiceDefinition) {
		d.Impl = fn
		d.IsFactory = true
	}
}

// WithFields 对 WithValue 的实例执行 `di` 标签字段注入
func WithFields() Option {
	return func(d *ServiceDefinition) { d.InjectFields = true }
}

// WithName 设置服务名称，用于命名注入
func WithName(name string) Option {
	return func(d *ServiceDefinition) { d.Name = name }
}

// Use 指定接口的实现类型
func Use[T any]() Option {
	return func(d *ServiceDefinition) { d.ImplType = TypeOf[T]() }
}
