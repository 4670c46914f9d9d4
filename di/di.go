package di

import (
	"errors"
	"fmt"
	"reflect"
)

// RegisterAuto 按 target 的形态推断服务类型并注册，返回服务类型
//
//   - func(...) T 或 func(...) (T, error)：工厂，服务类型为 T
//   - *Struct：现成实例，服务类型为 *Struct；含 `di` 标签字段时自动注入
//   - reflect.Type：按类型创建并注入字段
func RegisterAuto(c Container, target any, opts ...Option) (reflect.Type, error) {
	def := &ServiceDefinition{Scope: ScopeSingleton}

	switch t := target.(type) {
	case reflect.Type:
		def.Type, def.ImplType = t, t
	default:
		v := reflect.ValueOf(target)
		switch v.Kind() {
		case reflect.Func:
			if v.Type().NumOut() == 0 {
				return nil, errors.New("di: constructor function must return at least one value")
			}
			def.Type, def.Impl, def.IsFactory = v.Type().Out(0), target, true
		case reflect.Pointer:
			def.Type, def.Impl, def.IsValue = v.Type(), target, true
			def.InjectFields = hasInjectTags(v.Type().Elem())
		default:
			return nil, fmt.Errorf("di: unsupported auto-registration target type: %T", target)
		}
	}

	for _, opt := range opts {
		opt(def)
	}
	if err := c.Add(def); err != nil {
		return nil, err
	}
	return def.Type, nil
}

func hasInjectTags(typ reflect.Type) bool {
	if typ.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < typ.NumField(); i++ {
		if _, ok := typ.Field(i).Tag.Lookup("di"); ok {
			return true
		}
	}
	return false
}

// Register registers a service of type T with the container.
// If T is an interface, you must use di.Use[Impl]() to specify the implementation.
func Register[T any](c Container, opts ...Option) {
	typ := TypeOf[T]()

	def := &ServiceDefinition{
		Type:     typ,
		Scope:    ScopeSingleton,
		ImplType: typ,
	}

	for _, opt := range opts {
		opt(def)
	}

	if err := c.Add(def); err != nil {
		panic(fmt.Sprintf("di: failed to register %v: %v", typ, err))
	}
}

// TryRegister 与 Register 相同，但服务已注册时返回 false 而不是 panic
func TryRegister[T any](c Container, opts ...Option) bool {
	if c.Has(TypeOf[T](), nameOf(opts)) {
		return false
	}
	Register[T](c, opts...)
	return true
}

// Resolve resolves an instance of type T from the container or scope.
func Resolve[T any](c Container) (T, error) {
	return ResolveNamed[T](c, "")
}

// ResolveNamed resolves an instance of type T with a specific name from the container or scope.
func ResolveNamed[T any](c Container, name string) (T, error) {
	var zero T
	typ := TypeOf[T]()

	val, err := c.GetNamed(typ, name)
	if err != nil {
		return zero, err
	}

	if val == nil {
		return zero, nil
	}

	if v, ok := val.(T); ok {
		return v, nil
	}

	return zero, fmt.Errorf("di: resolved value is %T, expected %v", val, typ)
}

// MustResolve 解析 T，失败时 panic
func MustResolve[T any](c Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return v
}

// GetRequiredService 必需查找：T 未注册时返回包装了 ErrServiceNotFound 的错误
func GetRequiredService[T any](c Container) (T, error) {
	return Resolve[T](c)
}

// GetService 可选查找：T 未注册时返回零值和 nil 错误
// 已注册但构造失败的错误仍然返回
func GetService[T any](c Container) (T, error) {
	v, err := Resolve[T](c)
	if err != nil && IsNotFound(err) && !c.Has(TypeOf[T](), "") {
		var zero T
		return zero, nil
	}
	return v, err
}

// TypeOf 获取类型 T 的 reflect.Type（泛型辅助函数）
// 对接口类型同样适用
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func nameOf(opts []Option) string {
	probe := &ServiceDefinition{}
	for _, opt := range opts {
		opt(probe)
	}
	return probe.Name
}
