package di

import "sync"

// ObjectAccessor 持有一个稍后才会赋值的对象
//
// 容器构建时某些对象尚不存在（例如 HTTP 请求管道构建器），
// 先注册访问器，待对象创建后再通过 Set 赋值。
type ObjectAccessor[T any] struct {
	mu    sync.RWMutex
	value T
	set   bool
}

// NewObjectAccessor 创建访问器，可选地提供初始值
func NewObjectAccessor[T any](initial ...T) *ObjectAccessor[T] {
	a := &ObjectAccessor[T]{}
	if len(initial) > 0 {
		a.Set(initial[0])
	}
	return a
}

// Value 返回当前值，未赋值时为零值
func (a *ObjectAccessor[T]) Value() T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value
}

// Set 设置值
func (a *ObjectAccessor[T]) Set(v T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.value = v
	a.set = true
}

// HasValue 报告是否调用过 Set
func (a *ObjectAccessor[T]) HasValue() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.set
}

// AddObjectAccessor 创建访问器并以单例值注册到容器
func AddObjectAccessor[T any](c Container, initial ...T) *ObjectAccessor[T] {
	accessor := NewObjectAccessor(initial...)
	Register[*ObjectAccessor[T]](c, WithValue(accessor))
	return accessor
}

// GetObjectOrNil 可选地查找 T 的访问器并返回其值
func GetObjectOrNil[T any](c Container) (T, error) {
	var zero T
	accessor, err := GetService[*ObjectAccessor[T]](c)
	if err != nil || accessor == nil {
		return zero, err
	}
	return accessor.Value(), nil
}
