package di

import (
	"errors"
	"fmt"
	"reflect"
)

// 容器错误哨兵值，使用 errors.Is 判断
var (
	// ErrServiceNotFound 请求的服务类型未注册
	ErrServiceNotFound = errors.New("di: service not found")
	// ErrContainerNotBuilt 容器尚未构建
	ErrContainerNotBuilt = errors.New("di: container not built")
	// ErrContainerBuilt 容器构建后不允许再注册
	ErrContainerBuilt = errors.New("di: container already built")
	// ErrAlreadyRegistered 服务重复注册
	ErrAlreadyRegistered = errors.New("di: service already registered")
	// ErrCircularDependency 检测到循环依赖
	ErrCircularDependency = errors.New("di: circular dependency")
	// ErrScopedFromRoot 从根容器解析作用域服务
	ErrScopedFromRoot = errors.New("di: scoped service resolved from root container")
)

// ServiceError 描述与某个服务键相关的错误
type ServiceError struct {
	Type reflect.Type
	Name string
	Err  error
}

func (e *ServiceError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%v: %v", e.Err, e.Type)
	}
	return fmt.Sprintf("%v: %v (name=%s)", e.Err, e.Type, e.Name)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func newServiceError(typ reflect.Type, name string, err error) error {
	return &ServiceError{Type: typ, Name: name, Err: err}
}

// IsNotFound 判断错误是否表示服务未注册
func IsNotFound(err error) bool {
	return errors.Is(err, ErrServiceNotFound)
}
