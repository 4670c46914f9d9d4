// Package check 提供参数与返回值的守卫函数
package check

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNil 值为 nil
var ErrNil = errors.New("value cannot be nil")

// NotNil 检查 value 非 nil，包括装在接口里的 nil 指针、map、切片等
// 失败时返回包装了 ErrNil 并带有参数名的错误
func NotNil[T any](value T, name string) (T, error) {
	if isNil(value) {
		return value, fmt.Errorf("%s: %w", name, ErrNil)
	}
	return value, nil
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return v.IsNil()
	}
	return false
}
