// Package registry 按名称管理客户端实例
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// DefaultName 默认客户端名称，同时以无名方式注册到容器
const DefaultName = "default"

var (
	// ErrDuplicate 名称已存在
	ErrDuplicate = errors.New("already registered")
	// ErrNotFound 名称不存在
	ErrNotFound = errors.New("not found")
)

// Registry 按名称保存客户端，保持注册顺序
type Registry[T any] struct {
	kind    string
	closeFn func(context.Context, T) error
	pingFn  func(context.Context, T) error

	mu    sync.RWMutex
	items map[string]T
	order []string
}

// New 创建注册表
// kind 用于错误信息，closeFn 和 pingFn 可以为 nil
func New[T any](kind string, closeFn, pingFn func(context.Context, T) error) *Registry[T] {
	return &Registry[T]{
		kind:    kind,
		closeFn: closeFn,
		pingFn:  pingFn,
		items:   make(map[string]T),
	}
}

// Add 添加客户端
func (r *Registry[T]) Add(name string, item T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return fmt.Errorf("%s client '%s' %w", r.kind, name, ErrDuplicate)
	}
	r.items[name] = item
	r.order = append(r.order, name)
	return nil
}

// Get 获取客户端
func (r *Registry[T]) Get(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[name]
	if !exists {
		var zero T
		return zero, fmt.Errorf("%s client '%s' %w", r.kind, name, ErrNotFound)
	}
	return item, nil
}

// Names 按注册顺序返回名称
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len 客户端数量
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Each 按注册顺序遍历
func (r *Registry[T]) Each(fn func(name string, item T)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		fn(name, r.items[name])
	}
}

// Ping 检查所有客户端，汇总错误
func (r *Registry[T]) Ping(ctx context.Context) error {
	if r.pingFn == nil {
		return nil
	}

	var result *multierror.Error
	r.Each(func(name string, item T) {
		if err := r.pingFn(ctx, item); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s client '%s': %w", r.kind, name, err))
		}
	})
	return result.ErrorOrNil()
}

// Close 按注册的相反顺序关闭所有客户端并清空注册表
func (r *Registry[T]) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result *multierror.Error
	if r.closeFn != nil {
		for i := len(r.order) - 1; i >= 0; i-- {
			name := r.order[i]
			if err := r.closeFn(ctx, r.items[name]); err != nil {
				result = multierror.Append(result, fmt.Errorf("failed to close %s client '%s': %w", r.kind, name, err))
			}
		}
	}

	r.items = make(map[string]T)
	r.order = nil
	return result.ErrorOrNil()
}
