package config

import (
	"slices"
	"sync"
)

// Option 静态选项，应用启动时绑定一次
type Option[T any] interface {
	Value() T
}

// OptionSnapshot 快照选项，每个作用域创建时绑定一次
type OptionSnapshot[T any] interface {
	Value() T
}

// OptionMonitor 监听选项，配置重载后返回新值
type OptionMonitor[T any] interface {
	Value() T
	// OnChange 注册重载后的回调，回调收到新值
	OnChange(listener func(T))
}

// reloadNotifier 由 ReloadableConfiguration 实现
type reloadNotifier interface {
	OnReload(func())
}

// OptionsCache 持有某个配置节绑定后的当前值
//
// 配置节不存在时值为零值。重载后绑定失败会保留旧值，错误可由 Err 获取。
type OptionsCache[T any] struct {
	cfg     Configuration
	section string

	mu        sync.RWMutex
	current   T
	err       error
	listeners []func(T)
}

// NewOptionsCache 绑定配置节，cfg 支持重载时自动跟随
func NewOptionsCache[T any](cfg Configuration, section string) *OptionsCache[T] {
	c := &OptionsCache[T]{cfg: cfg, section: section}
	c.current, c.err = LoadOrDefault[T](cfg, section)
	if rn, ok := cfg.(reloadNotifier); ok {
		rn.OnReload(c.reload)
	}
	return c
}

func (c *OptionsCache[T]) reload() {
	value, err := LoadOrDefault[T](c.cfg, c.section)

	c.mu.Lock()
	c.err = err
	if err != nil {
		c.mu.Unlock()
		return
	}
	c.current = value
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, listener := range listeners {
		listener(value)
	}
}

// Get 返回当前值
func (c *OptionsCache[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Err 返回最近一次绑定的错误
func (c *OptionsCache[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Snapshot 从当前配置重新绑定一份独立的值，失败时返回 Get 的结果
func (c *OptionsCache[T]) Snapshot() T {
	value, err := LoadOrDefault[T](c.cfg, c.section)
	if err != nil {
		return c.Get()
	}
	return value
}

func (c *OptionsCache[T]) subscribe(listener func(T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

type staticOption[T any] struct{ value T }

func (o staticOption[T]) Value() T { return o.value }

// NewOption 创建静态选项
func NewOption[T any](value T) Option[T] {
	return staticOption[T]{value: value}
}

// NewOptionSnapshot 创建快照选项
func NewOptionSnapshot[T any](snapshot T) OptionSnapshot[T] {
	return staticOption[T]{value: snapshot}
}

type optionMonitor[T any] struct {
	cache *OptionsCache[T]
}

func (o optionMonitor[T]) Value() T { return o.cache.Get() }

func (o optionMonitor[T]) OnChange(listener func(T)) { o.cache.subscribe(listener) }

// NewOptionMonitor 创建监听选项
func NewOptionMonitor[T any](cache *OptionsCache[T]) OptionMonitor[T] {
	return optionMonitor[T]{cache: cache}
}
