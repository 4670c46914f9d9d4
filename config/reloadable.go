package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchableSource 可以被文件监听触发重载的配置源
type WatchableSource interface {
	ConfigurationSource
	WatchPath() string
}

// ReloadableConfiguration 可重载的配置
// 每次读取都基于当前快照，Reload 原子替换快照，读取无锁
type ReloadableConfiguration struct {
	sources []ConfigurationSource
	current atomic.Pointer[configuration]
	version atomic.Uint64

	mu        sync.Mutex
	callbacks []func()

	watchMu     sync.Mutex
	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// BuildReloadable 构建可重载的配置
func (b *ConfigurationBuilder) BuildReloadable() (*ReloadableConfiguration, error) {
	rc := &ReloadableConfiguration{sources: b.GetSources()}
	if err := rc.load(); err != nil {
		return nil, err
	}
	return rc, nil
}

func (r *ReloadableConfiguration) load() error {
	data, err := loadSources(r.sources)
	if err != nil {
		return err
	}
	r.current.Store(&configuration{data: data})
	r.version.Add(1)
	return nil
}

// Version 每次成功加载加一，首次加载后为 1
func (r *ReloadableConfiguration) Version() uint64 {
	return r.version.Load()
}

// Reload 重新加载所有配置源并通知订阅者
// 加载失败时保留旧快照
func (r *ReloadableConfiguration) Reload() error {
	if err := r.load(); err != nil {
		return err
	}

	r.mu.Lock()
	callbacks := make([]func(), len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	return nil
}

// OnReload 注册重载回调
func (r *ReloadableConfiguration) OnReload(cb func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// Sources 返回配置源
func (r *ReloadableConfiguration) Sources() []ConfigurationSource {
	return r.sources
}

func (r *ReloadableConfiguration) snapshot() *configuration {
	return r.current.Load()
}

func (r *ReloadableConfiguration) Get(key string) string {
	return r.snapshot().Get(key)
}

func (r *ReloadableConfiguration) GetWithDefault(key, defaultValue string) string {
	return r.snapshot().GetWithDefault(key, defaultValue)
}

func (r *ReloadableConfiguration) GetInt(key string) (int, error) {
	return r.snapshot().GetInt(key)
}

func (r *ReloadableConfiguration) GetBool(key string) (bool, error) {
	return r.snapshot().GetBool(key)
}

func (r *ReloadableConfiguration) GetDuration(key string) (time.Duration, error) {
	return r.snapshot().GetDuration(key)
}

func (r *ReloadableConfiguration) GetSection(key string) Configuration {
	return r.snapshot().GetSection(key)
}

func (r *ReloadableConfiguration) Bind(key string, target any) error {
	return r.snapshot().Bind(key, target)
}

func (r *ReloadableConfiguration) GetAll() map[string]any {
	return r.snapshot().GetAll()
}

// StartWatch 监听文件配置源，变更时重载并调用 onChange
// 没有可监听的配置源时直接返回
func (r *ReloadableConfiguration) StartWatch(ctx context.Context, onChange func(error)) error {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()

	if r.watcher != nil {
		return errors.New("config: watch already started")
	}

	files := make(map[string]struct{})
	for _, source := range r.sources {
		if ws, ok := source.(WatchableSource); ok {
			abs, err := filepath.Abs(ws.WatchPath())
			if err != nil {
				return fmt.Errorf("config: resolve %s: %w", ws.WatchPath(), err)
			}
			files[abs] = struct{}{}
		}
	}
	if len(files) == 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}

	// 监听目录而不是文件，编辑器通常以重命名方式保存
	dirs := make(map[string]struct{})
	for file := range files {
		dirs[filepath.Dir(file)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("config: watch %s: %w", dir, err)
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	r.watcher = watcher
	r.watchCancel = cancel
	r.watchDone = make(chan struct{})

	go r.watchLoop(watchCtx, watcher, files, onChange, r.watchDone)
	return nil
}

func (r *ReloadableConfiguration) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, files map[string]struct{}, onChange func(error), done chan struct{}) {
	defer close(done)

	const debounce = 100 * time.Millisecond
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if _, tracked := files[filepath.Clean(event.Name)]; !tracked {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			err := r.Reload()
			if onChange != nil {
				onChange(err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if onChange != nil {
				onChange(fmt.Errorf("config: watch error: %w", err))
			}
		}
	}
}

// StopWatch 停止文件监听，可重复调用
func (r *ReloadableConfiguration) StopWatch() {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()

	if r.watcher == nil {
		return
	}
	r.watchCancel()
	<-r.watchDone
	r.watcher.Close()
	r.watcher = nil
}
