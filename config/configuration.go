// Package config 提供分层配置：多个配置源按顺序合并，后添加的覆盖先添加的
//
// 键不区分大小写，":" 与 "." 都可作为层级分隔符，"Redis:Clients" 与 "redis.clients" 等价。
package config

import (
	"fmt"
	"sync"
	"time"
)

// Configuration 配置接口（类似于 .NET Core IConfiguration）
type Configuration interface {
	// Get 获取配置值，不存在时返回空字符串
	Get(key string) string
	GetWithDefault(key, defaultValue string) string
	GetInt(key string) (int, error)
	GetBool(key string) (bool, error)
	// GetDuration 获取时长配置值，支持 "5s" 形式或整数毫秒
	GetDuration(key string) (time.Duration, error)
	// GetSection 获取配置节，不存在时返回空配置
	GetSection(key string) Configuration
	// Bind 按 json 标签把配置节绑定到 target
	Bind(key string, target any) error
	// GetAll 返回全部配置的副本
	GetAll() map[string]any
}

// ConfigurationSource 配置源接口
type ConfigurationSource interface {
	Load() (map[string]any, error)
	Name() string
}

// ConfigurationBuilder 配置构建器
type ConfigurationBuilder struct {
	mu      sync.RWMutex
	sources []ConfigurationSource
}

// NewConfigurationBuilder 创建配置构建器
func NewConfigurationBuilder() *ConfigurationBuilder {
	return &ConfigurationBuilder{}
}

// Add 添加配置源
func (b *ConfigurationBuilder) Add(source ConfigurationSource) *ConfigurationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, source)
	return b
}

// AddJsonFile 添加 JSON 文件，optional 为 true 时文件不存在不报错
func (b *ConfigurationBuilder) AddJsonFile(path string, optional ...bool) *ConfigurationBuilder {
	return b.Add(&FileSource{Path: path, Format: FormatJSON, Optional: len(optional) > 0 && optional[0]})
}

// AddYamlFile 添加 YAML 文件，optional 为 true 时文件不存在不报错
func (b *ConfigurationBuilder) AddYamlFile(path string, optional ...bool) *ConfigurationBuilder {
	return b.Add(&FileSource{Path: path, Format: FormatYAML, Optional: len(optional) > 0 && optional[0]})
}

// AddEnvironmentVariables 添加以 prefix 开头的环境变量
func (b *ConfigurationBuilder) AddEnvironmentVariables(prefix string) *ConfigurationBuilder {
	return b.Add(&EnvironmentVariableSource{Prefix: prefix})
}

// AddInMemory 添加内存配置源
func (b *ConfigurationBuilder) AddInMemory(data map[string]any) *ConfigurationBuilder {
	return b.Add(&InMemorySource{Data: data})
}

// AddEtcd 添加 etcd 配置源，超时默认 5 秒
func (b *ConfigurationBuilder) AddEtcd(opts EtcdOptions) *ConfigurationBuilder {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	return b.Add(&EtcdSource{Options: opts})
}

// GetSources 返回已添加配置源的副本
func (b *ConfigurationBuilder) GetSources() []ConfigurationSource {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]ConfigurationSource(nil), b.sources...)
}

// Build 加载所有配置源，构建只读配置
func (b *ConfigurationBuilder) Build() (Configuration, error) {
	tree, err := loadSources(b.GetSources())
	if err != nil {
		return nil, err
	}
	return &configuration{data: tree}, nil
}

// NewFromMap 用给定数据创建只读配置
func NewFromMap(data map[string]any) Configuration {
	return &configuration{data: normalizeKeys(data)}
}

func loadSources(sources []ConfigurationSource) (map[string]any, error) {
	tree := make(map[string]any)
	for _, source := range sources {
		loaded, err := source.Load()
		if err != nil {
			return nil, fmt.Errorf("config: load %s: %w", source.Name(), err)
		}
		mergeMaps(tree, normalizeKeys(loaded))
	}
	return tree, nil
}
