package redis

import (
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ClientOptions Redis 客户端配置选项
// 对应配置节 Redis:Clients:<name>
type ClientOptions struct {
	Name         string        `json:"-"`
	Addr         string        `json:"addr"`
	Username     string        `json:"username"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	MaxRetries   int           `json:"max_retries"`
}

// Settings 模块配置，对应配置节 Redis
type Settings struct {
	Clients map[string]ClientOptions `json:"clients"`
	// PingOnStart 初始化时检查所有客户端的连通性
	PingOnStart bool `json:"ping_on_start"`
	// DisableHealthCheck 不映射 /health/redis
	DisableHealthCheck bool `json:"disable_health_check"`
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *ClientOptions {
	return &ClientOptions{
		Name:         name,
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	}
}

// merge 用 src 中的非零值覆盖 o
func (o *ClientOptions) merge(src ClientOptions) {
	if src.Addr != "" {
		o.Addr = src.Addr
	}
	if src.Username != "" {
		o.Username = src.Username
	}
	if src.Password != "" {
		o.Password = src.Password
	}
	if src.DB != 0 {
		o.DB = src.DB
	}
	if src.DialTimeout != 0 {
		o.DialTimeout = src.DialTimeout
	}
	if src.ReadTimeout != 0 {
		o.ReadTimeout = src.ReadTimeout
	}
	if src.WriteTimeout != 0 {
		o.WriteTimeout = src.WriteTimeout
	}
	if src.PoolSize != 0 {
		o.PoolSize = src.PoolSize
	}
	if src.MinIdleConns != 0 {
		o.MinIdleConns = src.MinIdleConns
	}
	if src.MaxRetries != 0 {
		o.MaxRetries = src.MaxRetries
	}
}

// Validate 验证配置
func (o *ClientOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("redis client name is required")
	}
	if o.Addr == "" {
		return fmt.Errorf("redis address is required")
	}
	if o.DB < 0 {
		return fmt.Errorf("redis database number must be non-negative")
	}
	if o.DialTimeout <= 0 {
		return fmt.Errorf("redis dial timeout must be positive")
	}
	return nil
}

func (o *ClientOptions) redisOptions() *goredis.Options {
	return &goredis.Options{
		Addr:         o.Addr,
		Username:     o.Username,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		PoolSize:     o.PoolSize,
		MinIdleConns: o.MinIdleConns,
		MaxRetries:   o.MaxRetries,
	}
}
