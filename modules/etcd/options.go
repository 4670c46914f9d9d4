package etcd

import (
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// ClientOptions etcd 客户端配置选项
// 对应配置节 Etcd:Clients:<name>
type ClientOptions struct {
	Name               string        `json:"-"`
	Endpoints          []string      `json:"endpoints"`
	DialTimeout        time.Duration `json:"dial_timeout"`
	Username           string        `json:"username"`
	Password           string        `json:"password"`
	AutoSyncInterval   time.Duration `json:"auto_sync_interval"`
	MaxCallSendMsgSize int           `json:"max_call_send_msg_size"`
	MaxCallRecvMsgSize int           `json:"max_call_recv_msg_size"`
}

// Settings 模块配置，对应配置节 Etcd
type Settings struct {
	Clients            map[string]ClientOptions `json:"clients"`
	DisableHealthCheck bool                     `json:"disable_health_check"`
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *ClientOptions {
	return &ClientOptions{
		Name:        name,
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
	}
}

func (o *ClientOptions) merge(src ClientOptions) {
	if len(src.Endpoints) > 0 {
		o.Endpoints = src.Endpoints
	}
	if src.DialTimeout != 0 {
		o.DialTimeout = src.DialTimeout
	}
	if src.Username != "" {
		o.Username = src.Username
	}
	if src.Password != "" {
		o.Password = src.Password
	}
	if src.AutoSyncInterval != 0 {
		o.AutoSyncInterval = src.AutoSyncInterval
	}
	if src.MaxCallSendMsgSize != 0 {
		o.MaxCallSendMsgSize = src.MaxCallSendMsgSize
	}
	if src.MaxCallRecvMsgSize != 0 {
		o.MaxCallRecvMsgSize = src.MaxCallRecvMsgSize
	}
}

// Validate 验证配置
func (o *ClientOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("etcd client name is required")
	}
	if len(o.Endpoints) == 0 {
		return fmt.Errorf("etcd endpoints are required")
	}
	if o.DialTimeout <= 0 {
		return fmt.Errorf("etcd dial timeout must be positive")
	}
	return nil
}

func (o *ClientOptions) clientConfig() clientv3.Config {
	cfg := clientv3.Config{
		Endpoints:          o.Endpoints,
		DialTimeout:        o.DialTimeout,
		AutoSyncInterval:   o.AutoSyncInterval,
		MaxCallSendMsgSize: o.MaxCallSendMsgSize,
		MaxCallRecvMsgSize: o.MaxCallRecvMsgSize,
	}
	if o.Username != "" {
		cfg.Username = o.Username
		cfg.Password = o.Password
	}
	return cfg
}
