package mongodb

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ClientOptions MongoDB 客户端配置选项
// 对应配置节 MongoDB:Clients:<name>
type ClientOptions struct {
	Name        string        `json:"-"`
	URI         string        `json:"uri"`
	Database    string        `json:"database"`
	Username    string        `json:"username"`
	Password    string        `json:"password"`
	AuthSource  string        `json:"auth_source"`
	MaxPoolSize uint64        `json:"max_pool_size"`
	MinPoolSize uint64        `json:"min_pool_size"`
	Timeout     time.Duration `json:"timeout"`
}

// Settings 模块配置，对应配置节 MongoDB
type Settings struct {
	Clients            map[string]ClientOptions `json:"clients"`
	PingOnStart        bool                     `json:"ping_on_start"`
	DisableHealthCheck bool                     `json:"disable_health_check"`
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *ClientOptions {
	return &ClientOptions{
		Name:        name,
		MaxPoolSize: 100,
		MinPoolSize: 0,
		Timeout:     10 * time.Second,
	}
}

func (o *ClientOptions) merge(src ClientOptions) {
	if src.URI != "" {
		o.URI = src.URI
	}
	if src.Database != "" {
		o.Database = src.Database
	}
	if src.Username != "" {
		o.Username = src.Username
	}
	if src.Password != "" {
		o.Password = src.Password
	}
	if src.AuthSource != "" {
		o.AuthSource = src.AuthSource
	}
	if src.MaxPoolSize != 0 {
		o.MaxPoolSize = src.MaxPoolSize
	}
	if src.MinPoolSize != 0 {
		o.MinPoolSize = src.MinPoolSize
	}
	if src.Timeout != 0 {
		o.Timeout = src.Timeout
	}
}

// Validate 验证配置
func (o *ClientOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("mongo client name is required")
	}
	if o.URI == "" {
		return fmt.Errorf("mongo uri is required")
	}
	if o.MinPoolSize > o.MaxPoolSize && o.MaxPoolSize > 0 {
		return fmt.Errorf("mongo min pool size exceeds max pool size")
	}
	return nil
}

func (o *ClientOptions) clientOptions() *options.ClientOptions {
	opts := options.Client().ApplyURI(o.URI)
	if o.Username != "" || o.Password != "" {
		opts.SetAuth(options.Credential{
			Username:   o.Username,
			Password:   o.Password,
			AuthSource: o.AuthSource,
		})
	}
	if o.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(o.MaxPoolSize)
	}
	if o.MinPoolSize > 0 {
		opts.SetMinPoolSize(o.MinPoolSize)
	}
	if o.Timeout > 0 {
		opts.SetConnectTimeout(o.Timeout)
		opts.SetServerSelectionTimeout(o.Timeout)
	}
	return opts
}
