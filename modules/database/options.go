package database

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ConnectionOptions 数据库连接配置
// 对应配置节 Database:Connections:<name>
type ConnectionOptions struct {
	Name string `json:"-"`
	// Driver 目前内置 sqlite；其他数据库通过 Dialector 提供
	Driver        string        `json:"driver"`
	DSN           string        `json:"dsn"`
	MaxIdleConns  int           `json:"max_idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	MaxLifetime   time.Duration `json:"max_lifetime"`
	LogLevel      string        `json:"log_level"`
	SlowThreshold time.Duration `json:"slow_threshold"`

	// Dialector 显式指定的 GORM 驱动，优先于 Driver
	Dialector gorm.Dialector `json:"-"`
	// AutoMigrate 打开连接后自动迁移的模型
	AutoMigrate []any `json:"-"`
}

// Settings 模块配置，对应配置节 Database
type Settings struct {
	Connections        map[string]ConnectionOptions `json:"connections"`
	DisableHealthCheck bool                         `json:"disable_health_check"`
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *ConnectionOptions {
	return &ConnectionOptions{
		Name:          name,
		Driver:        "sqlite",
		MaxIdleConns:  10,
		MaxOpenConns:  100,
		MaxLifetime:   time.Hour,
		LogLevel:      "warn",
		SlowThreshold: 200 * time.Millisecond,
	}
}

// AutoMigrate 返回追加迁移模型的配置函数
func AutoMigrate(models ...any) func(*ConnectionOptions) {
	return func(o *ConnectionOptions) {
		o.AutoMigrate = append(o.AutoMigrate, models...)
	}
}

func (o *ConnectionOptions) merge(src ConnectionOptions) {
	if src.Driver != "" {
		o.Driver = src.Driver
	}
	if src.DSN != "" {
		o.DSN = src.DSN
	}
	if src.MaxIdleConns != 0 {
		o.MaxIdleConns = src.MaxIdleConns
	}
	if src.MaxOpenConns != 0 {
		o.MaxOpenConns = src.MaxOpenConns
	}
	if src.MaxLifetime != 0 {
		o.MaxLifetime = src.MaxLifetime
	}
	if src.LogLevel != "" {
		o.LogLevel = src.LogLevel
	}
	if src.SlowThreshold != 0 {
		o.SlowThreshold = src.SlowThreshold
	}
}

// Validate 验证配置
func (o *ConnectionOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if o.Dialector == nil && o.DSN == "" {
		return fmt.Errorf("database dsn or dialector is required")
	}
	if _, err := parseGormLevel(o.LogLevel); err != nil {
		return err
	}
	return nil
}

// dialector 返回 GORM 驱动
func (o *ConnectionOptions) dialector() (gorm.Dialector, error) {
	if o.Dialector != nil {
		return o.Dialector, nil
	}
	switch strings.ToLower(o.Driver) {
	case "", "sqlite", "sqlite3":
		return sqlite.Open(o.DSN), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q, provide a Dialector instead", o.Driver)
}
