package hosting

import (
	"os"
	"path/filepath"
	"strings"
)

// 常用环境名称
const (
	Development = "Development"
	Staging     = "Staging"
	Production  = "Production"
)

// Environment 应用运行环境信息（类似于 .NET Core IWebHostEnvironment）
type Environment interface {
	Name() string
	ApplicationName() string
	ContentRootPath() string
	WebRootPath() string
	IsDevelopment() bool
	IsStaging() bool
	IsProduction() bool
	// IsEnvironment 不区分大小写地比较环境名称
	IsEnvironment(name string) bool
}

// EnvironmentOption 环境选项
type EnvironmentOption func(*environment)

// WithApplicationName 设置应用名称
func WithApplicationName(name string) EnvironmentOption {
	return func(e *environment) {
		e.applicationName = name
	}
}

// WithContentRoot 设置内容根目录
func WithContentRoot(path string) EnvironmentOption {
	return func(e *environment) {
		e.contentRoot = path
	}
}

// WithWebRoot 设置 Web 根目录，相对路径基于内容根目录
func WithWebRoot(path string) EnvironmentOption {
	return func(e *environment) {
		e.webRoot = path
	}
}

type environment struct {
	name            string
	applicationName string
	contentRoot     string
	webRoot         string
}

// NewEnvironment 创建环境
// 默认值：内容根目录为工作目录，Web 根目录为 <内容根目录>/wwwroot，应用名为可执行文件名
func NewEnvironment(name string, opts ...EnvironmentOption) Environment {
	if name == "" {
		name = Production
	}
	e := &environment{name: name}
	for _, opt := range opts {
		opt(e)
	}

	if e.contentRoot == "" {
		if wd, err := os.Getwd(); err == nil {
			e.contentRoot = wd
		}
	}
	if e.webRoot == "" {
		e.webRoot = filepath.Join(e.contentRoot, "wwwroot")
	} else if !filepath.IsAbs(e.webRoot) {
		e.webRoot = filepath.Join(e.contentRoot, e.webRoot)
	}
	if e.applicationName == "" {
		e.applicationName = executableName()
	}
	return e
}

// EnvironmentFromVariables 从 <prefix>ENVIRONMENT 读取环境名称，未设置时为 Production
func EnvironmentFromVariables(prefix string, opts ...EnvironmentOption) Environment {
	name := os.Getenv(prefix + "ENVIRONMENT")
	return NewEnvironment(name, opts...)
}

func executableName() string {
	exe, err := os.Executable()
	if err != nil {
		return "app"
	}
	return strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe))
}

func (e *environment) Name() string            { return e.name }
func (e *environment) ApplicationName() string { return e.applicationName }
func (e *environment) ContentRootPath() string { return e.contentRoot }
func (e *environment) WebRootPath() string     { return e.webRoot }
func (e *environment) IsDevelopment() bool     { return e.IsEnvironment(Development) }
func (e *environment) IsStaging() bool         { return e.IsEnvironment(Staging) }
func (e *environment) IsProduction() bool      { return e.IsEnvironment(Production) }

func (e *environment) IsEnvironment(name string) bool {
	return strings.EqualFold(e.name, name)
}
