package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LoggingBuilder 收集日志提供者并构建 LoggerFactory
//
// 最小级别在 Build 时统一应用到所有提供者，SetMinimumLevel 与 AddXxx 的调用顺序无关。
type LoggingBuilder struct {
	mu           sync.Mutex
	providers    []LoggerProvider
	minimumLevel LogLevel
}

// NewLoggingBuilder 创建日志构建器，默认级别 Info
func NewLoggingBuilder() *LoggingBuilder {
	return &LoggingBuilder{minimumLevel: LogLevelInfo}
}

// SetMinimumLevel 设置最小日志级别
func (b *LoggingBuilder) SetMinimumLevel(level LogLevel) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.minimumLevel = level
	return b
}

// AddProvider 添加日志提供者
func (b *LoggingBuilder) AddProvider(provider LoggerProvider) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.providers = append(b.providers, provider)
	return b
}

// AddConsole 添加控制台日志，默认输出到 stdout，带时间戳和颜色
func (b *LoggingBuilder) AddConsole(options ...ConsoleLoggerOptions) *LoggingBuilder {
	opts := ConsoleLoggerOptions{
		IncludeTimestamp: true,
		TimestampFormat:  time.DateTime,
		ColorOutput:      true,
		Output:           os.Stdout,
	}
	if len(options) > 0 {
		opts = options[0]
	}
	return b.AddProvider(NewConsoleLoggerProvider(opts))
}

// AddFile 添加文件日志
func (b *LoggingBuilder) AddFile(path string, options ...FileLoggerOptions) *LoggingBuilder {
	var opts FileLoggerOptions
	if len(options) > 0 {
		opts = options[0]
	}
	opts.Path = path
	return b.AddProvider(NewFileLoggerProvider(opts))
}

// AddZap 添加 zap 日志，zap 初始化失败时退回到控制台日志
func (b *LoggingBuilder) AddZap(options ...ZapOptions) *LoggingBuilder {
	var opts ZapOptions
	if len(options) > 0 {
		opts = options[0]
	}
	provider, err := NewZapLoggerProvider(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: build zap logger: %v\n", err)
		return b.AddConsole()
	}
	return b.AddProvider(provider)
}

// ClearProviders 移除已添加的提供者
func (b *LoggingBuilder) ClearProviders() *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.providers = nil
	return b
}

// HasProviders 报告是否已添加提供者
func (b *LoggingBuilder) HasProviders() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.providers) > 0
}

// Build 构建日志工厂
func (b *LoggingBuilder) Build() LoggerFactory {
	b.mu.Lock()
	defer b.mu.Unlock()

	factory := &loggerFactory{minimumLevel: b.minimumLevel}
	for _, provider := range b.providers {
		factory.AddProvider(provider)
	}
	return factory
}

// NewLogger 创建输出到控制台的 Logger，便于测试和示例使用
func NewLogger() Logger {
	return NewLoggingBuilder().AddConsole().Build().CreateLogger("default")
}

// NewNopFactory 创建丢弃所有输出的日志工厂
func NewNopFactory() LoggerFactory {
	return NewLoggingBuilder().
		AddConsole(ConsoleLoggerOptions{Output: io.Discard}).
		Build()
}
