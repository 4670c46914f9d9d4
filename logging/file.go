package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileLoggerOptions 文件日志选项
type FileLoggerOptions struct {
	Path string
	// Json 为 true 时每行输出一个 JSON 对象
	Json bool
	// BufferSize 异步队列长度，默认 1024
	BufferSize int
}

// FileLoggerProvider 文件日志提供者
// 日志经 AsyncWriter 在后台写入，Close 时刷新
type FileLoggerProvider struct {
	levelHolder
	options FileLoggerOptions

	mu       sync.RWMutex
	file     *os.File
	writer   *AsyncWriter
	fallback *ConsoleLoggerProvider
	closed   bool
}

func NewFileLoggerProvider(options FileLoggerOptions) *FileLoggerProvider {
	if options.BufferSize <= 0 {
		options.BufferSize = 1024
	}
	p := &FileLoggerProvider{options: options}
	p.set(LogLevelInfo)
	return p
}

func (p *FileLoggerProvider) CreateLogger(category string) Logger {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.open(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		if p.fallback == nil {
			p.fallback = NewConsoleLoggerProvider(ConsoleLoggerOptions{Output: os.Stderr})
			p.fallback.set(p.level())
		}
		return p.fallback.CreateLogger(category)
	}

	return &entryLogger{sink: p, category: category}
}

// open 惰性打开文件，调用方持有锁
func (p *FileLoggerProvider) open() error {
	if p.writer != nil {
		return nil
	}
	if p.closed {
		return fmt.Errorf("logging: file provider %s closed", p.options.Path)
	}

	if dir := filepath.Dir(p.options.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(p.options.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	var formatter Formatter = NewTextFormatter()
	if p.options.Json {
		formatter = NewJsonFormatter()
	}
	p.file = file
	p.writer = NewAsyncWriter(file, formatter, p.options.BufferSize)
	return nil
}

func (p *FileLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.set(level)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fallback != nil {
		p.fallback.set(level)
	}
}

func (p *FileLoggerProvider) write(entry *LogEntry) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	// 关闭后写入的日志直接丢弃
	if p.writer == nil {
		return
	}
	p.writer.WriteLog(entry)
}

// Close 刷新队列并关闭文件
func (p *FileLoggerProvider) Close() error {
	p.mu.Lock()
	writer, file := p.writer, p.file
	p.writer, p.file = nil, nil
	p.closed = true
	p.mu.Unlock()

	if writer == nil {
		return nil
	}
	writer.Close()
	return file.Close()
}
