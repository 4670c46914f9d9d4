package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ConsoleLoggerOptions 控制台日志选项
type ConsoleLoggerOptions struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
	Output           io.Writer
}

// ConsoleLoggerProvider 控制台日志提供者
// 同步写入，输出顺序与调用顺序一致
type ConsoleLoggerProvider struct {
	levelHolder
	formatter *TextFormatter
	output    io.Writer
	mu        sync.Mutex
}

func NewConsoleLoggerProvider(options ConsoleLoggerOptions) *ConsoleLoggerProvider {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	if options.TimestampFormat == "" {
		options.TimestampFormat = "2006-01-02 15:04:05"
	}
	p := &ConsoleLoggerProvider{
		formatter: &TextFormatter{
			IncludeTimestamp: options.IncludeTimestamp,
			TimestampFormat:  options.TimestampFormat,
			ColorOutput:      options.ColorOutput,
		},
		output: options.Output,
	}
	p.set(LogLevelInfo)
	return p
}

func (p *ConsoleLoggerProvider) CreateLogger(category string) Logger {
	return &entryLogger{sink: p, category: category}
}

func (p *ConsoleLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.set(level)
}

func (p *ConsoleLoggerProvider) write(entry *LogEntry) {
	data, err := p.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "console logger format error: %v\n", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.output.Write(data)
}
