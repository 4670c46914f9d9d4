package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// AsyncWriter 在后台协程中格式化并写入日志
//
// 队列满时 WriteLog 阻塞，不丢日志。Close 之后的写入会被丢弃。
type AsyncWriter struct {
	writer    io.Writer
	formatter Formatter
	onError   func(error)

	mu      sync.RWMutex
	closed  bool
	queue   chan *LogEntry
	done    chan struct{}
	written atomic.Uint64
}

// AsyncWriterOption AsyncWriter 选项
type AsyncWriterOption func(*AsyncWriter)

// WithErrorHandler 设置格式化或写入失败时的回调，默认输出到 stderr
func WithErrorHandler(handler func(error)) AsyncWriterOption {
	return func(w *AsyncWriter) { w.onError = handler }
}

// NewAsyncWriter 创建异步写入器并启动后台协程
func NewAsyncWriter(writer io.Writer, formatter Formatter, queueSize int, opts ...AsyncWriterOption) *AsyncWriter {
	w := &AsyncWriter{
		writer:    writer,
		formatter: formatter,
		onError: func(err error) {
			fmt.Fprintf(os.Stderr, "logging: async writer: %v\n", err)
		},
		queue: make(chan *LogEntry, queueSize),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.drain()
	return w
}

// WriteLog 把日志放入队列
func (w *AsyncWriter) WriteLog(entry *LogEntry) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	w.queue <- entry
}

// Written 返回已成功写出的条数
func (w *AsyncWriter) Written() uint64 {
	return w.written.Load()
}

// Close 写完队列中剩余的日志后返回，可重复调用
func (w *AsyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	<-w.done
	return nil
}

func (w *AsyncWriter) drain() {
	defer close(w.done)

	for entry := range w.queue {
		data, err := w.formatter.Format(entry)
		if err != nil {
			w.onError(fmt.Errorf("format: %w", err))
			continue
		}
		if _, err := w.writer.Write(data); err != nil {
			w.onError(fmt.Errorf("write: %w", err))
			continue
		}
		w.written.Add(1)
	}
}
