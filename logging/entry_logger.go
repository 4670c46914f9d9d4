package logging

import (
	"os"
	"sync/atomic"
	"time"
)

// entrySink 接收已过滤的日志条目
type entrySink interface {
	write(entry *LogEntry)
	level() LogLevel
}

// entryLogger 把调用转换成 LogEntry 交给 sink，控制台和文件提供者共用
type entryLogger struct {
	sink     entrySink
	category string
	fields   []Field
}

func (l *entryLogger) Trace(msg string, fields ...Field) {
	l.Log(LogLevelTrace, msg, fields...)
}

func (l *entryLogger) Debug(msg string, fields ...Field) {
	l.Log(LogLevelDebug, msg, fields...)
}

func (l *entryLogger) Info(msg string, fields ...Field) {
	l.Log(LogLevelInfo, msg, fields...)
}

func (l *entryLogger) Warn(msg string, fields ...Field) {
	l.Log(LogLevelWarn, msg, fields...)
}

func (l *entryLogger) Error(msg string, fields ...Field) {
	l.Log(LogLevelError, msg, fields...)
}

func (l *entryLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	os.Exit(1)
}

func (l *entryLogger) Log(level LogLevel, msg string, fields ...Field) {
	if level < l.sink.level() {
		return
	}
	l.sink.write(&LogEntry{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Message:  msg,
		Fields:   joinFields(l.fields, fields),
	})
}

func (l *entryLogger) WithFields(fields ...Field) Logger {
	return &entryLogger{sink: l.sink, category: l.category, fields: joinFields(l.fields, fields)}
}

func (l *entryLogger) WithCategory(category string) Logger {
	return &entryLogger{sink: l.sink, category: category, fields: l.fields}
}

// levelHolder 可并发修改的最小级别
type levelHolder struct {
	v atomic.Int32
}

func (h *levelHolder) level() LogLevel {
	return LogLevel(h.v.Load())
}

func (h *levelHolder) set(level LogLevel) {
	h.v.Store(int32(level))
}
