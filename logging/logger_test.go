package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTextFormatter(t *testing.T) {
	f := NewTextFormatter()
	entry := &LogEntry{
		Time:     time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC),
		Level:    LogLevelInfo,
		Category: "Test",
		Message:  "Hello",
		Fields:   []Field{{Key: "key", Value: "val"}, {Key: "n", Value: 3}},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02 15:04:05 INFO [Test] Hello {key=val, n=3}\n", string(out))

	f.ColorOutput = true
	f.IncludeTimestamp = false
	out, err = f.Format(&LogEntry{Level: LogLevelError, Message: "boom"})
	require.NoError(t, err)
	assert.Equal(t, "\033[31mERROR\033[0m boom\n", string(out))
}

func TestJsonFormatter(t *testing.T) {
	f := NewJsonFormatter()
	entry := &LogEntry{
		Time:     time.Now(),
		Level:    LogLevelInfo,
		Category: "Test",
		Message:  "Hello \"quoted\"",
		Fields:   []Field{{Key: "key", Value: "val"}, Err(errors.New("bad"))},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(out), "}\n"))

	var data map[string]any
	require.NoError(t, json.Unmarshal(out, &data))
	assert.Equal(t, "INFO", data["level"])
	assert.Equal(t, "Test", data["category"])
	assert.Equal(t, `Hello "quoted"`, data["msg"])
	assert.Equal(t, "val", data["key"])
	assert.Equal(t, "bad", data["error"])

	_, err = f.Format(&LogEntry{Message: "x", Fields: []Field{{Key: "ch", Value: make(chan int)}}})
	assert.Error(t, err)
}

func TestAsyncWriter(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	writer := &syncWriter{buf: &buf, mu: &mu}

	asyncWriter := NewAsyncWriter(writer, NewTextFormatter(), 2)
	entry := &LogEntry{Time: time.Now(), Level: LogLevelInfo, Message: "Async"}
	for i := 0; i < 5; i++ {
		asyncWriter.WriteLog(entry)
	}
	require.NoError(t, asyncWriter.Close())
	require.NoError(t, asyncWriter.Close())

	lines := strings.Split(strings.TrimSpace(writer.String()), "\n")
	assert.Len(t, lines, 5)
	assert.Equal(t, uint64(5), asyncWriter.Written())

	// 关闭后写入被丢弃
	asyncWriter.WriteLog(entry)
	assert.Equal(t, uint64(5), asyncWriter.Written())
}

func TestAsyncWriter_ErrorHandler(t *testing.T) {
	var errs []error
	asyncWriter := NewAsyncWriter(failingWriter{}, NewTextFormatter(), 1,
		WithErrorHandler(func(err error) { errs = append(errs, err) }))
	asyncWriter.WriteLog(&LogEntry{Message: "lost"})
	require.NoError(t, asyncWriter.Close())

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "write: disk full")
	assert.Zero(t, asyncWriter.Written())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

type syncWriter struct {
	buf *bytes.Buffer
	mu  *sync.Mutex
}

func (w *syncWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace":       LogLevelTrace,
		"Debug":       LogLevelDebug,
		"Information": LogLevelInfo,
		" warn ":      LogLevelWarn,
		"Warning":     LogLevelWarn,
		"ERROR":       LogLevelError,
		"critical":    LogLevelFatal,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestFactory_MinimumLevelAndFields(t *testing.T) {
	var buf syncWriter
	buf.buf, buf.mu = &bytes.Buffer{}, &sync.Mutex{}

	factory := NewLoggingBuilder().
		SetMinimumLevel(LogLevelWarn).
		AddConsole(ConsoleLoggerOptions{Output: &buf}).
		Build()

	logger := factory.CreateLogger("Orders")
	logger.Info("dropped")
	logger.Warn("kept", F("id", 7))

	base := logger.WithFields(F("a", 1))
	base.WithFields(F("b", 2)).Error("first")
	base.WithFields(F("c", 3)).Error("second")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "WARN [Orders] kept {id=7}")
	assert.Contains(t, out, "first {a=1, b=2}")
	assert.Contains(t, out, "second {a=1, c=3}")

	factory.SetMinimumLevel(LogLevelDebug)
	factory.CreateLogger("Orders").Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestWithCategory(t *testing.T) {
	var buf syncWriter
	buf.buf, buf.mu = &bytes.Buffer{}, &sync.Mutex{}

	factory := NewLoggingBuilder().AddConsole(ConsoleLoggerOptions{Output: &buf}).Build()
	factory.CreateLogger("A").WithCategory("B").Info("hello")

	assert.Contains(t, buf.String(), "[B] hello")
	assert.NotContains(t, buf.String(), "[A]")
}

func TestFileLoggerProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	factory := NewLoggingBuilder().AddFile(path, FileLoggerOptions{Json: true}).Build()
	logger := factory.CreateLogger("File")
	for i := 0; i < 3; i++ {
		logger.Info("line", F("n", i))
	}
	require.NoError(t, factory.Close())

	// 关闭后写入被丢弃
	logger.Info("after close")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "line", first["msg"])
	assert.Equal(t, "File", first["category"])
	assert.EqualValues(t, 0, first["n"])
}

func TestZapLoggerProvider(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	provider := WrapZap(zap.New(core))

	factory := NewLoggingBuilder().AddProvider(provider).Build()
	logger := factory.CreateLogger("Billing")

	logger.Debug("hidden")
	logger.Info("charged", F("amount", 42), Err(errors.New("late")))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Billing", entries[0].LoggerName)
	assert.Equal(t, "charged", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.EqualValues(t, 42, ctx["amount"])
	assert.Equal(t, "late", ctx["error"])

	factory.SetMinimumLevel(LogLevelTrace)
	factory.CreateLogger("Billing").Trace("trace as debug")
	assert.Equal(t, 1, logs.FilterMessage("trace as debug").Len())

	assert.NoError(t, factory.Close())
}

func BenchmarkAsyncLogging(b *testing.B) {
	formatter := NewTextFormatter()
	// 使用 io.Discard 避免 I/O 瓶颈，测试 AsyncWriter 自身的开销
	asyncWriter := NewAsyncWriter(io.Discard, formatter, 10000)
	defer asyncWriter.Close()

	entry := &LogEntry{
		Time:    time.Now(),
		Level:   LogLevelInfo,
		Message: "Benchmark",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		asyncWriter.WriteLog(entry)
	}
}
