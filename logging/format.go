package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// LogEntry 一条待格式化的日志
type LogEntry struct {
	Time     time.Time
	Level    LogLevel
	Category string
	Message  string
	Fields   []Field
}

// Formatter 把日志条目编码为一行输出（含换行符）
type Formatter interface {
	Format(entry *LogEntry) ([]byte, error)
}

var bufferPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// render 使用池化 buffer 编码，返回独立的字节切片
func render(encode func(*bytes.Buffer) error) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		bufferPool.Put(buf)
	}()

	if err := encode(buf); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// TextFormatter 文本格式：
//
//	2025-01-02 15:04:05 INFO [Category] message {key=value, k2=v2}
type TextFormatter struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
}

// NewTextFormatter 创建带时间戳、无颜色的文本格式化器
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		IncludeTimestamp: true,
		TimestampFormat:  time.DateTime,
	}
}

func (f *TextFormatter) Format(entry *LogEntry) ([]byte, error) {
	return render(func(buf *bytes.Buffer) error {
		if f.IncludeTimestamp {
			buf.WriteString(entry.Time.Format(f.TimestampFormat))
			buf.WriteByte(' ')
		}

		level := entry.Level.String()
		if f.ColorOutput {
			level = levelColors[entry.Level] + level + colorReset
		}
		buf.WriteString(level)

		if entry.Category != "" {
			fmt.Fprintf(buf, " [%s]", entry.Category)
		}
		buf.WriteByte(' ')
		buf.WriteString(entry.Message)

		for i, field := range entry.Fields {
			if i == 0 {
				buf.WriteString(" {")
			} else {
				buf.WriteString(", ")
			}
			fmt.Fprintf(buf, "%s=%v", field.Key, field.Value)
		}
		if len(entry.Fields) > 0 {
			buf.WriteByte('}')
		}
		buf.WriteByte('\n')
		return nil
	})
}

const colorReset = "\033[0m"

var levelColors = map[LogLevel]string{
	LogLevelTrace: "\033[90m",
	LogLevelDebug: "\033[36m",
	LogLevelInfo:  "\033[32m",
	LogLevelWarn:  "\033[33m",
	LogLevelError: "\033[31m",
	LogLevelFatal: "\033[35m",
}

// JsonFormatter 每行一个 JSON 对象，字段与 time、level、category、msg 平级并保持写入顺序
type JsonFormatter struct {
	TimestampFormat string
}

// NewJsonFormatter 创建 RFC3339 毫秒精度的 JSON 格式化器
func NewJsonFormatter() *JsonFormatter {
	return &JsonFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
}

func (f *JsonFormatter) Format(entry *LogEntry) ([]byte, error) {
	return render(func(buf *bytes.Buffer) error {
		buf.WriteString(`{"time":`)
		buf.WriteString(strconv.Quote(entry.Time.Format(f.TimestampFormat)))
		buf.WriteString(`,"level":`)
		buf.WriteString(strconv.Quote(entry.Level.String()))
		if entry.Category != "" {
			buf.WriteString(`,"category":`)
			if err := writeJSON(buf, entry.Category); err != nil {
				return err
			}
		}
		buf.WriteString(`,"msg":`)
		if err := writeJSON(buf, entry.Message); err != nil {
			return err
		}
		for _, field := range entry.Fields {
			buf.WriteByte(',')
			if err := writeJSON(buf, field.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			value := field.Value
			if err, ok := value.(error); ok {
				value = err.Error()
			}
			if err := writeJSON(buf, value); err != nil {
				return fmt.Errorf("logging: encode field %s: %w", field.Key, err)
			}
		}
		buf.WriteString("}\n")
		return nil
	})
}

func writeJSON(buf *bytes.Buffer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(raw)
	return nil
}
