package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapOptions zap 提供者选项
type ZapOptions struct {
	// Development 使用 zap 的开发配置（console 编码，带调用栈）
	Development bool
	// Encoding "json" 或 "console"，为空时使用配置默认值
	Encoding string
	// OutputPaths 为空时输出到 stderr
	OutputPaths []string
}

// ZapLoggerProvider 基于 go.uber.org/zap 的日志提供者
// category 作为 zap 的 logger 名称，字段转换为 zap.Any
type ZapLoggerProvider struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

// NewZapLoggerProvider 按选项构建 zap logger
func NewZapLoggerProvider(opts ZapOptions) (*ZapLoggerProvider, error) {
	cfg := zap.NewProductionConfig()
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	if opts.Encoding != "" {
		cfg.Encoding = opts.Encoding
	}
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg.Level = level

	base, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, err
	}
	return &ZapLoggerProvider{base: base, level: level}, nil
}

// WrapZap 用已有的 zap logger 创建提供者，最小级别由提供者控制
func WrapZap(base *zap.Logger) *ZapLoggerProvider {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	return &ZapLoggerProvider{
		base:  base.WithOptions(zap.IncreaseLevel(level)),
		level: level,
	}
}

func (p *ZapLoggerProvider) CreateLogger(category string) Logger {
	return &zapLogger{provider: p, z: p.named(category), category: category}
}

func (p *ZapLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.level.SetLevel(toZapLevel(level))
}

// Close 刷新缓冲
func (p *ZapLoggerProvider) Close() error {
	// stdout/stderr 上 Sync 常返回 EINVAL，不视为失败
	_ = p.base.Sync()
	return nil
}

func (p *ZapLoggerProvider) named(category string) *zap.Logger {
	if category == "" {
		return p.base
	}
	return p.base.Named(category)
}

func toZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelTrace, LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

type zapLogger struct {
	provider *ZapLoggerProvider
	z        *zap.Logger
	category string
}

func (l *zapLogger) Trace(msg string, fields ...Field) {
	l.Log(LogLevelTrace, msg, fields...)
}

func (l *zapLogger) Debug(msg string, fields ...Field) {
	l.Log(LogLevelDebug, msg, fields...)
}

func (l *zapLogger) Info(msg string, fields ...Field) {
	l.Log(LogLevelInfo, msg, fields...)
}

func (l *zapLogger) Warn(msg string, fields ...Field) {
	l.Log(LogLevelWarn, msg, fields...)
}

func (l *zapLogger) Error(msg string, fields ...Field) {
	l.Log(LogLevelError, msg, fields...)
}

func (l *zapLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
}

func (l *zapLogger) Log(level LogLevel, msg string, fields ...Field) {
	zl := toZapLevel(level)
	if ce := l.z.Check(zl, msg); ce != nil {
		ce.Write(toZapFields(fields)...)
	}
}

func (l *zapLogger) WithFields(fields ...Field) Logger {
	return &zapLogger{provider: l.provider, z: l.z.With(toZapFields(fields)...), category: l.category}
}

func (l *zapLogger) WithCategory(category string) Logger {
	return l.provider.CreateLogger(category)
}

func toZapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		if err, ok := f.Value.(error); ok {
			out[i] = zap.NamedError(f.Key, err)
			continue
		}
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}
