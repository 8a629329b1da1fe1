package logger

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

var (
	mu      sync.RWMutex
	logger  Logger
	sLogger *slog.Logger
)

type PrintfLogger interface {
	Printf(string, ...any)
}

type Logger interface {
	PrintfLogger
	Debug(msg string, fields ...interface{})
	Debugf(msg string, args ...interface{})
	Info(msg string, fields ...interface{})
	Infof(msg string, args ...interface{})
	Warn(msg string, fields ...interface{})
	Warnf(msg string, args ...interface{})
	Error(msg string, fields ...interface{})
	Errorf(msg string, args ...interface{})
	Fatal(msg string, fields ...interface{})
	Fatalf(msg string, args ...interface{})
	Zap() *zap.Logger
}

type ZapLogger struct {
	Logger *zap.Logger
	sugar  *zap.SugaredLogger
	config zap.Config
}

type optionFunc func(*ZapLogger)

// InitLogger builds the process-wide logger and its slog bridge. Later calls are no-ops.
func InitLogger(opts ...optionFunc) error {
	mu.Lock()
	defer mu.Unlock()
	if logger != nil {
		return nil
	}
	zl, err := NewZapLogger(opts...)
	if err != nil {
		return err
	}
	logger = zl
	sLogger = NewSLoggerFromZap(zl.Logger, &OptSLogger{ZapLevel: zl.config.Level.Level()})
	return nil
}

// SetLogger replaces the process-wide logger, mostly for tests.
func SetLogger(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
	sLogger = NewSLoggerFromZap(l.Zap(), &OptSLogger{ZapLevel: zapcore.DebugLevel})
}

func NewZapLogger(opts ...optionFunc) (*ZapLogger, error) {
	zl := &ZapLogger{config: zap.NewProductionConfig()}
	for _, opt := range opts {
		opt(zl)
	}
	l, err := zl.config.Build()
	if err != nil {
		return nil, err
	}
	zl.Logger, zl.sugar = l, l.Sugar()
	return zl, nil
}

// WrapZap adapts an already built zap logger.
func WrapZap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{Logger: l, sugar: l.Sugar(), config: zap.NewProductionConfig()}
}

func NewZapLoggerForTest(t *testing.T) Logger {
	l := zaptest.NewLogger(t)
	return &ZapLogger{Logger: l, sugar: l.Sugar(), config: zap.NewDevelopmentConfig()}
}

// LevelAdapter exposes a zap level as a slog.Leveler. Zap levels are one
// step apart where slog levels are four.
type LevelAdapter struct {
	ZapLevel zapcore.Level
}

func (l LevelAdapter) Level() slog.Level {
	return slog.Level(int(l.ZapLevel) * 4)
}

type OptSLogger struct {
	AttrFromCtx []func(ctx context.Context) []slog.Attr
	ZapLevel    zapcore.Level
}

// NewSLoggerFromZap bridges slog onto zapLogger. Attributes stored with
// WithAttrs are always appended to context aware calls.
func NewSLoggerFromZap(zapLogger *zap.Logger, opts *OptSLogger) *slog.Logger {
	fromCtx := append([]func(ctx context.Context) []slog.Attr{AttrsFromContext}, opts.AttrFromCtx...)
	return slog.New(slogzap.Option{
		Logger:          zapLogger,
		Level:           LevelAdapter{ZapLevel: opts.ZapLevel},
		AttrFromContext: fromCtx,
	}.NewZapHandler())
}

type attrsKey struct{}

// WithAttrs returns a context whose *Context log calls carry args, given as
// alternating keys and values like slog.Logger.With.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	record := slog.Record{}
	record.Add(args...)
	attrs := append([]slog.Attr{}, AttrsFromContext(ctx)...)
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	return context.WithValue(ctx, attrsKey{}, attrs)
}

func AttrsFromContext(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	return attrs
}

func WithLevel(level zapcore.Level) optionFunc {
	return func(zl *ZapLogger) {
		zl.config.Level = zap.NewAtomicLevelAt(level)
	}
}

func WithEncodeTime(timeKey string, timeEncoder zapcore.TimeEncoder) optionFunc {
	return func(zl *ZapLogger) {
		zl.config.EncoderConfig.TimeKey = timeKey
		zl.config.EncoderConfig.EncodeTime = timeEncoder
	}
}

// WithConsoleEncoding switches from JSON to the human readable console encoder.
func WithConsoleEncoding() optionFunc {
	return func(zl *ZapLogger) {
		zl.config.Encoding = "console"
		zl.config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
}

func current() Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l == nil {
		_ = InitLogger()
		mu.RLock()
		l = logger
		mu.RUnlock()
	}
	return l
}

func GetLogger() Logger {
	return current()
}

func GetSLogger() *slog.Logger {
	current()
	mu.RLock()
	defer mu.RUnlock()
	return sLogger
}

func DebugContext(ctx context.Context, msg string, fields ...interface{}) {
	GetSLogger().DebugContext(ctx, msg, fields...)
}

func InfoContext(ctx context.Context, msg string, fields ...interface{}) {
	GetSLogger().InfoContext(ctx, msg, fields...)
}

func WarnContext(ctx context.Context, msg string, fields ...interface{}) {
	GetSLogger().WarnContext(ctx, msg, fields...)
}

func ErrorContext(ctx context.Context, msg string, fields ...interface{}) {
	GetSLogger().ErrorContext(ctx, msg, fields...)
}

func Debug(msg string, fields ...interface{}) { current().Debug(msg, fields...) }
func Debugf(msg string, args ...interface{})  { current().Debugf(msg, args...) }
func Info(msg string, fields ...interface{})  { current().Info(msg, fields...) }
func Infof(msg string, args ...interface{})   { current().Infof(msg, args...) }
func Warn(msg string, fields ...interface{})  { current().Warn(msg, fields...) }
func Warnf(msg string, args ...interface{})   { current().Warnf(msg, args...) }
func Error(msg string, fields ...interface{}) { current().Error(msg, fields...) }
func Errorf(msg string, args ...interface{})  { current().Errorf(msg, args...) }
func Fatal(msg string, fields ...interface{}) { current().Fatal(msg, fields...) }
func Fatalf(msg string, args ...interface{})  { current().Fatalf(msg, args...) }

func (l *ZapLogger) Debug(msg string, fields ...interface{}) { l.sugar.Debugw(msg, fields...) }
func (l *ZapLogger) Debugf(msg string, args ...interface{})  { l.sugar.Debugf(msg, args...) }
func (l *ZapLogger) Info(msg string, fields ...interface{})  { l.sugar.Infow(msg, fields...) }
func (l *ZapLogger) Infof(msg string, args ...interface{})   { l.sugar.Infof(msg, args...) }
func (l *ZapLogger) Warn(msg string, fields ...interface{})  { l.sugar.Warnw(msg, fields...) }
func (l *ZapLogger) Warnf(msg string, args ...interface{})   { l.sugar.Warnf(msg, args...) }
func (l *ZapLogger) Error(msg string, fields ...interface{}) { l.sugar.Errorw(msg, fields...) }
func (l *ZapLogger) Errorf(msg string, args ...interface{})  { l.sugar.Errorf(msg, args...) }
func (l *ZapLogger) Fatal(msg string, fields ...interface{}) { l.sugar.Fatalw(msg, fields...) }
func (l *ZapLogger) Fatalf(msg string, args ...interface{})  { l.sugar.Fatalf(msg, args...) }

// Printf lets the logger serve as a cron.Logger sink.
func (l *ZapLogger) Printf(msg string, args ...interface{}) { l.sugar.Infof(msg, args...) }

func (l *ZapLogger) Zap() *zap.Logger {
	return l.Logger
}
