package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"futures-risk-go/monitor/logschema"
)

// Logger 封装zap日志器，提供结构化日志功能
type Logger struct {
	*zap.Logger
	config Config
	files  []*os.File
}

// Config 日志配置
type Config struct {
	Level      string   `yaml:"level"`       // debug, info, warn, error
	Outputs    []string `yaml:"outputs"`     // stdout, file
	OutputFile string   `yaml:"output_file"` // 日志文件路径
	ErrorFile  string   `yaml:"error_file"`  // 错误日志单独文件
	Format     string   `yaml:"format"`      // json 或 console
}

func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Outputs: []string{"stdout"},
		Format:  "json",
	}
}

// New 创建新的Logger实例
func New(cfg Config) (*Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l := &Logger{config: cfg}
	var cores []zapcore.Core

	if contains(cfg.Outputs, "stdout") {
		var encoder zapcore.Encoder
		if cfg.Format == "console" {
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		} else {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	// 文件一律使用 JSON
	fileEncoder := zap.NewProductionEncoderConfig()
	fileEncoder.EncodeTime = zapcore.ISO8601TimeEncoder

	if contains(cfg.Outputs, "file") && cfg.OutputFile != "" {
		f, err := l.open(cfg.OutputFile)
		if err != nil {
			return nil, fmt.Errorf("open log file failed: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoder), zapcore.AddSync(f), level))
	}

	if cfg.ErrorFile != "" {
		f, err := l.open(cfg.ErrorFile)
		if err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("open error log file failed: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoder), zapcore.AddSync(f), zapcore.ErrorLevel))
	}

	l.Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return l, nil
}

// Wrap 包装已有的 zap.Logger，测试中配合 observer 使用
func Wrap(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{Logger: z}
}

func (l *Logger) open(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	l.files = append(l.files, f)
	return f, nil
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{
		Logger: l.Logger.With(toFields(fields)...),
		config: l.config,
	}
}

// Event 记录结构化事件，字段缺失时附加 schema_error 而不是丢弃。
func (l *Logger) Event(event string, fields map[string]interface{}) {
	l.emit(zapcore.InfoLevel, event, fields)
}

// Sink 返回事件回调，供 store 等组件注入
func (l *Logger) Sink() func(string, map[string]interface{}) {
	return l.Event
}

// LogOrder 记录订单状态变化
func (l *Logger) LogOrder(orderID, symbol, status string, fields map[string]interface{}) {
	fields = withFields(fields)
	fields["order_id"] = orderID
	fields["symbol"] = symbol
	fields["status"] = status
	l.emit(zapcore.InfoLevel, "order_update", fields)
}

// LogTrade 记录成交
func (l *Logger) LogTrade(fields map[string]interface{}) {
	l.emit(zapcore.InfoLevel, "fill", fields)
}

// LogRisk 记录风控决策，拦截与警告用 Warn 级别
func (l *Logger) LogRisk(category, rule, outcome string, fields map[string]interface{}) {
	fields = withFields(fields)
	fields["category"] = category
	fields["rule"] = rule
	fields["outcome"] = outcome
	lvl := zapcore.InfoLevel
	if outcome != "passed" {
		lvl = zapcore.WarnLevel
	}
	l.emit(lvl, "risk_decision", fields)
}

// LogError 记录错误并附带上下文
func (l *Logger) LogError(err error, context map[string]interface{}) {
	context = withFields(context)
	context["error"] = err.Error()
	l.emit(zapcore.ErrorLevel, "error_event", context)
}

func (l *Logger) emit(lvl zapcore.Level, event string, fields map[string]interface{}) {
	fields = withFields(fields)
	fields["event"] = event
	fields["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	if err := logschema.Validate(event, fields); err != nil {
		fields["schema_error"] = err.Error()
	}
	if ce := l.Check(lvl, event); ce != nil {
		ce.Write(toFields(fields)...)
	}
}

// Close 刷新并关闭日志文件
func (l *Logger) Close() error {
	var err error
	if l.Logger != nil {
		// stdout 上 Sync 可能返回 EINVAL，忽略
		_ = l.Sync()
	}
	for _, f := range l.files {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	l.files = nil
	return err
}

func withFields(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+3)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toFields(m map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(m))
	for k, v := range m {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
