package dbmo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel defines the severity of the log
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger receives the engine diagnostics. fields may be nil.
type Logger interface {
	Log(level LogLevel, msg string, fields map[string]any)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(level LogLevel, msg string, fields map[string]any)

func (f LoggerFunc) Log(level LogLevel, msg string, fields map[string]any) { f(level, msg, fields) }

// slogLogger is an adapter for log/slog
type slogLogger struct {
	logger *slog.Logger
}

// 优先输出的字段，其余按字母序
var priorityKeys = []string{"provider", "order", "duration", "sql", "params", "error"}

func (s *slogLogger) Log(level LogLevel, msg string, fields map[string]any) {
	l := s.logger
	if l == nil {
		l = slog.Default()
	}
	args := orderedFields(fields)
	switch level {
	case LevelDebug:
		l.Debug(msg, args...)
	case LevelInfo:
		l.Info(msg, args...)
	case LevelWarn:
		l.Warn(msg, args...)
	default:
		l.Error(msg, args...)
	}
}

// orderedFields flattens fields into key/value pairs with a stable order.
func orderedFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	done := make(map[string]bool, len(priorityKeys))
	for _, k := range priorityKeys {
		if v, ok := fields[k]; ok {
			args = append(args, k, v)
			done[k] = true
		}
	}
	rest := make([]string, 0, len(fields))
	for k := range fields {
		if !done[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		args = append(args, k, fields[k])
	}
	return args
}

// NewSlogLogger creates a Logger that uses log/slog
func NewSlogLogger(logger *slog.Logger) Logger {
	return &slogLogger{logger: logger}
}

// formatValue renders a parameter value for the diagnostic dump.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + val + "'"
	case []byte:
		if len(val) > 32 {
			return fmt.Sprintf("[%d bytes]", len(val))
		}
		return fmt.Sprintf("0x%x", val)
	case time.Time:
		return "'" + val.Format("2006-01-02 15:04:05.999999999") + "'"
	default:
		return fmt.Sprintf("%v", val)
	}
}

var (
	currentLogger Logger = &slogLogger{}
	debug         bool
	spaceRe       = regexp.MustCompile(`\s+`)
)

// SetLogger sets the global logger. Engines without their own logger use it.
func SetLogger(l Logger) {
	if l == nil {
		l = &slogLogger{}
	}
	currentLogger = l
}

// SetDebugMode enables or disables debug mode
func SetDebugMode(enabled bool) {
	debug = enabled
	if enabled && !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
}

// IsDebugEnabled returns true if debug mode is enabled
func IsDebugEnabled() bool {
	return debug
}

// ParseLevel maps "debug", "info", "warn" and "error" to a LogLevel; anything else is info.
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger initializes the global slog logger with a specific level to console
func InitLogger(level string) {
	initSlog(level, os.Stdout)
}

// InitLoggerWithFile logs to both console and a rotating file.
func InitLoggerWithFile(level string, filePath string) {
	rotator := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    LogFileMaxSizeMB,
		MaxBackups: LogFileMaxBackups,
		LocalTime:  true,
	}
	initSlog(level, io.MultiWriter(os.Stdout, rotator))
}

func initSlog(level string, w io.Writer) {
	lv := ParseLevel(level)
	if lv == LevelDebug {
		debug = true
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv.slogLevel()})))
	SetLogger(&slogLogger{})
}

// LogInfo logs info message
func LogInfo(msg string, fields ...map[string]any) { logTo(nil, LevelInfo, msg, firstFields(fields)) }

// LogWarn logs warning message
func LogWarn(msg string, fields ...map[string]any) { logTo(nil, LevelWarn, msg, firstFields(fields)) }

// LogError logs error message
func LogError(msg string, fields ...map[string]any) { logTo(nil, LevelError, msg, firstFields(fields)) }

// LogDebug logs debug message
func LogDebug(msg string, fields ...map[string]any) {
	if debug {
		logTo(nil, LevelDebug, msg, firstFields(fields))
	}
}

func firstFields(fields []map[string]any) map[string]any {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// Sync flushes any buffered log entries
func Sync() {
	if s, ok := currentLogger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}

// logTo hands one entry to l (or the global logger). A panicking logger is swallowed so
// diagnostics never abort the operation that produced them.
func logTo(l Logger, level LogLevel, msg string, fields map[string]any) {
	defer func() { _ = recover() }()
	if l == nil {
		l = currentLogger
	}
	l.Log(level, msg, fields)
}

// NewLogOrder returns a fresh correlation id for grouping the diagnostics of one connection.
func NewLogOrder() string {
	return uuid.NewString()
}

// diagnostic is what the engine reports when a connection is closed.
type diagnostic struct {
	provider string
	order    string
	sql      string
	params   string
	duration time.Duration
	err      error
}

func (d diagnostic) fields() map[string]any {
	f := map[string]any{
		"provider": d.provider,
		"order":    d.order,
		"sql":      cleanSQL(d.sql),
		"duration": d.duration.String(),
	}
	if d.params != "" {
		f["params"] = d.params
	}
	if d.err != nil {
		f["error"] = fixStringEncoding(d.err.Error())
		f["caller"] = callerOutside()
	}
	return f
}

// cleanSQL removes newlines, tabs and multiple spaces from SQL string
func cleanSQL(sql string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(sql, " "))
}

// callerOutside returns the first stack frame outside this package, formatted func(file:line).
func callerOutside() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		fn := frame.Function
		if !strings.Contains(fn, "/dbmo.") || strings.HasSuffix(frame.File, "_test.go") {
			name := fn
			if i := strings.LastIndex(name, "/"); i >= 0 {
				name = name[i+1:]
			}
			file := frame.File
			if i := strings.LastIndexAny(file, `/\`); i >= 0 {
				file = file[i+1:]
			}
			return fmt.Sprintf("%s(%s:%d)", name, file, frame.Line)
		}
		if !more {
			return ""
		}
	}
}

// 驱动返回的错误信息可能是本地编码（如 SQL Server 中文环境下的 GBK），按顺序尝试解码
var legacyEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"GBK", simplifiedchinese.GBK},
	{"Big5", traditionalchinese.Big5},
	{"GB18030", simplifiedchinese.GB18030},
	{"Shift_JIS", japanese.ShiftJIS},
	{"EUC-JP", japanese.EUCJP},
	{"EUC-KR", korean.EUCKR},
}

// fixStringEncoding returns text unchanged when it is valid UTF-8, otherwise the first legacy
// decoding that yields clean text.
func fixStringEncoding(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	for _, le := range legacyEncodings {
		decoded, err := le.enc.NewDecoder().String(text)
		if err != nil || !utf8.ValidString(decoded) || strings.ContainsRune(decoded, utf8.RuneError) {
			continue
		}
		return decoded
	}
	return text
}
