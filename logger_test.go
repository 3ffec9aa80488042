package dbmo

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

type entry struct {
	level  LogLevel
	msg    string
	fields map[string]any
}

type captureLogger struct{ entries []entry }

func (c *captureLogger) Log(level LogLevel, msg string, fields map[string]any) {
	c.entries = append(c.entries, entry{level, msg, fields})
}

func TestLogToSwallowsPanics(t *testing.T) {
	panicky := LoggerFunc(func(LogLevel, string, map[string]any) { panic("sink down") })
	assert.NotPanics(t, func() { logTo(panicky, LevelError, "x", nil) })
}

func TestGlobalLogger(t *testing.T) {
	c := &captureLogger{}
	SetLogger(c)
	defer SetLogger(nil)

	LogInfo("info", map[string]any{"k": 1})
	LogWarn("warn")
	LogError("error")
	SetDebugMode(false)
	LogDebug("hidden")

	require.Len(t, c.entries, 3)
	assert.Equal(t, LevelInfo, c.entries[0].level)
	assert.Equal(t, 1, c.entries[0].fields["k"])
	assert.Equal(t, LevelWarn, c.entries[1].level)
	assert.False(t, IsDebugEnabled())
}

func TestSlogLoggerFieldOrder(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	l.Log(LevelWarn, "SQL failed log", map[string]any{"zeta": 1, "sql": "SELECT 1", "provider": "sqlite", "alpha": 2})

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	iProvider := bytes.Index([]byte(out), []byte("provider="))
	iSQL := bytes.Index([]byte(out), []byte("sql="))
	iAlpha := bytes.Index([]byte(out), []byte("alpha="))
	iZeta := bytes.Index([]byte(out), []byte("zeta="))
	assert.True(t, iProvider < iSQL && iSQL < iAlpha && iAlpha < iZeta, out)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "UNKNOWN", LogLevel(9).String())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NULL", formatValue(nil))
	assert.Equal(t, "'a'", formatValue("a"))
	assert.Equal(t, "0x0102", formatValue([]byte{1, 2}))
	assert.Equal(t, "[40 bytes]", formatValue(make([]byte, 40)))
	assert.Equal(t, "'2024-01-02 03:04:05'", formatValue(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Equal(t, "12", formatValue(12))
}

func TestDiagnosticFields(t *testing.T) {
	d := diagnostic{provider: "sqlite", order: "o1", sql: "SELECT *\n\t FROM t", params: "@a=1", duration: time.Millisecond}
	f := d.fields()
	assert.Equal(t, "SELECT * FROM t", f["sql"])
	assert.Equal(t, "@a=1", f["params"])
	assert.NotContains(t, f, "error")

	d.err = errors.New("boom")
	f = d.fields()
	assert.Equal(t, "boom", f["error"])
	assert.Contains(t, f["caller"], "logger_test.go")
}

func TestFixStringEncoding(t *testing.T) {
	assert.Equal(t, "plain ascii", fixStringEncoding("plain ascii"))
	assert.Equal(t, "已是 UTF-8", fixStringEncoding("已是 UTF-8"))

	gbk, err := simplifiedchinese.GBK.NewEncoder().String("对象名无效")
	require.NoError(t, err)
	assert.Equal(t, "对象名无效", fixStringEncoding(gbk))
}

func TestNewLogOrder(t *testing.T) {
	a, b := NewLogOrder(), NewLogOrder()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
