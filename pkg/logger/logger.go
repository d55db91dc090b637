// Package logger wraps zerolog with typed fields. Warnings and errors can
// additionally be aggregated and shipped through a Publisher.
package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl        zerolog.Logger
	collector *LogCollector
}

type Config struct {
	Level      string // debug, info, warn or error
	Format     string // json or console
	Output     string // stdout, stderr or a file path
	TimeFormat string
}

func New(cfg *Config) (*Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	tf := cfg.TimeFormat
	if tf == "" {
		tf = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = tf
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: tf}
	}

	// zerolog's own frames plus Logger.log and the level method
	zl := zerolog.New(out).Level(level).With().
		Timestamp().
		CallerWithSkipFrameCount(4).
		Logger()
	return &Logger{zl: zl}, nil
}

func openOutput(target string) (io.Writer, error) {
	switch target {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger that always carries fields. The child shares
// the parent's collector.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.plain())
	}
	return &Logger{zl: ctx.Logger(), collector: l.collector}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(zerolog.DebugLevel, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(zerolog.InfoLevel, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(zerolog.WarnLevel, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(zerolog.ErrorLevel, msg, fields) }

func (l *Logger) log(level zerolog.Level, msg string, fields []Field) {
	if ev := l.zl.WithLevel(level); ev != nil {
		for _, f := range fields {
			f.addTo(ev)
		}
		ev.Msg(msg)
	}

	c := l.collector
	if c == nil || level < c.minLevel {
		return
	}
	caller := "unknown"
	// 0 log, 1 level method, 2 call site
	if _, file, line, ok := runtime.Caller(2); ok {
		caller = fmt.Sprintf("%s:%d", trimCaller(file), line)
	}
	values := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		values[f.Key] = f.plain()
	}
	c.AddLog(level.String(), msg, values, caller)
}

func trimCaller(file string) string {
	for _, root := range []string{"/internal/", "/pkg/", "/cmd/"} {
		if i := strings.LastIndex(file, root); i >= 0 {
			return file[i+1:]
		}
	}
	return file
}

// AddCollector starts aggregating warnings and errors, replacing any
// running collector.
func (l *Logger) AddCollector(config *CollectionConfig) {
	l.RemoveCollector()
	l.collector = NewLogCollector(config)
}

// RemoveCollector flushes and stops the collector.
func (l *Logger) RemoveCollector() {
	if l.collector != nil {
		l.collector.Close()
		l.collector = nil
	}
}

// Field is one structured key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

func (f Field) addTo(ev *zerolog.Event) {
	switch v := f.Value.(type) {
	case string:
		ev.Str(f.Key, v)
	case int:
		ev.Int(f.Key, v)
	case int64:
		ev.Int64(f.Key, v)
	case float64:
		ev.Float64(f.Key, v)
	case bool:
		ev.Bool(f.Key, v)
	case time.Time:
		ev.Time(f.Key, v)
	case []string:
		ev.Strs(f.Key, v)
	case error:
		ev.AnErr(f.Key, v)
	default:
		ev.Interface(f.Key, v)
	}
}

// plain returns a JSON friendly value; errors become their message.
func (f Field) plain() interface{} {
	if err, ok := f.Value.(error); ok {
		return err.Error()
	}
	return f.Value
}

func String(key, value string) Field           { return Field{key, value} }
func Int(key string, value int) Field          { return Field{key, value} }
func Int64(key string, value int64) Field      { return Field{key, value} }
func Float64(key string, value float64) Field  { return Field{key, value} }
func Bool(key string, value bool) Field        { return Field{key, value} }
func Time(key string, value time.Time) Field   { return Field{key, value} }
func Strings(key string, value []string) Field { return Field{key, value} }
func Any(key string, value interface{}) Field  { return Field{key, value} }

// Error keys err under "error". A nil error is logged as null.
func Error(err error) Field {
	if err == nil {
		return Field{"error", nil}
	}
	return Field{"error", err}
}

// Duration logs whole milliseconds.
func Duration(key string, value time.Duration) Field {
	return Field{key, value.Milliseconds()}
}
