// Package logger provides structured JSON logging with level filtering
// and redaction of contact email addresses. Segment refreshes walk whole
// tenant contact populations, so log lines routinely carry contact data;
// redaction is on by default.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel maps a config string to a Level. Unknown strings map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Logger emits one JSON object per line with time, level, msg, and any
// key/value fields passed to the log call.
type Logger struct {
	mu        sync.Mutex
	out       io.Writer
	level     Level
	redactPII bool
}

// New creates a logger writing to out at the given minimum level.
func New(out io.Writer, level Level) *Logger {
	return &Logger{out: out, level: level, redactPII: true}
}

var std = New(os.Stderr, INFO)

// SetLevel sets the minimum level for the package-level logger.
func SetLevel(l Level) { std.level = l }

// SetRedactPII toggles email redaction on the package-level logger.
func SetRedactPII(on bool) { std.redactPII = on }

// Debug emits a DEBUG entry on the package-level logger.
func Debug(msg string, fields ...any) { std.Log(DEBUG, msg, fields...) }

// Info emits an INFO entry on the package-level logger.
func Info(msg string, fields ...any) { std.Log(INFO, msg, fields...) }

// Warn emits a WARN entry on the package-level logger.
func Warn(msg string, fields ...any) { std.Log(WARN, msg, fields...) }

// Error emits an ERROR entry on the package-level logger.
func Error(msg string, fields ...any) { std.Log(ERROR, msg, fields...) }

// Log emits an entry if level clears the logger's threshold. Fields are
// alternating key/value pairs; a trailing key without a value is dropped.
func (l *Logger) Log(level Level, msg string, fields ...any) {
	if level < l.level {
		return
	}

	entry := map[string]any{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": level.String(),
		"msg":   msg,
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		switch v := fields[i+1].(type) {
		case int, int64, float64, bool:
			entry[key] = v
		default:
			s := fmt.Sprintf("%v", v)
			if l.redactPII {
				s = redact(key, s)
			}
			entry[key] = s
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	l.mu.Lock()
	fmt.Fprintln(l.out, string(line))
	l.mu.Unlock()
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redact(key, val string) string {
	k := strings.ToLower(key)
	if strings.Contains(k, "email") || strings.Contains(k, "contact") {
		return MaskEmail(val)
	}
	return emailPattern.ReplaceAllStringFunc(val, MaskEmail)
}

// MaskEmail masks the local part of an email address, keeping the domain
// so deliverability issues stay diagnosable from logs.
// "jane.roe@example.com" becomes "ja***@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***@***"
	}
	local, dom := email[:at], email[at+1:]
	if len(local) <= 2 {
		return "***@" + dom
	}
	return local[:2] + "***@" + dom
}
