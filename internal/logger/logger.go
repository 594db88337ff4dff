package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Service   string `json:"service,omitempty"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

type Logger struct {
	mu       sync.Mutex
	service  string
	terminal io.Writer
	logFile  io.WriteCloser
	minLevel LogLevel
}

// NewLogger writes colored lines to stdout and JSON lines to a daily file
// under dir.
func NewLogger(dir, service string) *Logger {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatal("Failed to create logs directory:", err)
	}

	timestamp := time.Now().Format("2006-01-02")
	logFileName := filepath.Join(dir, fmt.Sprintf("%s-%s.log", service, timestamp))

	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatal("Failed to create log file:", err)
	}

	l := &Logger{
		service:  service,
		terminal: os.Stdout,
		logFile:  logFile,
		minLevel: DEBUG,
	}

	l.Info("LOGGER", "Logging system initialized")
	l.Info("LOGGER", fmt.Sprintf("Log file: %s", logFileName))

	return l
}

// New returns a logger that only writes terminal lines to w. Used by tests
// and the CLI.
func New(w io.Writer) *Logger {
	return &Logger{terminal: w, minLevel: DEBUG}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{terminal: io.Discard, minLevel: FATAL}
}

// SetLevel drops entries below level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

func (l *Logger) log(level LogLevel, category, message string) {
	if level < l.minLevel {
		return
	}

	file, line := callerOutsideLogger()

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Service:   l.service,
		Level:     levelToString(level),
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprint(l.terminal, formatTerminalOutput(entry))

	if l.logFile != nil {
		if raw, err := json.Marshal(entry); err == nil {
			l.logFile.Write(append(raw, '\n'))
		}
	}
}

var thisFile = func() string {
	_, file, _, _ := runtime.Caller(0)
	return file
}()

// callerOutsideLogger reports the first frame not in this package's
// logger.go or http.go, so helpers like LogScan point at their caller.
func callerOutsideLogger() (string, int) {
	dir := filepath.Dir(thisFile)
	for skip := 2; skip < 10; skip++ {
		_, file, line, ok := runtime.Caller(skip)
		if !ok {
			break
		}
		if filepath.Dir(file) == dir && (filepath.Base(file) == "logger.go" || filepath.Base(file) == "http.go") {
			continue
		}
		return filepath.Base(file), line
	}
	return "", 0
}

type palette struct {
	level, category *color.Color
}

var (
	levelNames = [...]string{DEBUG: "DEBUG", INFO: "INFO", WARN: "WARN", ERROR: "ERROR", FATAL: "FATAL"}

	palettes = map[string]palette{
		"DEBUG": {color.New(color.FgCyan), color.New(color.FgCyan, color.Bold)},
		"INFO":  {color.New(color.FgGreen), color.New(color.FgGreen, color.Bold)},
		"WARN":  {color.New(color.FgYellow), color.New(color.FgYellow, color.Bold)},
		"ERROR": {color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
		"FATAL": {color.New(color.FgRed, color.Bold, color.BlinkSlow), color.New(color.FgRed, color.Bold)},
	}

	timeColor = color.New(color.FgBlue)
	fileColor = color.New(color.FgMagenta)
)

func formatTerminalOutput(entry LogEntry) string {
	p, ok := palettes[entry.Level]
	if !ok {
		p = palettes["INFO"]
	}

	var b strings.Builder
	b.WriteString(timeColor.Sprint(entry.Timestamp[11:19]))
	b.WriteByte(' ')
	b.WriteString(p.level.Sprintf("%-5s", entry.Level))
	b.WriteByte(' ')
	b.WriteString(p.category.Sprintf("[%-10s]", entry.Category))
	b.WriteByte(' ')
	b.WriteString(entry.Message)
	if entry.File != "" && entry.Line > 0 {
		b.WriteString(fileColor.Sprintf(" (%s:%d)", entry.File, entry.Line))
	}
	b.WriteByte('\n')
	return b.String()
}

func levelToString(level LogLevel) string {
	if level < DEBUG || level > FATAL {
		return "INFO"
	}
	return levelNames[level]
}

func (l *Logger) Debug(category, message string) {
	l.log(DEBUG, category, message)
}

func (l *Logger) Info(category, message string) {
	l.log(INFO, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.log(WARN, category, message)
}

func (l *Logger) Error(category, message string) {
	l.log(ERROR, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	os.Exit(1)
}

// Specialized logging methods for different components

func (l *Logger) LogScan(deviceID, code, message string) {
	l.Info("SCAN", fmt.Sprintf("[%s] %s - %s", deviceID, code, message))
}

func (l *Logger) LogRedemption(action, bookingID, message string) {
	l.Info("REDEEM", fmt.Sprintf("[%s] %s - %s", action, bookingID, message))
}

func (l *Logger) LogAPI(method, path string, status int, duration time.Duration) {
	msg := fmt.Sprintf("%s %s - %d (%s)", method, path, status, duration.Round(time.Microsecond))
	switch {
	case status >= 500:
		l.Error("API", msg)
	case status >= 400:
		l.Warn("API", msg)
	default:
		l.Info("API", msg)
	}
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.Info("DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.Warn("SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	if l.logFile != nil {
		l.Info("LOGGER", "Closing log file")
		l.logFile.Close()
	}
}
