package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"tg-broadcast/internal/config"
)

// Level is the severity of a log line
type Level int

const (
	DEBUG Level = iota
	INFO
	WARNING
	ERROR
	FATAL
)

var levelNames = map[Level]string{
	DEBUG:   "DEBUG",
	INFO:    "INFO",
	WARNING: "WARNING",
	ERROR:   "ERROR",
	FATAL:   "FATAL",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "LEVEL(" + strconv.Itoa(int(l)) + ")"
}

// ParseLevel maps a configured level name, unknown names fall back to INFO
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARNING", "WARN":
		return WARNING
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

const (
	defaultFormat     = "[%{level}] %{time} %{file}:%{line}: %{message}"
	defaultTimeFormat = "2006/01/02 15:04:05"
)

type state struct {
	mu         sync.Mutex
	out        io.Writer
	level      Level
	format     string
	timeFormat string
	loc        *time.Location
}

var std = &state{
	out:        os.Stdout,
	level:      INFO,
	format:     defaultFormat,
	timeFormat: defaultTimeFormat,
	loc:        time.Local,
}

// createLogFilePath generates a log file path with the current date
func createLogFilePath(logDir, prefix string) string {
	currentDate := time.Now().Format("2006-01-02")
	return filepath.Join(logDir, fmt.Sprintf("%s-%s.log", prefix, currentDate))
}

// createRotatingLogger creates a lumberjack rotating logger
func createRotatingLogger(logFilePath string, cfg *config.Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    cfg.Logger.Rotation.MaxSize,
		MaxBackups: cfg.Logger.Rotation.MaxBackups,
		MaxAge:     cfg.Logger.Rotation.MaxAge,
		Compress:   cfg.Logger.Rotation.Compress,
	}
}

// Setup configures logging to output to both stdout and a rotating log file
func Setup(cfg *config.Config) error {
	logDir := cfg.Logger.Directory

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	loc := time.Local
	if tz := cfg.Logger.Timezone; tz != "" && tz != "Local" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid logger timezone %q: %w", tz, err)
		}
		loc = l
	}

	logFilePath := createLogFilePath(logDir, "tg-broadcast")
	multiWriter := io.MultiWriter(os.Stdout, createRotatingLogger(logFilePath, cfg))

	Configure(multiWriter, ParseLevel(cfg.Logger.Level), cfg.Logger.Format, cfg.Logger.TimeFormat, loc)

	// libraries writing through the standard logger end up in the same files
	log.SetOutput(multiWriter)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	Infof("Logging initialized: writing to %s", logFilePath)
	return nil
}

// Configure replaces the output, threshold and line layout. Empty format
// strings keep the defaults.
func Configure(out io.Writer, level Level, format, timeFormat string, loc *time.Location) {
	std.mu.Lock()
	defer std.mu.Unlock()

	if format == "" {
		format = defaultFormat
	}
	if timeFormat == "" {
		timeFormat = defaultTimeFormat
	}
	if loc == nil {
		loc = time.Local
	}
	std.out = out
	std.level = level
	std.format = format
	std.timeFormat = timeFormat
	std.loc = loc
}

// Enabled reports whether lines at the given level are written
func Enabled(level Level) bool {
	std.mu.Lock()
	defer std.mu.Unlock()
	return level >= std.level
}

func output(level Level, calldepth int, msg string) {
	std.mu.Lock()
	defer std.mu.Unlock()

	if level < std.level {
		return
	}

	file, line := "???", 0
	if _, f, l, ok := runtime.Caller(calldepth); ok {
		file, line = filepath.Base(f), l
	}

	r := strings.NewReplacer(
		"%{level}", level.String(),
		"%{time}", time.Now().In(std.loc).Format(std.timeFormat),
		"%{file}", file,
		"%{line}", strconv.Itoa(line),
		"%{message}", strings.TrimRight(msg, "\n"),
	)
	fmt.Fprintln(std.out, r.Replace(std.format))
}

func Debugf(format string, args ...interface{}) { output(DEBUG, 2, fmt.Sprintf(format, args...)) }

func Infof(format string, args ...interface{}) { output(INFO, 2, fmt.Sprintf(format, args...)) }

func Warningf(format string, args ...interface{}) { output(WARNING, 2, fmt.Sprintf(format, args...)) }

func Errorf(format string, args ...interface{}) { output(ERROR, 2, fmt.Sprintf(format, args...)) }

// Fatalf logs and terminates the process
func Fatalf(format string, args ...interface{}) {
	output(FATAL, 2, fmt.Sprintf(format, args...))
	os.Exit(1)
}

func Info(args ...interface{}) { output(INFO, 2, fmt.Sprint(args...)) }

func Warning(args ...interface{}) { output(WARNING, 2, fmt.Sprint(args...)) }

func Error(args ...interface{}) { output(ERROR, 2, fmt.Sprint(args...)) }
