package taskboard

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultAddr     = ":8080"
	DefaultRoot     = "."
	DefaultTaskFile = "tasks.json"
)

// Config of a taskboard server.
type Config struct {
	// Addr to listen on, all interfaces by default.
	Addr string
	// Root is the directory static assets are served from.
	Root string
	// TaskFile is the task list file. A relative path is resolved against Root.
	TaskFile string
	// ReadTimeout bounds reading one request, zero means no timeout.
	ReadTimeout time.Duration

	LogLevel  string // debug, info, warn or error
	LogFormat string // text or json
}

// DefaultConfig serves the working directory on port 8080.
func DefaultConfig() Config {
	return Config{
		Addr:      DefaultAddr,
		Root:      DefaultRoot,
		TaskFile:  DefaultTaskFile,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// environment variables read by LoadConfig
const (
	EnvAddr        = "TASKBOARD_ADDR"
	EnvRoot        = "TASKBOARD_ROOT"
	EnvTaskFile    = "TASKBOARD_TASK_FILE"
	EnvReadTimeout = "TASKBOARD_READ_TIMEOUT"
	EnvLogLevel    = "TASKBOARD_LOG_LEVEL"
	EnvLogFormat   = "TASKBOARD_LOG_FORMAT"
)

// usageOutput receives the usage text printed for -h and bad flags.
var usageOutput io.Writer = os.Stderr

// LoadConfig builds a Config from the defaults, then the environment
// (looked up with lookupEnv, os.LookupEnv if nil), then the command-line
// args. The result is validated.
//
// For -h and -help the usage is printed and flag.ErrHelp is returned.
func LoadConfig(args []string, lookupEnv func(string) (string, bool)) (Config, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	cfg := DefaultConfig()

	for key, dst := range map[string]*string{
		EnvAddr:      &cfg.Addr,
		EnvRoot:      &cfg.Root,
		EnvTaskFile:  &cfg.TaskFile,
		EnvLogLevel:  &cfg.LogLevel,
		EnvLogFormat: &cfg.LogFormat,
	} {
		if v, ok := lookupEnv(key); ok {
			*dst = v
		}
	}
	if v, ok := lookupEnv(EnvReadTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvReadTimeout, err)
		}
		cfg.ReadTimeout = d
	}

	fs := flag.NewFlagSet("taskboard", flag.ContinueOnError)
	fs.SetOutput(usageOutput)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP address to listen on")
	fs.StringVar(&cfg.Root, "root", cfg.Root, "directory to serve static files from")
	fs.StringVar(&cfg.TaskFile, "tasks", cfg.TaskFile, "task list file, relative to -root")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "request read timeout, 0 for none")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr is required")
	}
	if strings.TrimSpace(c.TaskFile) == "" {
		return errors.New("task file is required")
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("read timeout must not be negative: %v", c.ReadTimeout)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// TaskFilePath is TaskFile, resolved against Root when relative.
func (c Config) TaskFilePath() string {
	if filepath.IsAbs(c.TaskFile) {
		return c.TaskFile
	}
	return filepath.Join(c.Root, c.TaskFile)
}

// NewLogger makes the slog.Logger described by LogLevel and LogFormat.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
