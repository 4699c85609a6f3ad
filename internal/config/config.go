// Package config assembles the immutable server configuration from viper
// (bound command-line flags and the PORT environment variable) and the
// positional port argument.
//
// Port precedence: PORT, then the positional argument. An unparsable value
// at either step logs a warning and falls back to DefaultPort, and a final
// value outside 1-65535 does the same.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	serveerrors "github.com/conneroisu/omnigrid/internal/errors"
	"github.com/conneroisu/omnigrid/internal/logging"
	"github.com/conneroisu/omnigrid/internal/pathsafe"
)

const (
	// DefaultPort is used when no valid port is supplied.
	DefaultPort = 1234
	// DefaultReadTimeout bounds how long a worker waits for a request.
	DefaultReadTimeout = 5 * time.Second
	// DistDir is served when it exists in the working directory.
	DistDir = "dist"
)

// Viper keys.
const (
	KeyPort        = "port"
	KeyHost        = "server.host"
	KeyWorkers     = "server.workers"
	KeyReadTimeout = "server.read-timeout"
	KeyWatch       = "server.watch"
	KeyLogLevel    = "log.level"
	KeyLogFormat   = "log.format"
)

// Config is built once at startup and shared read-only afterwards.
type Config struct {
	Host        string
	Port        uint16
	Root        string
	Workers     int
	ReadTimeout time.Duration
	Watch       bool
	LogLevel    string
	LogFormat   string
}

// SetDefaults registers default values and the PORT binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyHost, "")
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyReadTimeout, DefaultReadTimeout)
	v.SetDefault(KeyWatch, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	_ = v.BindEnv(KeyPort, "PORT")
}

// Load builds the configuration from the global viper instance.
func Load(ctx context.Context, args []string, logger logging.Logger) (*Config, error) {
	return LoadFrom(ctx, viper.GetViper(), args, logger)
}

// LoadFrom builds the configuration from v. The root is resolved against
// the process working directory.
func LoadFrom(ctx context.Context, v *viper.Viper, args []string, logger logging.Logger) (*Config, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("config")

	wd, err := os.Getwd()
	if err != nil {
		return nil, serveerrors.NewConfigError(serveerrors.ErrCodeConfigInvalid, "cannot determine working directory: "+err.Error())
	}
	root, err := ResolveRoot(wd)
	if err != nil {
		return nil, err
	}

	var envPort *string
	if v.IsSet(KeyPort) {
		raw := v.GetString(KeyPort)
		envPort = &raw
	}

	var argPort *string
	if len(args) > 0 {
		argPort = &args[0]
	}

	cfg := &Config{
		Host:        v.GetString(KeyHost),
		Port:        ResolvePort(ctx, logger, envPort, argPort),
		Root:        root,
		Workers:     v.GetInt(KeyWorkers),
		ReadTimeout: v.GetDuration(KeyReadTimeout),
		Watch:       v.GetBool(KeyWatch),
		LogLevel:    v.GetString(KeyLogLevel),
		LogFormat:   v.GetString(KeyLogFormat),
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ResolvePort applies the PORT-then-argument precedence. nil means the
// source was not supplied.
func ResolvePort(ctx context.Context, logger logging.Logger, env, arg *string) uint16 {
	port := DefaultPort

	if env != nil {
		parsed, err := parsePort(*env)
		if err != nil {
			logger.Warn(ctx, err, "invalid PORT value, using default",
				"value", logging.SanitizeForLog(*env), "default", DefaultPort)
			parsed = DefaultPort
		}
		port = parsed
	}

	if arg != nil {
		parsed, err := parsePort(*arg)
		if err != nil {
			logger.Warn(ctx, err, "invalid port argument, using default",
				"value", logging.SanitizeForLog(*arg), "default", DefaultPort)
			parsed = DefaultPort
		}
		port = parsed
	}

	if port <= 0 || port > 65535 {
		logger.Warn(ctx, nil, "port out of range, using default",
			"port", port, "default", DefaultPort)
		port = DefaultPort
	}

	return uint16(port)
}

func parsePort(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, errors.New("empty port")
	}

	// cast parses with base 0; only plain decimal is a port.
	sign, digits := "", trimmed
	if digits[0] == '+' || digits[0] == '-' {
		sign, digits = digits[:1], digits[1:]
	}
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return 0, fmt.Errorf("port %q is not a decimal integer", trimmed)
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		digits = "0"
	}

	return cast.ToIntE(sign + digits)
}

// ResolveRoot returns the canonical directory to serve: workDir/dist when
// it exists, workDir otherwise.
func ResolveRoot(workDir string) (string, error) {
	root := workDir
	if _, err := os.Stat(filepath.Join(workDir, DistDir)); err == nil {
		root = filepath.Join(workDir, DistDir)
	}

	canonical, err := pathsafe.WeaklyCanonical(root)
	if err != nil {
		abs, absErr := filepath.Abs(root)
		if absErr != nil {
			return "", serveerrors.NewConfigError(serveerrors.ErrCodeConfigInvalid,
				"cannot resolve root directory "+root+": "+absErr.Error())
		}
		return abs, nil
	}

	return canonical, nil
}

// Validate checks the ranges of a configuration.
func Validate(cfg *Config) error {
	if cfg.Workers < 0 {
		return fmt.Errorf("workers %d must not be negative", cfg.Workers)
	}
	if cfg.ReadTimeout < 0 {
		return fmt.Errorf("read timeout %s must not be negative", cfg.ReadTimeout)
	}
	if cfg.Root == "" || !filepath.IsAbs(cfg.Root) {
		return fmt.Errorf("root %q must be an absolute path", cfg.Root)
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("log format %q must be text or json", cfg.LogFormat)
	}
	if strings.ContainsAny(cfg.Host, " /\\;") {
		return fmt.Errorf("host %q contains invalid characters", cfg.Host)
	}

	return nil
}
