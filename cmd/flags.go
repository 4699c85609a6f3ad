package cmd

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/omnigrid/internal/config"
)

// flagBinding ties a flag name to its viper key.
type flagBinding struct {
	flag string
	key  string
}

func addServerFlags(flags *pflag.FlagSet) []flagBinding {
	flags.String("host", "", "Host to bind to (empty binds all interfaces)")
	flags.Int("workers", 0, "Number of worker goroutines (0 = max(4, NumCPU))")
	flags.Duration("read-timeout", config.DefaultReadTimeout, "Deadline for reading a request")
	flags.Bool("watch", false, "Log file changes under the served root")

	return []flagBinding{
		{"host", config.KeyHost},
		{"workers", config.KeyWorkers},
		{"read-timeout", config.KeyReadTimeout},
		{"watch", config.KeyWatch},
	}
}

func addLogFlags(flags *pflag.FlagSet) []flagBinding {
	flags.StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")

	return []flagBinding{
		{"log-level", config.KeyLogLevel},
		{"log-format", config.KeyLogFormat},
	}
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, bindings []flagBinding) {
	for _, b := range bindings {
		_ = v.BindPFlag(b.key, flags.Lookup(b.flag))
	}
}
