// Package cli implements the codegen command line tool.
package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getpup/codegen/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Configuration keys. Each may come from codegen.yaml, a CODEGEN_* variable
// (dots become underscores) or the matching flag.
const (
	keyRedisAddr     = "redis.addr"
	keyRedisPassword = "redis.password"
	keyRedisDB       = "redis.db"
	keySQLDriver     = "sql.driver"
	keySQLDSN        = "sql.dsn"
	keyRulesFile     = "rules.file"
	keyMetricsAddr   = "metrics.addr"
	keyStoreTimeout  = "store.timeout"
	keyStoreRetries  = "store.retries"
	keyChunkSize     = "batch.chunk_size"
	keyLogLevel      = "log.level"
	keyLogFormat     = "log.format"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Format     string

	v *viper.Viper
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CODEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(keySQLDriver, "postgres")
	v.SetDefault(keyMetricsAddr, ":9090")
	v.SetDefault(keyStoreTimeout, 2*time.Second)
	v.SetDefault(keyStoreRetries, 3)
	v.SetDefault(keyChunkSize, 50)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "text")
	return v
}

// loadConfig reads the explicit config file, or codegen.yaml from the working
// directory or $HOME/.codegen when present.
func (o *RootOptions) loadConfig() error {
	if o.ConfigFile != "" {
		o.v.SetConfigFile(o.ConfigFile)
	} else {
		o.v.SetConfigName("codegen")
		o.v.AddConfigPath(".")
		o.v.AddConfigPath("$HOME/.codegen")
	}

	if err := o.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if o.ConfigFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// NewRootCommand creates the root command of the codegen CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{v: newViper()}

	cmd := &cobra.Command{
		Use:     "codegen",
		Short:   "Generate codes from segment rules",
		Long:    "codegen allocates serial numbers, composes codes from segment rules and runs batch generation.",
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.loadConfig()
		},
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default: ./codegen.yaml)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.String("redis-addr", "", "Redis address; counters and batch jobs are kept in Redis")
	flags.String("sql-driver", "postgres", "SQL driver: postgres, mysql or sqlite3")
	flags.String("sql-dsn", "", "SQL data source name; counters are kept in a SQL table")
	flags.String("rules", "", "JSON file with rule definitions")
	flags.String("log-level", "info", "log level (debug|info|warn|error)")
	flags.Duration("store-timeout", 2*time.Second, "timeout of each store operation")
	flags.Int("store-retries", 3, "retries of a failed store operation")

	for key, flag := range map[string]string{
		keyRedisAddr:    "redis-addr",
		keySQLDriver:    "sql-driver",
		keySQLDSN:       "sql-dsn",
		keyRulesFile:    "rules",
		keyLogLevel:     "log-level",
		keyStoreTimeout: "store-timeout",
		keyStoreRetries: "store-retries",
	} {
		_ = opts.v.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewPreviewCommand(opts))
	cmd.AddCommand(NewSerialCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))
	cmd.AddCommand(NewServeMetricsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
