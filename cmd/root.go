// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/internal/config"
	"github.com/xkilldash9x/websec-cli/internal/observability"
	"github.com/xkilldash9x/websec-cli/internal/service"
)

type contextKey string

const configKey contextKey = "config"

var (
	cfgFile string
	// componentFactory builds the services every command runs against.
	componentFactory = service.NewComponentFactory()
)

// flagBindings maps command flags onto the configuration keys they override.
var flagBindings = map[string]string{
	"log-level": "logger.level",
	"pace":      "scan.narration_pace",
	"addr":      "server.addr",
	"backend":   "history.backend",
}

// NewRootCommand builds a fresh command tree. The interactive shell builds one
// per line so that flags never leak between invocations.
func NewRootCommand() *cobra.Command {
	return newRootCmd(componentFactory)
}

func newRootCmd(factory service.ComponentFactory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "websec",
		Short:         "WebSec is an AI-assisted web and source code security scanner.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "websec"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "websec"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting WebSec", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml, then ~/.websec/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error). Overrides config/env")
	rootCmd.SetVersionTemplate("websec version {{.Version}}\n")

	rootCmd.AddCommand(newScanCmd(factory))
	rootCmd.AddCommand(newHistoryCmd(factory))
	rootCmd.AddCommand(newChatCmd(factory))
	rootCmd.AddCommand(newIntelCmd())
	rootCmd.AddCommand(newServeCmd(factory))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree against the signal-aware context. Errors are
// logged here; the caller only decides the exit code.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.Sync()
	return err
}

// initializeConfig reads the config file, the WEBSEC_ environment and any
// flag overrides into v.
func initializeConfig(cmd *cobra.Command, v *viper.Viper) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".websec"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("WEBSEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	for name, key := range flagBindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// getConfigFromContext returns the configuration loaded by PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not found in context")
	}
	return cfg, nil
}

// loadComponents builds the services for a command and returns them with the
// command logger.
func loadComponents(cmd *cobra.Command, factory service.ComponentFactory) (*service.Components, config.Interface, *zap.Logger, error) {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return nil, nil, nil, err
	}
	logger := observability.GetLogger()
	components, err := factory.Create(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	return components, cfg, logger, nil
}
