package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"untisbot/internal/config"
	appLog "untisbot/internal/log"
)

const version = "0.1.0"

// rootOptions holds the persistent CLI flags.
type rootOptions struct {
	configPath string
	envFile    string
	debug      bool
}

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	appLog.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "untisbot",
		Short:         "Post today's WebUntis timetable to a chat webhook",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(opts.envFile, cmd.Flags().Changed("env-file"))
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "/etc/untisbot/config.yaml", "Path to config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file with credentials")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(newRunCmd(opts), newServeCmd(opts))
	return root
}

// loadEnvFile loads a dotenv file. A missing default file is not an error;
// a missing file named explicitly on the command line is.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	switch {
	case err == nil:
		appLog.Debug("env file loaded", "path", path)
		return nil
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		appLog.Debug("no env file", "path", path)
		return nil
	default:
		return fmt.Errorf("load env file %s: %w", path, err)
	}
}

// loadConfig reads the config file, applies environment overrides and
// validates the result. It also applies the log level.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", opts.configPath)
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)

	if opts.debug {
		appLog.SetLevel(appLog.LevelDebug)
	} else {
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	}

	if err := cfg.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", opts.configPath)
		return nil, err
	}

	appLog.Info("effective config",
		"untis_server", cfg.Untis.Server,
		"school", cfg.Untis.School,
		"timezone", cfg.Timezone,
		"language", cfg.Language,
		"schedule", cfg.Schedule,
		"webhook_kind", cfg.Webhook.Kind,
		"grid_periods", len(cfg.Grid),
		"holiday_feeds", len(cfg.Holidays.ICS),
	)
	return cfg, nil
}
