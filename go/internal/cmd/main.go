package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const releaseVersion = "0.1.0"

func main() {
	setupLogging(os.Getenv("LOG_LEVEL"))

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cobra.CheckErr(newRootCmd().Execute())
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "drawrelay",
		Short:         "Turn and session coordination for a multiplayer relay drawing game.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.logLevel != "" {
				setupLogging(opts.logLevel)
			}
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to yaml config file (env: DRAWRELAY_CONFIG)")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level, overrides LOG_LEVEL (env: DRAWRELAY_LOG_LEVEL)")
	bindEnv(fs)

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(),
		newPlayCmd(opts),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("drawrelay v{{.Version}}\n")
	return cmd
}

// config loads and validates the --config file.
func (o *rootOptions) config() (*Config, error) {
	config, err := loadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}
