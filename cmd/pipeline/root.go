package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/timmy/hireflow/internal/app"
	"github.com/timmy/hireflow/internal/config"
	"github.com/timmy/hireflow/internal/logger"
	"github.com/timmy/hireflow/internal/prompts"
)

const name = "pipeline"

var (
	// Used for flags.
	cfgFile  string
	debug    bool
	jsonLogs bool
	profile  string
	rootCmd  = &cobra.Command{
		Use:           name,
		Short:         "pipeline runs resume analysis, batch intake and job matching from the command line",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&jsonLogs, "json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "scoring profile ("+strings.Join(prompts.ProfileNames(), ", ")+")")

	rootCmd.AddCommand(batchCmd, reanalyzeCmd, matchCmd, statusCmd, retryCmd)
}

func newLogger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Output = os.Stderr
	cfg.Format = "text"
	if jsonLogs {
		cfg.Format = "json"
	}
	if debug {
		cfg.Level = "debug"
	}
	log := logger.New(cfg)
	logger.SetDefaultLogger(log)
	return log
}

// withPipeline loads configuration, builds the pipeline and runs fn with it.
func withPipeline(cmd *cobra.Command, fn func(ctx context.Context, p *app.App) error) error {
	log := newLogger()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := logger.SetComponent(cmd.Context(), name)
	ctx = log.WithContext(ctx)
	p, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	return fn(ctx, p)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
