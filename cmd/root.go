package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kairuizhang035-crypto/yinguo/internal/config"
	"github.com/kairuizhang035-crypto/yinguo/internal/tracing"
)

var (
	cfg        *config.Config
	configPath string
	shutdown   func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "yinguo",
	Short: "Causal edge evidence fusion",
	Long:  "Scores candidate causal edges from several discovery producers, tiers them, and triangulates the tiered edges against parameter, mediation, and expert evidence.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		sd, err := tracing.Init(cmd.Context(), cfg.Trace)
		if err != nil {
			return eris.Wrap(err, "init tracing")
		}
		shutdown = sd
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdown != nil {
			if err := shutdown(context.Background()); err != nil {
				zap.L().Warn("tracing shutdown failed", zap.Error(err))
			}
		}
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
