package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"luftscan/internal/platform/config"
	"luftscan/internal/platform/logger"
)

// app carries what every subcommand shares once flags are parsed.
type app struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "luftscan",
		Short: "Parameter scans of the lattice-collapse criterion",
		Long: `luftscan samples a prior over encounter parameters, evaluates the
collapse criterion for every sample and reports which parameters drive
nucleation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $LUFTSCAN_CONFIG)")

	root.AddCommand(
		newScanCmd(a),
		newAnalyzeCmd(),
		newCriterionCmd(),
		newAssessCmd(),
		newServeCmd(a),
		newTokenCmd(a),
	)
	return root
}

// load reads configuration and builds the logger. Logs go to stderr so
// that stdout stays usable for exports.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, log
	return nil
}
