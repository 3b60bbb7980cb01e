package commands

import (
	"fmt"

	"github.com/jaguerra767/control-components/internal/logger"
	"github.com/jaguerra767/control-components/internal/shutdown"
	"github.com/jaguerra767/control-components/internal/supervisor"
	"github.com/jaguerra767/control-components/pkg/config"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the dispensing cell supervisor",
	Long: `Start the dispensing cell supervisor: connect to every configured
motion controller, bring up the scale, and serve the dispensers,
hatches, sealer, and gantry it drives.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/dispensercell/config.yaml.

Examples:
  dispensercell start
  dispensercell start --config /etc/dispensercell/config.yaml
  DISPENSE_LOGGING_LEVEL=DEBUG dispensercell start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := shutdown.Context(cmd.Context())
	defer stop()

	logger.Info("configuration loaded", "source", configSource())

	sup, err := supervisor.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build component graph: %w", err)
	}
	logger.Info("component graph built",
		"motion_controllers", len(cfg.MotionControllers),
		"dispensers", len(sup.Dispensers),
		"hatches", len(sup.Hatches),
		"sealers", len(sup.Sealers),
		"gantry", sup.Gantry != nil,
		"scale", sup.ScaleActor != nil,
	)

	if cfg.Metrics.Enabled {
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics disabled")
	}

	var g errgroup.Group
	g.Go(func() error {
		return sup.ServeMetrics(ctx)
	})

	logger.Info("dispensing cell supervisor running, press Ctrl+C to stop")
	<-ctx.Done()
	logger.Info("shutdown signal received, initiating graceful shutdown")

	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}
	logger.Info("supervisor stopped")
	return nil
}

func configSource() string {
	if GetConfigFile() != "" {
		return GetConfigFile()
	}
	if config.DefaultConfigExists() {
		return config.DefaultConfigPath()
	}
	return "defaults"
}
