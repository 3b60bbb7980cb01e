package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/jaguerra767/control-components/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample dispensercell configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/dispensercell/config.yaml. Use --config to specify a
custom path.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	sample := sampleConfig()
	if err := config.SaveConfig(sample, path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("Edit it to match your cell's motion controllers, EtherCAT map, and scale calibration, then run: dispensercell start")
	return nil
}

func sampleConfig() *config.Config {
	cfg := &config.Config{
		Logging:         config.LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"},
		Metrics:         config.MetricsConfig{Enabled: true, Port: 9090},
		ShutdownTimeout: 10 * time.Second,
		MotionControllers: map[string]config.MotionControllerConfig{
			"main": {Address: "192.168.1.50:4001"},
		},
		EtherCAT: config.EtherCATConfig{
			Cycle: 2 * time.Millisecond,
			Cards: map[string]config.CardConfig{
				"coupler0": {
					Card:         0,
					InputOffset:  32,
					OutputOffset: 0,
					Bits:         map[string]uint{"photoeye": 3, "bag_clamp": 5},
				},
			},
		},
		Scale: config.ScaleConfig{
			Cells: [4]config.LoadCellConfig{
				{Port: "/dev/ttyUSB0", Serial: 1001, Channel: 0},
				{Port: "/dev/ttyUSB0", Serial: 1001, Channel: 1},
				{Port: "/dev/ttyUSB0", Serial: 1002, Channel: 0},
				{Port: "/dev/ttyUSB0", Serial: 1002, Channel: 1},
			},
			Coefficients: [4]float64{1, 1, 1, 1},
			SampleRate:   50,
		},
		Dispensers: map[string]config.DispenserConfig{
			"hopper1": {
				MotionController: "main",
				MotorID:          1,
				MotorScale:       1000,
				MotorSpeed:       5,
				CutoffFrequency:  2,
				CheckOffset:      5,
				StopOffset:       1,
			},
		},
		Gantry: config.GantryConfig{
			MotionController: "main",
			MotorID:          2,
			MotorScale:       1000,
		},
	}
	return cfg
}
