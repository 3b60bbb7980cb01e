// Package config loads the dispensing cell's configuration from a YAML
// file, environment-variable overrides, and built-in defaults, the same
// three-tier precedence (env > file > defaults) used by the wider
// ecosystem's Viper-based services.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the dispensing cell's full static configuration: motion
// controllers, the EtherCAT fieldbus, the scale, and per-station
// (dispenser, hatch, sealer, gantry) tuning.
type Config struct {
	Logging           LoggingConfig                     `mapstructure:"logging" yaml:"logging"`
	Metrics           MetricsConfig                     `mapstructure:"metrics" yaml:"metrics"`
	ShutdownTimeout   time.Duration                     `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MotionControllers map[string]MotionControllerConfig `mapstructure:"motion_controllers" yaml:"motion_controllers"`
	EtherCAT          EtherCATConfig                    `mapstructure:"ethercat" yaml:"ethercat"`
	Scale             ScaleConfig                       `mapstructure:"scale" yaml:"scale"`
	Dispensers        map[string]DispenserConfig        `mapstructure:"dispensers" yaml:"dispensers"`
	Hatches           map[string]HatchConfig            `mapstructure:"hatches" yaml:"hatches"`
	Sealers           map[string]SealerConfig           `mapstructure:"sealers" yaml:"sealers"`
	Gantry            GantryConfig                      `mapstructure:"gantry" yaml:"gantry"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" yaml:"level"`
	// Format selects text or json.
	Format string `mapstructure:"format" yaml:"format"`
	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// MotionControllerConfig names one motion controller's TCP endpoint.
type MotionControllerConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}

// EtherCATConfig describes the fieldbus cycle time and card layout.
type EtherCATConfig struct {
	Cycle time.Duration         `mapstructure:"cycle" yaml:"cycle"`
	Cards map[string]CardConfig `mapstructure:"cards" yaml:"cards"`
}

// CardConfig locates one EtherCAT sub-device's input/output bytes in
// the shared process-data image and names its individual bits (e.g.
// "photoeye: 3") so other components can address them symbolically.
type CardConfig struct {
	Card         int             `mapstructure:"card" yaml:"card"`
	InputOffset  int             `mapstructure:"input_offset" yaml:"input_offset"`
	OutputOffset int             `mapstructure:"output_offset" yaml:"output_offset"`
	Bits         map[string]uint `mapstructure:"bits" yaml:"bits,omitempty"`
}

// ScaleConfig configures the four load cells backing one ScaleActor.
type ScaleConfig struct {
	Cells        [4]LoadCellConfig `mapstructure:"cells" yaml:"cells"`
	Coefficients [4]float64        `mapstructure:"coefficients" yaml:"coefficients"`
	Tare         float64           `mapstructure:"tare" yaml:"tare"`
	SampleRate   float64           `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// LoadCellConfig identifies one load-cell amplifier channel reachable
// over a serial line.
type LoadCellConfig struct {
	Port    string `mapstructure:"port" yaml:"port"`
	Serial  int32  `mapstructure:"serial" yaml:"serial"`
	Channel int32  `mapstructure:"channel" yaml:"channel"`
}

// DispenserConfig tunes one weight-controlled dispense station.
type DispenserConfig struct {
	MotionController string  `mapstructure:"motion_controller" yaml:"motion_controller"`
	MotorID          uint8   `mapstructure:"motor_id" yaml:"motor_id"`
	MotorScale       float64 `mapstructure:"motor_scale" yaml:"motor_scale"`
	MotorSpeed       float64 `mapstructure:"motor_speed" yaml:"motor_speed"`
	CutoffFrequency  float64 `mapstructure:"cutoff_frequency" yaml:"cutoff_frequency"`
	CheckOffset      float64 `mapstructure:"check_offset" yaml:"check_offset"`
	StopOffset       float64 `mapstructure:"stop_offset" yaml:"stop_offset"`
	RetractBefore    float64 `mapstructure:"retract_before" yaml:"retract_before,omitempty"`
	RetractAfter     float64 `mapstructure:"retract_after" yaml:"retract_after,omitempty"`
	BagSensorID      *uint8  `mapstructure:"bag_sensor_id" yaml:"bag_sensor_id,omitempty"`
}

// HatchConfig tunes one hatch position servo.
type HatchConfig struct {
	MotionController string        `mapstructure:"motion_controller" yaml:"motion_controller"`
	OutputID         uint8         `mapstructure:"output_id" yaml:"output_id"`
	FeedbackID       uint8         `mapstructure:"feedback_id" yaml:"feedback_id"`
	OpenSetpoint     int           `mapstructure:"open_setpoint" yaml:"open_setpoint"`
	CloseSetpoint    int           `mapstructure:"close_setpoint" yaml:"close_setpoint"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SealerConfig tunes one heat-sealer.
type SealerConfig struct {
	MotionController string        `mapstructure:"motion_controller" yaml:"motion_controller"`
	ForwardOutputID  uint8         `mapstructure:"forward_output_id" yaml:"forward_output_id"`
	ReverseOutputID  uint8         `mapstructure:"reverse_output_id" yaml:"reverse_output_id"`
	HeaterOutputID   uint8         `mapstructure:"heater_output_id" yaml:"heater_output_id"`
	FeedbackID       uint8         `mapstructure:"feedback_id" yaml:"feedback_id"`
	ExtendSetpoint   int           `mapstructure:"extend_setpoint" yaml:"extend_setpoint"`
	RetractSetpoint  int           `mapstructure:"retract_setpoint" yaml:"retract_setpoint"`
	Dwell            time.Duration `mapstructure:"dwell" yaml:"dwell"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// GantryConfig configures the single-axis gantry mover.
type GantryConfig struct {
	MotionController string  `mapstructure:"motion_controller" yaml:"motion_controller"`
	MotorID          uint8   `mapstructure:"motor_id" yaml:"motor_id"`
	MotorScale       float64 `mapstructure:"motor_scale" yaml:"motor_scale"`
}

const envPrefix = "DISPENSE"

// Load loads configuration from configPath (or the default search path
// if empty), then fills unset fields with defaults. A DISPENSE_* environment
// variable overrides only a key that is also present in the file; when no
// file is found, environment variables are not consulted and the result
// is defaults only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		))); err != nil {
			return nil, fmt.Errorf("config: unmarshal: %w", err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration, returning a user-actionable error if no
// config file can be found at an explicit path.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\nrun 'dispensercell init --config %s' first", configPath, configPath)
		}
	}
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in YAML form.
func SaveConfig(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(defaultConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read file: %w", err)
	}
	return true, nil
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dispensercell")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dispensercell")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the
// default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(DefaultConfigPath())
	return err == nil
}
