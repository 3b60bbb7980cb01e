package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
motion_controllers:
  main:
    address: "10.0.0.5:502"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "DEBUG", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
	require.Equal(t, "stdout", cfg.Logging.Output)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, 2*time.Millisecond, cfg.EtherCAT.Cycle)
	require.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: NOISY\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownMotionControllerReference(t *testing.T) {
	path := writeConfig(t, `
motion_controllers:
  main:
    address: "10.0.0.5:502"
dispensers:
  hopper1:
    motion_controller: "does-not-exist"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadAcceptsValidDispenserReference(t *testing.T) {
	path := writeConfig(t, `
motion_controllers:
  main:
    address: "10.0.0.5:502"
dispensers:
  hopper1:
    motion_controller: "main"
    motor_id: 1
    motor_scale: 1000
    motor_speed: 5
    check_offset: 5
    stop_offset: 1
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint8(1), cfg.Dispensers["hopper1"].MotorID)
}

func TestLoadParsesEtherCATBitNames(t *testing.T) {
	path := writeConfig(t, `
ethercat:
  cycle: 2ms
  cards:
    coupler0:
      card: 0
      input_offset: 32
      output_offset: 0
      bits:
        photoeye: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint(3), cfg.EtherCAT.Cards["coupler0"].Bits["photoeye"])
}

func TestLoadRejectsEtherCATBitOutOfRange(t *testing.T) {
	path := writeConfig(t, `
ethercat:
  cards:
    coupler0:
      card: 0
      bits:
        photoeye: 9
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadParsesOptionalBagSensor(t *testing.T) {
	path := writeConfig(t, `
motion_controllers:
  main:
    address: "10.0.0.5:502"
dispensers:
  hopper1:
    motion_controller: "main"
    motor_id: 1
    motor_scale: 1000
    bag_sensor_id: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Dispensers["hopper1"].BagSensorID)
	require.Equal(t, uint8(4), *cfg.Dispensers["hopper1"].BagSensorID)

	// Absent means nil, not zero.
	path2 := writeConfig(t, `
motion_controllers:
  main:
    address: "10.0.0.5:502"
dispensers:
  hopper1:
    motion_controller: "main"
    motor_id: 1
    motor_scale: 1000
`)
	cfg2, err := Load(path2)
	require.NoError(t, err)
	require.Nil(t, cfg2.Dispensers["hopper1"].BagSensorID)
}

func TestLoadWithNoFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "INFO", cfg.Logging.Level)
}

func TestMustLoadErrorsOnMissingExplicitPath(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "INFO", Format: "json", Output: "stdout"}}
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "json", loaded.Logging.Format)
}
