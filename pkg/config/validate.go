package config

import "fmt"

// Validate checks that cross-references between sections resolve: every
// station's motion_controller key must name a configured controller.
func Validate(cfg *Config) error {
	switch cfg.Logging.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level must be one of DEBUG, INFO, WARN, ERROR, got %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", cfg.Logging.Format)
	}

	for name, card := range cfg.EtherCAT.Cards {
		for bitName, bit := range card.Bits {
			if bit > 7 {
				return fmt.Errorf("ethercat.cards.%s.bits.%s: bit index %d out of range 0..7", name, bitName, bit)
			}
		}
	}

	for name, d := range cfg.Dispensers {
		if err := requireController(cfg, d.MotionController); err != nil {
			return fmt.Errorf("dispensers.%s: %w", name, err)
		}
	}
	for name, h := range cfg.Hatches {
		if err := requireController(cfg, h.MotionController); err != nil {
			return fmt.Errorf("hatches.%s: %w", name, err)
		}
	}
	for name, s := range cfg.Sealers {
		if err := requireController(cfg, s.MotionController); err != nil {
			return fmt.Errorf("sealers.%s: %w", name, err)
		}
	}
	if cfg.Gantry.MotionController != "" {
		if err := requireController(cfg, cfg.Gantry.MotionController); err != nil {
			return fmt.Errorf("gantry: %w", err)
		}
	}
	return nil
}

func requireController(cfg *Config, name string) error {
	if name == "" {
		return fmt.Errorf("motion_controller is required")
	}
	if _, ok := cfg.MotionControllers[name]; !ok {
		return fmt.Errorf("unknown motion_controller %q", name)
	}
	return nil
}
