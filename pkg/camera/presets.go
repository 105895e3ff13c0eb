package camera

// Preset names for common configurations
const (
	PresetDefault  = "default"
	PresetLowPower = "lowpower"
	Preset480p     = "480p"
	Preset720p     = "720p"
	Preset1080p    = "1080p"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:  DefaultConfig(),
		PresetLowPower: LowPowerConfig(),
		Preset480p:     SD480Config(),
		Preset720p:     HD720Config(),
		Preset1080p:    HD1080Config(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLowPower,
		Preset480p,
		Preset720p,
		Preset1080p,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// SD480Config returns 640x480 at full framerate.
func SD480Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	return cfg
}

// HD720Config returns 720p HD configuration.
func HD720Config() Config {
	return DefaultConfig()
}

// HD1080Config returns 1080p Full HD configuration.
// Pose inference resizes to the model input, so this mostly helps preview.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	return cfg
}
