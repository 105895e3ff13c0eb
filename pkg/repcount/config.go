package repcount

import "fmt"

// Config holds the thresholds for every counter.
type Config struct {
	Situps  SitupConfig  `json:"situps" yaml:"situps"`
	Squats  SquatConfig  `json:"squats" yaml:"squats"`
	Pushups PushupConfig `json:"pushups" yaml:"pushups"`
}

// SitupConfig holds the head-to-knees distance thresholds.
type SitupConfig struct {
	Low  float64 `json:"low" yaml:"low"`   // Below this while heading to the knees completes a rep
	High float64 `json:"high" yaml:"high"` // Above this starts heading to the knees
}

// SquatConfig holds the knee angle thresholds in degrees.
type SquatConfig struct {
	Down float64 `json:"down" yaml:"down"` // Angle below this counts as the bottom of a squat
	Up   float64 `json:"up" yaml:"up"`     // Angle above this re-arms the counter
}

// PushupConfig holds the hands-to-head distance thresholds.
type PushupConfig struct {
	Down float64 `json:"down" yaml:"down"` // Distance below this counts as the bottom
	Up   float64 `json:"up" yaml:"up"`     // Distance above this re-arms and clears history
}

// DefaultConfig returns the thresholds tuned on the 3D body pose model.
func DefaultConfig() Config {
	return Config{
		Situps:  SitupConfig{Low: 0.50, High: 0.68},
		Squats:  SquatConfig{Down: 70, Up: 110},
		Pushups: PushupConfig{Down: 0.48, Up: 0.55},
	}
}

// Validate checks that every exercise keeps a hysteresis gap.
func (c Config) Validate() error {
	if c.Situps.Low <= 0 || c.Situps.Low >= c.Situps.High {
		return fmt.Errorf("situps: need 0 < low (%g) < high (%g)", c.Situps.Low, c.Situps.High)
	}
	if c.Squats.Down <= 0 || c.Squats.Down >= c.Squats.Up || c.Squats.Up > 180 {
		return fmt.Errorf("squats: need 0 < down (%g) < up (%g) <= 180", c.Squats.Down, c.Squats.Up)
	}
	if c.Pushups.Down <= 0 || c.Pushups.Down >= c.Pushups.Up {
		return fmt.Errorf("pushups: need 0 < down (%g) < up (%g)", c.Pushups.Down, c.Pushups.Up)
	}
	return nil
}
