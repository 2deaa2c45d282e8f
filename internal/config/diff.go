package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// storage changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DetectorChanged is true when any end-of-speech tuning field changed.
	// The new tuning applies from the next sentence onward.
	DetectorChanged bool
	NewDetector     DetectorConfig

	// PacingChanged is true when the between-sentence delay changed.
	PacingChanged bool
	NewPacing     SessionConfig
}

// Empty reports whether the diff contains no hot-reloadable change.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.DetectorChanged && !d.PacingChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.App.LogLevel != new.App.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.App.LogLevel
	}

	if old.Detector != new.Detector {
		d.DetectorChanged = true
		d.NewDetector = new.Detector
	}

	if old.Session != new.Session {
		d.PacingChanged = true
		d.NewPacing = new.Session
	}

	return d
}
