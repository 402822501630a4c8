package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	TriggersChanged bool          // true if any trigger was added, removed, or modified
	TriggerChanges  []TriggerDiff // per-trigger diffs
	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// TriggerDiff describes what changed for a single trigger between two configs.
type TriggerDiff struct {
	Phrase          string
	ResponseChanged bool
	ActionChanged   bool
	Added           bool
	Removed         bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Build trigger lookup maps keyed by phrase.
	oldTriggers := make(map[string]*TriggerConfig, len(old.Triggers))
	for i := range old.Triggers {
		oldTriggers[old.Triggers[i].Phrase] = &old.Triggers[i]
	}
	newTriggers := make(map[string]*TriggerConfig, len(new.Triggers))
	for i := range new.Triggers {
		newTriggers[new.Triggers[i].Phrase] = &new.Triggers[i]
	}

	// Detect modified and removed triggers.
	for phrase, oldT := range oldTriggers {
		newT, exists := newTriggers[phrase]
		if !exists {
			d.TriggerChanges = append(d.TriggerChanges, TriggerDiff{
				Phrase:  phrase,
				Removed: true,
			})
			d.TriggersChanged = true
			continue
		}
		td := TriggerDiff{Phrase: phrase}
		if oldT.Response != newT.Response {
			td.ResponseChanged = true
		}
		if oldT.Action != newT.Action {
			td.ActionChanged = true
		}
		if td.ResponseChanged || td.ActionChanged {
			d.TriggerChanges = append(d.TriggerChanges, td)
			d.TriggersChanged = true
		}
	}

	// Detect added triggers.
	for phrase := range newTriggers {
		if _, exists := oldTriggers[phrase]; !exists {
			d.TriggerChanges = append(d.TriggerChanges, TriggerDiff{
				Phrase: phrase,
				Added:  true,
			})
			d.TriggersChanged = true
		}
	}

	return d
}
