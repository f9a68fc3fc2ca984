package config

import "reflect"

// ConfigDiff describes what changed between two configs. Timing, detection,
// queue, and language settings can be applied between sessions without a
// restart; provider and server changes cannot.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SessionChanged is true when any session timing knob changed.
	SessionChanged bool

	// VADChanged is true when any voice detection knob changed.
	VADChanged bool

	// QueueChanged is true when the synthesis concurrency bound changed.
	QueueChanged bool

	// LanguagesChanged is true when the translation direction changed.
	LanguagesChanged bool

	// VoiceChanged is true when the synthesis voice changed.
	VoiceChanged bool

	// RestartRequired is true when providers or the server listen address
	// changed. These are wired at startup and cannot be hot-swapped.
	RestartRequired bool
}

// Any reports whether the diff contains any change at all.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.SessionChanged || d.VADChanged ||
		d.QueueChanged || d.LanguagesChanged || d.VoiceChanged ||
		d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.SessionChanged = old.Session != new.Session
	d.VADChanged = old.VAD != new.VAD
	d.QueueChanged = old.Queue != new.Queue
	d.LanguagesChanged = old.Languages != new.Languages
	d.VoiceChanged = old.Voice != new.Voice

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = true
	}
	// ProviderEntry holds a map, so compare providers reflectively.
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = true
	}

	return d
}
