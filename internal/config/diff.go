package config

import (
	"maps"
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only LogLevel, NewsFrequency and the news snapshot are applied live; every
// other changed section is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	NewsFrequencyChanged bool
	NewNewsFrequency     int

	NewsPathChanged bool
	NewNewsPath     string

	// RestartRequired names the top-level sections whose changes only take
	// effect after a restart, in schema order.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.NewsFrequencyChanged && !d.NewsPathChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Radio.NewsFrequency != new.Radio.NewsFrequency {
		d.NewsFrequencyChanged = true
		d.NewNewsFrequency = new.Radio.NewsFrequency
	}
	if old.News.SnapshotPath != new.News.SnapshotPath {
		d.NewsPathChanged = true
		d.NewNewsPath = new.News.SnapshotPath
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Discord != new.Discord {
		d.RestartRequired = append(d.RestartRequired, "discord")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if radioRestart(old.Radio, new.Radio) {
		d.RestartRequired = append(d.RestartRequired, "radio")
	}
	if old.News.Subreddit != new.News.Subreddit || old.News.Limit != new.News.Limit {
		d.RestartRequired = append(d.RestartRequired, "news")
	}
	if old.Speech != new.Speech {
		d.RestartRequired = append(d.RestartRequired, "speech")
	}
	if old.Generation != new.Generation {
		d.RestartRequired = append(d.RestartRequired, "generation")
	}
	if old.Player != new.Player {
		d.RestartRequired = append(d.RestartRequired, "player")
	}
	return d
}

// radioRestart compares the radio section ignoring NewsFrequency.
func radioRestart(a, b RadioConfig) bool {
	if a.StationName != b.StationName || a.PersonaName != b.PersonaName ||
		a.Setting != b.Setting || a.NewsTopic != b.NewsTopic ||
		a.AutoRadio != b.AutoRadio || a.VoiceChannelName != b.VoiceChannelName ||
		a.BatchSize != b.BatchSize || a.RearmDelay != b.RearmDelay ||
		a.TimeCheckInterval != b.TimeCheckInterval || a.NowPlayingChannelID != b.NowPlayingChannelID {
		return true
	}
	if !slices.Equal(a.Traits, b.Traits) || !slices.Equal(a.SearchQueries, b.SearchQueries) {
		return true
	}
	return !maps.EqualFunc(a.FallbackPhrases, b.FallbackPhrases, slices.Equal[[]string])
}
