// Package config loads metricate's TOML configuration.
//
// A file is looked up at ~/.config/metricate/config.toml and then at
// ./metricate.toml in the working directory; missing files yield Default.
// METRICATE_LOG_LEVEL and METRICATE_SETTINGS override logging.level and
// settings.path.
package config
