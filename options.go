package metricate

import (
	"log/slog"

	"github.com/tsawler/metricate/format"
	"github.com/tsawler/metricate/rounding"
)

// ConvertOptions holds configuration for a conversion.
type ConvertOptions struct {
	mode rounding.Mode

	// Catalog entry names to convert; nil means all.
	units []string

	// Input handling
	format      format.Format // Unknown means detect
	contentType string

	logger *slog.Logger
}

// defaultOptions returns the default conversion options.
func defaultOptions() ConvertOptions {
	return ConvertOptions{
		mode:   rounding.Plain,
		units:  nil,
		format: format.Unknown,
	}
}

// clone creates a deep copy of ConvertOptions.
func (o ConvertOptions) clone() ConvertOptions {
	newOpts := o
	if o.units != nil {
		newOpts.units = make([]string, len(o.units))
		copy(newOpts.units, o.units)
	}
	return newOpts
}
