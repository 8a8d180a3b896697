package configuration

import (
	"time"

	"github.com/pkg/errors"
)

// Duration is a time.Duration value that supports unmarshalling from Go
// duration strings (e.g. "250ms" or "1m30s").
type Duration time.Duration

// UnmarshalText implements the text unmarshalling interface used when loading
// from YAML files.
func (d *Duration) UnmarshalText(textBytes []byte) error {
	// Parse the value.
	value, err := time.ParseDuration(string(textBytes))
	if err != nil {
		return err
	} else if value < 0 {
		return errors.New("negative duration")
	}

	// Store the value.
	*d = Duration(value)

	// Success.
	return nil
}

// MarshalText implements the text marshalling interface used when saving to
// YAML files.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}
