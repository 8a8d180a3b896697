package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/mutagen-io/filemonitor/pkg/logging"
)

// levelValue is a pflag.Value that parses log level names.
type levelValue struct {
	// level is the parsed level.
	level logging.Level
	// set indicates whether or not the flag was specified.
	set bool
}

// levelValue must satisfy pflag.Value.
var _ pflag.Value = &levelValue{}

// String implements pflag.Value.String.
func (v *levelValue) String() string {
	if !v.set {
		return ""
	}
	return v.level.String()
}

// Set implements pflag.Value.Set.
func (v *levelValue) Set(value string) error {
	level, ok := logging.NameToLevel(value)
	if !ok {
		return errors.Errorf("invalid log level: %s", value)
	}
	v.level = level
	v.set = true
	return nil
}

// Type implements pflag.Value.Type.
func (v *levelValue) Type() string {
	return "level"
}
