package configuration

import (
	"os"

	"github.com/mutagen-io/filemonitor/pkg/encoding"
	"github.com/mutagen-io/filemonitor/pkg/filesystem/monitoring"
	"github.com/mutagen-io/filemonitor/pkg/logging"
)

// Configuration is the YAML configuration object type.
type Configuration struct {
	// Monitoring is the change monitor configuration.
	Monitoring struct {
		// MinimumRetryDelay is the floor applied to negotiated directory probe
		// retry delays.
		MinimumRetryDelay Duration `yaml:"minimumRetryDelay"`
		// DefaultRetryDelay is the retry delay used when a watch requests a
		// retry without suggesting a delay.
		DefaultRetryDelay Duration `yaml:"defaultRetryDelay"`
		// BufferSize is the size of each directory's notification buffer.
		BufferSize ByteSize `yaml:"bufferSize"`
	} `yaml:"monitoring"`
	// Logging is the logging configuration.
	Logging struct {
		// Level is the log level. If unset, the root logger's level is used.
		Level *logging.Level `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfiguration attempts to load a YAML-based configuration file from the
// specified path. If the file doesn't exist, the default configuration is
// returned. The returned structure is not re-used, so its members can be
// freely mutated.
func LoadConfiguration(path string) (*Configuration, error) {
	// Create the target configuration object. Nothing will be modified in this
	// structure if the configuration file doesn't exist.
	result := &Configuration{}

	// Attempt to load.
	if err := encoding.LoadAndUnmarshalYAML(path, result); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Success.
	return result, nil
}

// DefaultConfiguration returns a configuration with every field set to the
// value that an empty configuration implies.
func DefaultConfiguration() *Configuration {
	result := &Configuration{}
	result.Monitoring.MinimumRetryDelay = Duration(monitoring.DefaultMinimumRetryDelay)
	result.Monitoring.DefaultRetryDelay = Duration(monitoring.DefaultDefaultRetryDelay)
	result.Monitoring.BufferSize = ByteSize(monitoring.DefaultBufferSize)
	level := logging.LevelInfo
	result.Logging.Level = &level
	return result
}

// Save writes the configuration to the specified path in YAML format.
func (c *Configuration) Save(path string, logger *logging.Logger) error {
	return encoding.MarshalAndSaveYAML(path, c, logger)
}
