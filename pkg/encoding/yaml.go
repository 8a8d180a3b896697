package encoding

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/mutagen-io/filemonitor/pkg/logging"
)

// LoadAndUnmarshalYAML loads data from the specified path and decodes it into
// the specified structure. Unknown fields are treated as errors.
func LoadAndUnmarshalYAML(path string, value interface{}) error {
	return LoadAndUnmarshal(path, func(data []byte) error {
		// An empty document is valid and leaves the value untouched. The
		// decoder would otherwise report io.EOF.
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		return decoder.Decode(value)
	})
}

// MarshalAndSaveYAML marshals the specified value and saves it to the
// specified path.
func MarshalAndSaveYAML(path string, value interface{}, logger *logging.Logger) error {
	return MarshalAndSave(path, logger, func() ([]byte, error) {
		return yaml.Marshal(value)
	})
}
