package main

import (
	"testing"

	"github.com/mutagen-io/filemonitor/pkg/logging"
)

func TestLevelValue(t *testing.T) {
	// Define test cases.
	testCases := []struct {
		value    string
		expected logging.Level
		valid    bool
	}{
		{"error", logging.LevelError, true},
		{"trace", logging.LevelTrace, true},
		{"disabled", logging.LevelDisabled, true},
		{"verbose", logging.LevelDisabled, false},
		{"", logging.LevelDisabled, false},
	}

	// Process test cases.
	for _, testCase := range testCases {
		var value levelValue
		err := value.Set(testCase.value)
		if testCase.valid {
			if err != nil {
				t.Errorf("unable to set level %q: %v", testCase.value, err)
			} else if !value.set || value.level != testCase.expected {
				t.Errorf("level mismatch for %q: %s", testCase.value, value.level)
			} else if value.String() != testCase.value {
				t.Errorf("level string mismatch: %s != %s", value.String(), testCase.value)
			}
		} else if err == nil {
			t.Errorf("invalid level %q accepted", testCase.value)
		} else if value.set || value.String() != "" {
			t.Errorf("invalid level %q recorded", testCase.value)
		}
	}
}
