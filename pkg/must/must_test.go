package must

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// closer is an io.Closer that records closure and returns a fixed error.
type closer struct {
	closed bool
	err    error
}

// Close implements io.Closer.Close.
func (c *closer) Close() error {
	c.closed = true
	return c.err
}

// TestClose tests that Close invokes the closer regardless of its result.
func TestClose(t *testing.T) {
	// Set up test cases.
	testCases := []*closer{
		{},
		{err: errors.New("close failure")},
	}

	// Process test cases. A nil logger is valid and discards output.
	for _, testCase := range testCases {
		Close(testCase, nil)
		if !testCase.closed {
			t.Error("closer was not closed")
		}
	}
}

// TestOSRemove tests that OSRemove removes existing files and tolerates
// missing ones.
func TestOSRemove(t *testing.T) {
	// Create a file.
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal("unable to create file:", err)
	}

	// Remove it and verify that it's gone.
	OSRemove(path, nil)
	if _, err := os.Lstat(path); !os.IsNotExist(err) {
		t.Error("file still exists after removal")
	}

	// Removing it again should only log.
	OSRemove(path, nil)
}
