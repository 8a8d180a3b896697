//go:build windows

package must

import (
	"golang.org/x/sys/windows"

	"github.com/mutagen-io/filemonitor/pkg/logging"
)

// CloseWindowsHandle closes a Windows handle and logs any failure as a
// warning.
func CloseWindowsHandle(handle windows.Handle, logger *logging.Logger) {
	if err := windows.CloseHandle(handle); err != nil {
		logger.Warnf("Unable to close handle %d: %s", handle, err.Error())
	}
}
