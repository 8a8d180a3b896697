package monitoring

import (
	"golang.org/x/sys/windows"
)

var (
	// modkernel32 is kernel32.dll, loaded lazily from the system directory.
	modkernel32 = windows.NewLazySystemDLL("kernel32.dll")

	// procReadDirectoryChangesExW is ReadDirectoryChangesExW, which is only
	// available on Windows 10 1709 and later.
	procReadDirectoryChangesExW = modkernel32.NewProc("ReadDirectoryChangesExW")
	// procCompareStringOrdinal is CompareStringOrdinal.
	procCompareStringOrdinal = modkernel32.NewProc("CompareStringOrdinal")
)
