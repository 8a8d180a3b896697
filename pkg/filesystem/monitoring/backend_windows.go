package monitoring

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/mutagen-io/filemonitor/pkg/logging"
	"github.com/mutagen-io/filemonitor/pkg/must"
)

const (
	// fileNotifyChangeFileName through fileNotifyChangeSecurity are the
	// FILE_NOTIFY_CHANGE_* filter flags.
	fileNotifyChangeFileName   = 0x001
	fileNotifyChangeDirName    = 0x002
	fileNotifyChangeAttributes = 0x004
	fileNotifyChangeSize       = 0x008
	fileNotifyChangeLastWrite  = 0x010
	fileNotifyChangeCreation   = 0x040
	fileNotifyChangeSecurity   = 0x100

	// readDirectoryChangesFilter is the notification filter used for all
	// directory reads.
	readDirectoryChangesFilter = fileNotifyChangeFileName |
		fileNotifyChangeDirName |
		fileNotifyChangeAttributes |
		fileNotifyChangeSize |
		fileNotifyChangeLastWrite |
		fileNotifyChangeCreation |
		fileNotifyChangeSecurity

	// readDirectoryNotifyExtendedInformation is the
	// READ_DIRECTORY_NOTIFY_INFORMATION_CLASS value requesting
	// FILE_NOTIFY_EXTENDED_INFORMATION records.
	readDirectoryNotifyExtendedInformation = 2
)

// nativeSubscriber implements subscriber using directory handles bound to I/O
// completion ports.
type nativeSubscriber struct {
	// logger is the subscriber's logger.
	logger *logging.Logger
}

// Open implements subscriber.Open.
func (s *nativeSubscriber) Open(directory string) (subscription, error) {
	// Convert the path.
	path, err := windows.UTF16PtrFromString(directory)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert path")
	}

	// Open the directory. Backup semantics are required to open directories,
	// and sharing everything prevents the watch from interfering with renames
	// and deletions of the directory's contents.
	handle, err := windows.CreateFile(
		path,
		windows.FILE_LIST_DIRECTORY,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OVERLAPPED,
		0,
	)
	if err != nil {
		return nil, err
	}

	// Create the subscription.
	return &readdcwSubscription{
		directory: handle,
		logger:    s.logger,
	}, nil
}

// readdcwSubscription implements subscription using ReadDirectoryChangesW and
// ReadDirectoryChangesExW on a handle bound to a dedicated completion port.
type readdcwSubscription struct {
	// directory is the directory handle.
	directory windows.Handle
	// logger is the subscription's logger.
	logger *logging.Logger
	// port is the completion port. It is set by Bind.
	port windows.Handle
	// handler is the completion handler. It is set by Bind.
	handler completionHandler
	// overlapped is the overlapped structure used for reads.
	overlapped windows.Overlapped

	// lock serializes access to the fields below.
	lock sync.Mutex
	// closed indicates whether or not the subscription has been closed.
	closed bool
	// reading indicates whether or not a read is outstanding.
	reading bool
	// buffer is the outstanding read's buffer. The reference is retained
	// until the read completes because the kernel writes into it.
	buffer []byte
}

// Bind implements subscription.Bind.
func (s *readdcwSubscription) Bind(handler completionHandler) error {
	// Create a completion port associated with the directory handle.
	port, err := windows.CreateIoCompletionPort(s.directory, 0, 0, 1)
	if err != nil {
		return errors.Wrap(err, "unable to create completion port")
	}

	// Record binding state.
	s.port = port
	s.handler = handler

	// Start the completion loop.
	go s.run()

	// Success.
	return nil
}

// classifyCompletionError converts a failed completion's status, indicating
// whether or not the status represents a notification queue overflow.
func classifyCompletionError(err error) (bool, error) {
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, windows.ERROR_NOTIFY_ENUM_DIR):
		return true, nil
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return false, errAccessDenied
	default:
		return false, err
	}
}

// run is the completion delivery loop.
func (s *readdcwSubscription) run() {
	for {
		// Wait for a completion packet.
		var transferred uint32
		var key uintptr
		var overlapped *windows.Overlapped
		err := windows.GetQueuedCompletionStatus(s.port, &transferred, &key, &overlapped, windows.INFINITE)
		if overlapped == nil && err != nil {
			s.logger.Errorf("Completion port failure: %v", err)
			return
		}

		// Update read state and determine whether or not we're done. A packet
		// without an overlapped structure is the wakeup posted by Close.
		s.lock.Lock()
		if overlapped != nil {
			s.reading = false
			s.buffer = nil
		}
		closed := s.closed
		if closed && !s.reading {
			s.lock.Unlock()
			must.CloseWindowsHandle(s.port, s.logger)
			return
		}
		s.lock.Unlock()

		// Drop completions that arrive after closure, which are typically
		// aborted reads.
		if closed || overlapped == nil {
			continue
		}

		// Deliver the completion.
		overflowed, err := classifyCompletionError(err)
		if overflowed {
			transferred = 0
		}
		s.handler(err, transferred)
	}
}

// classifyReadError converts a read issuance failure.
func classifyReadError(err error, format Format) error {
	switch {
	case format == FormatExtended && (errors.Is(err, windows.ERROR_INVALID_PARAMETER) ||
		errors.Is(err, windows.ERROR_INVALID_FUNCTION) ||
		errors.Is(err, windows.ERROR_NOT_SUPPORTED)):
		return errFormatNotSupported
	case errors.Is(err, windows.ERROR_NOTIFY_ENUM_DIR):
		return errQueueOverflow
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return errAccessDenied
	default:
		return err
	}
}

// Read implements subscription.Read.
func (s *readdcwSubscription) Read(buffer []byte, format Format) error {
	// Validate parameters.
	if len(buffer) == 0 {
		return errors.New("empty buffer")
	}

	// Verify state.
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return errors.New("subscription closed")
	} else if s.handler == nil {
		return errors.New("subscription not bound")
	} else if s.reading {
		return errors.New("read already outstanding")
	}

	// Issue the read. The overlapped structure is reset because the kernel
	// writes status into it.
	s.overlapped = windows.Overlapped{}
	var err error
	switch format {
	case FormatExtended:
		if findErr := procReadDirectoryChangesExW.Find(); findErr != nil {
			return errFormatNotSupported
		}
		result, _, callErr := procReadDirectoryChangesExW.Call(
			uintptr(s.directory),
			uintptr(unsafe.Pointer(&buffer[0])),
			uintptr(len(buffer)),
			0,
			readDirectoryChangesFilter,
			0,
			uintptr(unsafe.Pointer(&s.overlapped)),
			0,
			readDirectoryNotifyExtendedInformation,
		)
		if result == 0 {
			err = callErr
		}
	case FormatLegacy:
		err = windows.ReadDirectoryChanges(
			s.directory,
			&buffer[0],
			uint32(len(buffer)),
			false,
			readDirectoryChangesFilter,
			nil,
			&s.overlapped,
			0,
		)
	default:
		return errors.Errorf("unknown notification format: %d", format)
	}
	if err != nil {
		return classifyReadError(err, format)
	}

	// Record the outstanding read.
	s.reading = true
	s.buffer = buffer

	// Success.
	return nil
}

// Close implements subscription.Close.
func (s *readdcwSubscription) Close() error {
	// Mark the subscription as closed.
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil
	}
	s.closed = true
	reading := s.reading
	s.lock.Unlock()

	// If the subscription was never bound, then only the directory handle
	// needs to be closed.
	if s.port == 0 {
		return windows.CloseHandle(s.directory)
	}

	// Cancel any outstanding read and close the directory handle. A cancelled
	// read always produces a completion packet, which lets the completion loop
	// exit. Otherwise, wake the loop directly.
	if reading {
		if err := windows.CancelIoEx(s.directory, &s.overlapped); err != nil && !errors.Is(err, windows.ERROR_NOT_FOUND) {
			s.logger.Warnf("Unable to cancel outstanding read: %v", err)
		}
	}
	err := windows.CloseHandle(s.directory)
	if !reading {
		if postErr := windows.PostQueuedCompletionStatus(s.port, 0, 0, nil); postErr != nil {
			s.logger.Warnf("Unable to wake completion loop: %v", postErr)
		}
	}
	if err != nil {
		return errors.Wrap(err, "unable to close directory handle")
	}

	// Success.
	return nil
}
