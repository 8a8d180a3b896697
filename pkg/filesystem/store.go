package filesystem

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/mutagen-io/filemonitor/pkg/logging"
	"github.com/mutagen-io/filemonitor/pkg/must"
)

const (
	// atomicWriteTemporaryNamePrefix is the file name prefix to use for
	// intermediate temporary files used in atomic writes. Watches never
	// register names with this prefix, so the intermediate files only produce
	// notifications for unrelated names.
	atomicWriteTemporaryNamePrefix = ".filemonitor-temporary-atomic-write"

	// storePermissions are the permissions used for files created by Store.
	storePermissions = 0644
)

// WriteFileAtomic writes a file to disk in an atomic fashion by using an
// intermediate temporary file that is swapped in place using a rename
// operation. Any cleanup failures are logged to the specified logger, which may
// be nil.
func WriteFileAtomic(path string, data []byte, permissions os.FileMode, logger *logging.Logger) error {
	// Create a temporary file. The os package already uses secure permissions
	// for creating temporary files, so we don't need to change them.
	temporary, err := os.CreateTemp(filepath.Dir(path), atomicWriteTemporaryNamePrefix)
	if err != nil {
		return errors.Wrap(err, "unable to create temporary file")
	}

	// Write data.
	if _, err = temporary.Write(data); err != nil {
		must.Close(temporary, logger)
		must.OSRemove(temporary.Name(), logger)
		return errors.Wrap(err, "unable to write data to temporary file")
	}

	// Close out the file.
	if err = temporary.Close(); err != nil {
		must.OSRemove(temporary.Name(), logger)
		return errors.Wrap(err, "unable to close temporary file")
	}

	// Set the file's permissions.
	if err = os.Chmod(temporary.Name(), permissions); err != nil {
		must.OSRemove(temporary.Name(), logger)
		return errors.Wrap(err, "unable to change file permissions")
	}

	// Rename the file into place.
	if err = os.Rename(temporary.Name(), path); err != nil {
		must.OSRemove(temporary.Name(), logger)
		return errors.Wrap(err, "unable to rename file")
	}

	// Success.
	return nil
}

// Store writes data to the file at the specified path, creating or truncating
// it as necessary. Unlike WriteFileAtomic, the file is written in place, so a
// watcher observing its directory sees a modification of the target name
// rather than a rename of a temporary file.
func Store(path string, data []byte) error {
	// Open the target.
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, storePermissions)
	if err != nil {
		return errors.Wrap(err, "unable to open file")
	}

	// Write data.
	if _, err = file.Write(data); err != nil {
		file.Close()
		return errors.Wrap(err, "unable to write file")
	}

	// Close out the file.
	if err = file.Close(); err != nil {
		return errors.Wrap(err, "unable to close file")
	}

	// Success.
	return nil
}
