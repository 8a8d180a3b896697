// Package monitoring provides single-file change monitoring on top of native
// directory change notifications. Native notification facilities observe
// directories rather than files, so a Monitor multiplexes any number of file
// watches onto one subscription per parent directory. Files need not exist
// when watched, and their parent directories need not be accessible: a
// directory that can't be opened is re-probed on a schedule negotiated with the
// watches that depend on it.
//
// Clients receive events through the Callback interface. Callbacks are invoked
// on internal goroutines while internal locks are held, so they must hand work
// off to the client's own goroutines rather than block or call back into the
// Monitor.
package monitoring
