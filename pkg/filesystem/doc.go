// Package filesystem provides file storage primitives used by filemonitor's
// command line tooling and tests. Change monitoring itself lives in the
// monitoring subpackage.
package filesystem
