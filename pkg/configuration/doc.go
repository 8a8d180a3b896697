// Package configuration provides loading facilities for filemonitor's YAML
// configuration files. A missing configuration file is not an error: loading
// it yields the default configuration, whose zero values defer to the
// monitoring package's own defaults.
package configuration
