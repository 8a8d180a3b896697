package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mutagen-io/filemonitor/cmd"

	"github.com/mutagen-io/filemonitor/pkg/configuration"
	"github.com/mutagen-io/filemonitor/pkg/logging"
)

// configurationMain is the entry point for the configuration command.
func configurationMain(_ *cobra.Command, arguments []string) error {
	// Write the default configuration.
	if err := configuration.DefaultConfiguration().Save(arguments[0], logging.RootLogger); err != nil {
		return errors.Wrap(err, "unable to save configuration")
	}

	// Success.
	return nil
}

// configurationCommand is the configuration command.
var configurationCommand = &cobra.Command{
	Use:          "configuration <path>",
	Short:        "Write the default configuration to a file",
	Args:         cobra.ExactArgs(1),
	Run:          cmd.Mainify(configurationMain),
	SilenceUsage: true,
}

// configurationConfiguration stores configuration for the configuration
// command.
var configurationConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := configurationCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&configurationConfiguration.help, "help", "h", false, "Show help information")
}
