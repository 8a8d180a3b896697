package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mutagen-io/filemonitor/cmd"

	"github.com/mutagen-io/filemonitor/pkg/configuration"
	"github.com/mutagen-io/filemonitor/pkg/filesystem/monitoring"
	"github.com/mutagen-io/filemonitor/pkg/logging"
	"github.com/mutagen-io/filemonitor/pkg/timeutil"
)

const (
	// watchEventBufferSize is the capacity of the event channel between
	// callbacks and the watch command's print loop.
	watchEventBufferSize = 1024
)

// eventColors maps event kinds to their output colors.
var eventColors = map[eventKind]*color.Color{
	eventChanged:       color.New(color.FgGreen),
	eventDeleted:       color.New(color.FgRed),
	eventRecheck:       color.New(color.FgYellow),
	eventAccessFailure: color.New(color.FgYellow),
	eventInvalid:       color.New(color.FgRed, color.Bold),
}

// printEvent prints a watch event.
func printEvent(event watchEvent) {
	label := eventColors[event.kind].Sprintf("%-14s", event.kind)
	if event.detail != "" {
		fmt.Fprintf(color.Output, "%s %s (%s)\n", label, event.path, event.detail)
	} else {
		fmt.Fprintf(color.Output, "%s %s\n", label, event.path)
	}
}

// printStatus prints a monitor status table.
func printStatus(status []monitoring.DirectoryStatus) {
	fmt.Println("Directories:")
	if len(status) == 0 {
		fmt.Println("\tNone")
		return
	}
	for _, s := range status {
		fmt.Printf("\t%s\n", s.Path)
		fmt.Printf("\t\tState: %s\n", s.State)
		fmt.Printf("\t\tWatches: %d\n", s.Watches)
		fmt.Printf("\t\tFormat: %s\n", s.Format)
		fmt.Printf("\t\tRead outstanding: %t\n", s.ReadOutstanding)
		fmt.Printf("\t\tRetry scheduled: %t\n", s.RetryScheduled)
	}
}

// summarize formats the end-of-watch summary line.
func summarize(observed, dropped uint64, elapsed time.Duration) string {
	result := fmt.Sprintf("Observed %s in %s",
		english.Plural(int(observed), "event", "events"),
		elapsed.Round(time.Millisecond),
	)
	if dropped > 0 {
		result += fmt.Sprintf(" (%s dropped)", humanize.Comma(int64(dropped)))
	}
	return result
}

// loadWatchConfiguration loads the configuration file, if any, and applies
// command line overrides.
func loadWatchConfiguration(command *cobra.Command) (*configuration.Configuration, error) {
	// Load the configuration file.
	result := configuration.DefaultConfiguration()
	if watchConfiguration.configurationFile != "" {
		loaded, err := configuration.LoadConfiguration(watchConfiguration.configurationFile)
		if err != nil {
			return nil, errors.Wrap(err, "unable to load configuration file")
		}
		if loaded.Monitoring.MinimumRetryDelay != 0 {
			result.Monitoring.MinimumRetryDelay = loaded.Monitoring.MinimumRetryDelay
		}
		if loaded.Monitoring.DefaultRetryDelay != 0 {
			result.Monitoring.DefaultRetryDelay = loaded.Monitoring.DefaultRetryDelay
		}
		if loaded.Monitoring.BufferSize != 0 {
			result.Monitoring.BufferSize = loaded.Monitoring.BufferSize
		}
		if loaded.Logging.Level != nil {
			result.Logging.Level = loaded.Logging.Level
		}
	}

	// Apply command line overrides.
	flags := command.Flags()
	if flags.Changed("minimum-retry-delay") {
		result.Monitoring.MinimumRetryDelay = configuration.Duration(watchConfiguration.minimumRetryDelay)
	}
	if flags.Changed("default-retry-delay") {
		result.Monitoring.DefaultRetryDelay = configuration.Duration(watchConfiguration.defaultRetryDelay)
	}
	if watchConfiguration.logLevel.set {
		level := watchConfiguration.logLevel.level
		result.Logging.Level = &level
	}

	// Success.
	return result, nil
}

// watchMain is the entry point for the watch command.
func watchMain(command *cobra.Command, arguments []string) error {
	// Configure output.
	cmd.ConfigureColor(watchConfiguration.noColor)

	// Load configuration.
	settings, err := loadWatchConfiguration(command)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(*settings.Logging.Level).Sublogger("filemonitor")

	// Resolve targets.
	targets, err := resolveTargets(arguments)
	if err != nil {
		return err
	}

	// Create the monitor.
	monitor := monitoring.NewMonitor(&monitoring.Configuration{
		MinimumRetryDelay: time.Duration(settings.Monitoring.MinimumRetryDelay),
		DefaultRetryDelay: time.Duration(settings.Monitoring.DefaultRetryDelay),
		BufferSize:        int(settings.Monitoring.BufferSize),
	}, logger.Sublogger("monitoring"))
	logger.Debugf("Using %s notification buffers", humanize.IBytes(uint64(settings.Monitoring.BufferSize)))

	// Set up signal handling before registering watches so that termination
	// always goes through cleanup.
	signalTermination := make(chan os.Signal, 1)
	signal.Notify(signalTermination, cmd.TerminationSignals...)
	defer signal.Stop(signalTermination)

	// Register watches and defer their cancellation.
	events := make(chan watchEvent, watchEventBufferSize)
	var dropped atomic.Uint64
	var registrations []*monitoring.Registration
	defer func() {
		for _, registration := range registrations {
			if err := registration.Close(); err != nil {
				logger.Warnf("Unable to cancel watch for %s: %v", registration.Path(), err)
			}
		}
	}()
	for _, target := range targets {
		registration, err := monitor.RegisterWatch(target, &forwardingCallback{
			path:       target,
			retryDelay: time.Duration(settings.Monitoring.DefaultRetryDelay),
			events:     events,
			dropped:    &dropped,
		})
		if err != nil {
			return errors.Wrapf(err, "unable to watch %s", target)
		}
		registrations = append(registrations, registration)
	}
	logger.Infof("Watching %s", english.Plural(len(registrations), "file", "files"))

	// Set up the deadline, if any.
	var deadline <-chan time.Time
	if watchConfiguration.duration > 0 {
		timer := time.NewTimer(watchConfiguration.duration)
		defer timeutil.StopAndDrainTimer(timer)
		deadline = timer.C
	}

	// Print events until termination.
	var observed uint64
	start := time.Now()
Watching:
	for {
		select {
		case event := <-events:
			printEvent(event)
			observed++
		case <-signalTermination:
			fmt.Println()
			break Watching
		case <-deadline:
			break Watching
		}
	}

	// Print status and a summary.
	if watchConfiguration.status {
		printStatus(monitor.Status())
	}
	fmt.Println(summarize(observed, dropped.Load(), time.Since(start)))

	// Success.
	return nil
}

// watchCommand is the watch command.
var watchCommand = &cobra.Command{
	Use:          "watch <path>...",
	Short:        "Watch files for changes",
	Args:         cobra.MinimumNArgs(1),
	Run:          cmd.Mainify(watchMain),
	SilenceUsage: true,
}

// watchConfiguration stores configuration for the watch command.
var watchConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
	// configurationFile is the path to a YAML configuration file.
	configurationFile string
	// logLevel is the log level override.
	logLevel levelValue
	// minimumRetryDelay is the minimum retry delay override.
	minimumRetryDelay time.Duration
	// defaultRetryDelay is the default retry delay override.
	defaultRetryDelay time.Duration
	// duration is the amount of time to watch before exiting.
	duration time.Duration
	// status indicates whether or not to print monitor status on exit.
	status bool
	// noColor disables colored output.
	noColor bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := watchCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&watchConfiguration.help, "help", "h", false, "Show help information")

	// Wire up configuration flags.
	flags.StringVarP(&watchConfiguration.configurationFile, "configuration", "c", "", "Load settings from a YAML configuration file")
	flags.Var(&watchConfiguration.logLevel, "log-level", "Set the log level (disabled|error|warn|info|debug|trace)")
	flags.DurationVar(&watchConfiguration.minimumRetryDelay, "minimum-retry-delay", monitoring.DefaultMinimumRetryDelay, "Set the minimum delay between directory probes")
	flags.DurationVar(&watchConfiguration.defaultRetryDelay, "default-retry-delay", monitoring.DefaultDefaultRetryDelay, "Set the retry delay used when a watch doesn't suggest one")

	// Wire up behavior flags.
	flags.DurationVarP(&watchConfiguration.duration, "duration", "d", 0, "Stop watching after the specified duration")
	flags.BoolVarP(&watchConfiguration.status, "status", "s", false, "Print directory status on exit")
	flags.BoolVar(&watchConfiguration.noColor, "no-color", false, "Disable colored output")
}
