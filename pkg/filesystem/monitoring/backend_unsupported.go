//go:build !unix && !windows

package monitoring

import (
	"github.com/pkg/errors"

	"github.com/mutagen-io/filemonitor/pkg/logging"
)

// nativeSubscriber implements subscriber on platforms without native change
// notifications. Every open fails, so watches receive directory access
// failures and may retry indefinitely without ever observing changes.
type nativeSubscriber struct {
	// logger is the subscriber's logger.
	logger *logging.Logger
}

// Open implements subscriber.Open.
func (s *nativeSubscriber) Open(_ string) (subscription, error) {
	return nil, errors.New("change notifications not supported on this platform")
}
