package directory

import (
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// errServerStatus marks a 5xx response as a breaker failure. The response
// itself is still returned to the caller for classification.
var errServerStatus = errors.New("server error status")

// errCallerGone marks a request abandoned by its own context. It says nothing
// about the service and is excluded from the breaker counts.
var errCallerGone = errors.New("request abandoned by caller")

// response is a fully read HTTP response
type response struct {
	status int
	body   []byte
}

// newBreaker builds the circuit breaker guarding the directory service.
// The circuit opens after maxFailures consecutive transport or 5xx failures
// and lets one trial request through after timeout. maxFailures == 0 disables it.
func newBreaker(maxFailures uint32, timeout time.Duration, logger *slog.Logger) *gobreaker.CircuitBreaker[*response] {
	if maxFailures == 0 {
		return nil
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "book-directory",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, errCallerGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

// isBreakerRejection reports whether err came from an open or saturated breaker
func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
