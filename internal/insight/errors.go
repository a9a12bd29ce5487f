package insight

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// ErrUnauthenticated is returned when a request carries no identity.
var ErrUnauthenticated = eris.New("insight: unauthenticated")

// ErrForbidden is returned when the identity may not read the requested scope.
var ErrForbidden = eris.New("insight: scope not permitted")

// RateLimitedError is returned when the identity exhausted its window. No
// work was performed.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("insight: rate limited, retry after %ds", e.RetryAfterSeconds)
}

// RetryAfter returns the hint as a duration.
func (e *RateLimitedError) RetryAfter() time.Duration {
	return time.Duration(e.RetryAfterSeconds) * time.Second
}

// AggregationError wraps a data store failure during aggregation.
type AggregationError struct {
	Err error
}

func (e *AggregationError) Error() string {
	return "insight: aggregation failed: " + e.Err.Error()
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}

// ValidationError reports a missing or malformed required field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("insight: invalid %s: %s", e.Field, e.Message)
}
