// retry.go - Shared retry logic with exponential backoff.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package retry provides client.Client.withRetry's exponential backoff and
// its notion of which errors are worth retrying (spec.md §4.9: "transport
// errors ... are retriable by the caller").
package retry

import (
	"errors"
	"math"
	"net"
	"time"

	"github.com/hyperborea/hyperborea/crypto/rand"
	"github.com/hyperborea/hyperborea/protocol"
)

// Default retry configuration constants
const (
	// DefaultMaxAttempts is the default maximum number of retry attempts
	DefaultMaxAttempts = 10

	// DefaultBaseDelay is the default base delay between retries
	DefaultBaseDelay = 500 * time.Millisecond

	// DefaultMaxDelay is the default maximum delay between retries
	DefaultMaxDelay = 10 * time.Second

	// DefaultJitter is the default jitter factor (0.0 to 1.0)
	DefaultJitter = 0.2
)

// Delay calculates the delay for a given retry attempt using exponential
// backoff with jitter.
func Delay(baseDelay, maxDelay time.Duration, jitter float64, attempt int) time.Duration {
	delay := float64(baseDelay) * math.Pow(2, float64(attempt))

	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}

	if jitter > 0 {
		r := rand.NewMath()
		jitterFactor := 1 - jitter + r.Float64()*2*jitter
		delay *= jitterFactor
	}

	return time.Duration(delay)
}

// IsTransientError reports whether err is worth retrying against
// client.Config.MaxRetries. A *protocol.Error carries the answer directly:
// KindTransport is the only kind a client-side call ever wraps a retriable
// failure in (spec.md §7 — every other Kind reflects the target server
// having already answered, which a retry cannot change). Transport
// implementations that haven't been taught to classify their own failures
// yet (client.Transport is caller-supplied, per its doc comment) may still
// hand back a raw net.Error; that case is treated the same way the
// classified case is, so a bare timeout or connection reset is retriable
// either way.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr.Kind == protocol.KindTransport
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || isTemporary(netErr)
	}

	return false
}

// isTemporary calls the deprecated net.Error.Temporary method through an
// interface check rather than a direct reference, since Go 1.18 removed it
// from the net.Error interface itself but callers implementing net.Error
// (e.g. this package's own tests) may still define it.
func isTemporary(err net.Error) bool {
	type temporary interface {
		Temporary() bool
	}
	t, ok := err.(temporary)
	return ok && t.Temporary()
}
