package transport

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("ipc/transport")

// RetryPolicy controls how often and how patiently DialWithRetry dials
type RetryPolicy struct {
	// Attempts is the number of dial attempts, at least one is always made
	Attempts int
	// InitialBackoff is the pause after the first failed attempt. It doubles
	// after every further failure and is jittered by +-10%.
	InitialBackoff time.Duration
	// AttemptTimeout bounds a single dial, 0 means no bound
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy tries three times starting with a 50ms pause
var DefaultRetryPolicy = RetryPolicy{
	Attempts:       3,
	InitialBackoff: 50 * time.Millisecond,
}

// DialWithRetry connects to endpoint, retrying with exponential backoff until
// an attempt succeeds, the attempts are used up or ctx is done.
func DialWithRetry(ctx context.Context, connector IClientConnector, endpoint string, policy RetryPolicy) (net.Conn, error) {
	attempts := max(policy.Attempts, 1)
	backoff := policy.InitialBackoff
	if backoff <= 0 {
		backoff = DefaultRetryPolicy.InitialBackoff
	}

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("dial %s: %w", endpoint, err)
		}
		conn, err := dialOnce(ctx, connector, endpoint, policy.AttemptTimeout)
		if err == nil {
			log.Debugf("connected to %s via %s (attempt %d/%d)", endpoint, connector.GetName(), i+1, attempts)
			return conn, nil
		}
		lastErr = err
		log.Debugf("dial attempt %d/%d to %s failed: %v", i+1, attempts, endpoint, err)

		if i == attempts-1 {
			break
		}

		// exponential backoff with a small random jitter (+-10%)
		jitter := time.Duration(float64(backoff) * (0.9 + 0.2*rand.Float64()))
		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			return nil, fmt.Errorf("dial %s: %w (last error: %v)", endpoint, ctx.Err(), lastErr)
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", endpoint, attempts, lastErr)
}

func dialOnce(ctx context.Context, connector IClientConnector, endpoint string, timeout time.Duration) (net.Conn, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return connector.Connect(ctx, endpoint)
}
