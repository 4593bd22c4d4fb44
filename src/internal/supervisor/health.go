package supervisor

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/devstack-cli/devstack/src/internal/ports"
)

const (
	gatewayCheckInitialInterval = 100 * time.Millisecond
	gatewayCheckMaxInterval     = 2 * time.Second
	gatewayCheckTimeout         = 15 * time.Second
	backoffMultiplier           = 2.0
)

// waitForGateway blocks until the gateway accepts connections on its port,
// retrying with exponential backoff. A gateway that never comes up within
// the timeout is reported as a start failure rather than a silent 502 later.
func waitForGateway(port int) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = gatewayCheckInitialInterval
	b.MaxInterval = gatewayCheckMaxInterval
	b.MaxElapsedTime = gatewayCheckTimeout
	b.Multiplier = backoffMultiplier

	addr := net.JoinHostPort(ports.DefaultHost, strconv.Itoa(port))
	operation := func() error {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			return fmt.Errorf("gateway not accepting connections on %s: %w", addr, err)
		}
		conn.Close()
		return nil
	}

	return backoff.Retry(operation, b)
}
