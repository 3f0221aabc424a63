// Package gateway defines the interface for network entry points.
package gateway

import "context"

// Gateway serves requests until stopped.
type Gateway interface {
	// Start serves until the gateway fails or ctx is canceled. Returns an
	// error only on failure.
	Start(ctx context.Context) error

	// Stop shuts down gracefully. In-flight requests drain until the
	// context deadline.
	Stop(ctx context.Context) error
}
