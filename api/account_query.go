package api

import (
	"context"
	"time"
)

// AccountQueryTimeout bounds one users collection round trip made by the
// account handlers, and index setup at startup.
const AccountQueryTimeout = 10 * time.Second

// AccountQueryContext bounds ctx for a single account query. A request that is
// already closer to its own deadline keeps the earlier one.
func AccountQueryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, AccountQueryTimeout)
}
