// Package requestid tags each API request with a stable ID for log
// correlation across the session, planner, and repository layers.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header carrying the request ID.
const Header = "X-Request-ID"

type ctxKey struct{}

// Attach stores id on ctx, minting a fresh UUID when id is empty, and
// returns the enriched context together with the ID in effect.
func Attach(ctx context.Context, id string) (context.Context, string) {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, ctxKey{}, id), id
}

// FromContext returns the request ID on ctx, or "" when none was attached.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
