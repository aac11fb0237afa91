package orgcontext

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Context is the verified tenant context of a request. It is only built by
// Resolver.Require and is passed explicitly to handlers and services.
type Context struct {
	UserID      snowflake.ID
	ActiveOrgID snowflake.ID
	Role        string
}

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrOrgRequired     = errors.New("org_required")
	ErrForbidden       = errors.New("forbidden")
)

type contextKey struct{}

// WithContext stores oc on ctx.
func WithContext(ctx context.Context, oc Context) context.Context {
	return context.WithValue(ctx, contextKey{}, oc)
}

// FromContext returns the Context stored by WithContext.
func FromContext(ctx context.Context) (Context, bool) {
	if ctx == nil {
		return Context{}, false
	}
	oc, ok := ctx.Value(contextKey{}).(Context)
	return oc, ok
}

// OrgIDFromContext returns the active org id carried on ctx, if any.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	oc, ok := FromContext(ctx)
	if !ok || oc.ActiveOrgID == 0 {
		return 0, false
	}
	return oc.ActiveOrgID, true
}
