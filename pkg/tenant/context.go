// Package tenant carries the single organization_id scope column through
// request context, per spec.md's Non-goal of "multi-tenant isolation
// beyond a single organization_id scope column" — no schema-per-tenant,
// no RLS session variables, just a plain scoping value every repository
// query filters on.
package tenant

import (
	"context"
	"errors"
)

type contextKey struct{}

// ErrNoOrganizationInContext is returned when organization scope is missing.
var ErrNoOrganizationInContext = errors.New("no organization in context")

// WithOrganizationID attaches the organization scope to ctx.
func WithOrganizationID(ctx context.Context, organizationID string) context.Context {
	return context.WithValue(ctx, contextKey{}, organizationID)
}

// OrganizationID extracts the organization scope from ctx.
func OrganizationID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(contextKey{}).(string)
	if !ok || id == "" {
		return "", ErrNoOrganizationInContext
	}
	return id, nil
}

// MustOrganizationID extracts the organization scope and panics if absent.
// Use only where a missing scope is a programming error (e.g. after the
// caller has already checked OrganizationID).
func MustOrganizationID(ctx context.Context) string {
	id, err := OrganizationID(ctx)
	if err != nil {
		panic("organization ID not found in context")
	}
	return id
}
