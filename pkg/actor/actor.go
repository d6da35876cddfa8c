// Package actor provides the provenance bundle threaded through every
// mutating engine operation — the same pattern the teacher uses for
// cross-service actor identification and audit attribution, generalized
// into the AuditContext inbound contract (spec §6).
package actor

import "context"

// Type is who (or what) performed an action.
type Type string

const (
	TypeUser      Type = "user"
	TypeSystem    Type = "system"
	TypeScheduler Type = "scheduler"
)

// Context is the AuditContext: the identity/provenance bundle a controller
// builds once per request and passes explicitly into every mutating engine
// call. No engine reads an ambient global actor — it is always an explicit
// argument, matching the teacher's context-threading style.
type Context struct {
	ActorID        string
	ActorType      Type
	ActorIP        string
	ActorUserAgent string
	OrganizationID string
	RequestID      string
	SessionID      string
	Extra          map[string]string
}

// System returns an AuditContext for background/scheduler-initiated work,
// scoped to the given organization.
func System(organizationID string) Context {
	return Context{ActorType: TypeSystem, OrganizationID: organizationID}
}

// IsSystem reports whether the context represents a non-human actor.
func (c Context) IsSystem() bool {
	return c.ActorType == TypeSystem || c.ActorType == TypeScheduler
}

type contextKey struct{}

// WithContext attaches an AuditContext to ctx.
func WithContext(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext retrieves the AuditContext previously attached with
// WithContext. A system actor with no organization is returned if none is
// present, so callers never need a nil check.
func FromContext(ctx context.Context) Context {
	ac, ok := ctx.Value(contextKey{}).(Context)
	if !ok {
		return Context{ActorType: TypeSystem}
	}
	return ac
}
