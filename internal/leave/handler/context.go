package handler

import (
	"net/http"

	"github.com/leaveflow/lms-core/pkg/actor"
	"github.com/leaveflow/lms-core/pkg/httputil"
	"github.com/leaveflow/lms-core/pkg/tenant"
)

// actorFromRequest builds the AuditContext every mutating engine call is
// attributed to. There is no auth layer in front of this service yet (see
// SPEC_FULL.md's Non-goals), so identity travels as plain headers set by
// whatever sits in front of it — X-User-ID for the acting user, the
// request ID httputil.RequestID already stamped onto the context.
func actorFromRequest(r *http.Request) actor.Context {
	orgID, _ := tenant.OrganizationID(r.Context())
	return actor.Context{
		ActorID:        r.Header.Get("X-User-ID"),
		ActorType:      actor.TypeUser,
		ActorIP:        r.RemoteAddr,
		ActorUserAgent: r.Header.Get("User-Agent"),
		OrganizationID: orgID,
		RequestID:      httputil.GetRequestID(r.Context()),
	}
}

// requireActorID extracts X-User-ID, failing the request if absent — every
// mutating endpoint below needs a concrete actor to attribute its audit
// trail and workflow actions to.
func requireActorID(r *http.Request) (string, bool) {
	id := r.Header.Get("X-User-ID")
	return id, id != ""
}
