package secondary

import "context"

// IdentityResolver defines the secondary port for resolving actor identities.
// Authentication happens elsewhere; this only maps an authenticated id to a role.
type IdentityResolver interface {
	// ResolveActor returns the actor's role and display name, or *issue.NotFoundError.
	ResolveActor(ctx context.Context, actorID string) (*ActorRecord, error)
}

// ActorRecord is a resolved identity.
type ActorRecord struct {
	ID          string
	Role        string // customer, supplier, admin
	DisplayName string
}
