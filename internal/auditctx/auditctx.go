// Package auditctx carries the authenticated caller through request contexts.
package auditctx

import "context"

// Actor identifies who issued a request and from where.
type Actor struct {
	UserID    string
	IPAddress string
	UserAgent string
}

type actorContextKey struct{}

// WithActor returns a context carrying actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// FromContext extracts the actor stored by WithActor.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// ActorID returns the caller's user id, or "" for anonymous requests.
func ActorID(ctx context.Context) string {
	actor, _ := FromContext(ctx)
	return actor.UserID
}
