package service

import "context"

// ActorContext resolves the operator recorded on history events.
type ActorContext interface {
	CurrentActorID(ctx context.Context) string
}

// StaticActor always reports the same operator.
type StaticActor string

func (a StaticActor) CurrentActorID(context.Context) string { return string(a) }

type actorKey struct{}

// WithActor returns a copy of ctx carrying the operator id. Transports call
// it with the authenticated caller.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFrom returns the operator id attached by WithActor, or "".
func ActorFrom(ctx context.Context) string {
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}

// ContextActor reads the operator from the context and falls back to
// Fallback when none is set.
type ContextActor struct {
	Fallback string
}

func (a ContextActor) CurrentActorID(ctx context.Context) string {
	if id := ActorFrom(ctx); id != "" {
		return id
	}
	return a.Fallback
}
