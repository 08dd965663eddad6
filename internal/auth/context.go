package auth

import "context"

type actorContextKey struct{}
type tokenContextKey struct{}

// ContextWithActor attaches the current actor to the context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	if actor == nil {
		return ctx
	}
	cp := *actor
	return context.WithValue(ctx, actorContextKey{}, &cp)
}

// ActorFromContext extracts the current actor from the context.
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(actorContextKey{}).(*Actor)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ContextWithToken stores the raw bearer token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
