// Package session exposes the identity of the viewer a feed cache belongs to.
package session

import "context"

// Identity is the current viewer as the feed layer sees it
type Identity struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Provider reports the current viewer. It is read synchronously and never mutated by callers.
type Provider interface {
	Current() (Identity, bool)
}

type static struct {
	identity Identity
	ok       bool
}

func (s static) Current() (Identity, bool) {
	return s.identity, s.ok
}

// Of returns a provider that always reports id. An empty id is treated as anonymous.
func Of(id Identity) Provider {
	return static{identity: id, ok: id.ID != ""}
}

// Anonymous returns a provider with no viewer
func Anonymous() Provider {
	return static{}
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func() (Identity, bool)

func (f ProviderFunc) Current() (Identity, bool) {
	return f()
}

type contextKey struct{}

// WithIdentity stores id on ctx for request-scoped lookups
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by WithIdentity
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok && id.ID != ""
}
