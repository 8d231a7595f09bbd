package httputil

import (
	"context"
	"net/http"

	"librarian/internal/domain/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	identityKey contextKey = "identity"
)

// WithIdentity adds the caller identity to the request context
func WithIdentity(r *http.Request, identity models.Identity) *http.Request {
	ctx := context.WithValue(r.Context(), identityKey, identity)
	return r.WithContext(ctx)
}

// GetIdentity retrieves the caller identity, anonymous if none was attached
func GetIdentity(r *http.Request) models.Identity {
	identity, ok := r.Context().Value(identityKey).(models.Identity)
	if !ok {
		return models.Anonymous()
	}
	return identity
}
