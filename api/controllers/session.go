package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/loomline/designvault/api/middleware"
	"github.com/loomline/designvault/api/responses"
	"github.com/loomline/designvault/pkg/errors"
	"github.com/loomline/designvault/pkg/logger"
)

type sessionRevoker interface {
	Revoke(ctx context.Context, accessID string, expiresAt time.Time) error
}

// SessionLogout puts the presented access token on the deny list until it
// would have expired anyway.
func SessionLogout(manager sessionRevoker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if manager == nil {
			responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeInternal, "session manager unavailable"))
			return
		}

		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil || claims.ID == "" {
			responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeUnauthorized, "missing session id"))
			return
		}

		var expiresAt time.Time
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
		if err := manager.Revoke(r.Context(), claims.ID, expiresAt); err != nil {
			responses.WriteError(r.Context(), logg, w, errors.Wrap(errors.CodeDependency, err, "revoke session"))
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}
