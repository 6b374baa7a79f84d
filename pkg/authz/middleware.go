package authz

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/mesauthz/pkg/contextkeys"
	"github.com/platinummonkey/mesauthz/pkg/httputil"
	"github.com/platinummonkey/mesauthz/pkg/observability"
	"github.com/platinummonkey/mesauthz/pkg/rbac"
	"github.com/platinummonkey/mesauthz/pkg/snapshot"
)

// TrustedHeader copies the user id set by an authenticating proxy into the
// request context. Requests without the header pass through anonymous.
func TrustedHeader(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID := strings.TrimSpace(r.Header.Get(header)); userID != "" {
				r = r.WithContext(contextkeys.WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Guard provides authorization middleware backed by an Authorizer
type Guard struct {
	authz *Authorizer
}

// NewGuard creates a new guard
func NewGuard(a *Authorizer) *Guard {
	return &Guard{authz: a}
}

// RequirePermission allows the request when the user holds any of permissions
func (g *Guard) RequirePermission(permissions ...string) func(http.Handler) http.Handler {
	required := strings.Join(permissions, ",")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := contextkeys.GetUserID(r.Context())
			if err := g.authz.Require(r.Context(), userID, permissions...); err != nil {
				writeAuthzError(w, r, err, map[string]string{"required": required})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AttributesFunc extracts instance attributes from a request
type AttributesFunc func(r *http.Request) rbac.Attributes

// RouteAttributes reads line and station ids from mux path variables.
// Either name may be empty.
func RouteAttributes(lineVar, stationVar string) AttributesFunc {
	return func(r *http.Request) rbac.Attributes {
		vars := mux.Vars(r)
		var attrs rbac.Attributes
		if lineVar != "" {
			attrs.LineID = vars[lineVar]
		}
		if stationVar != "" {
			attrs.StationID = vars[stationVar]
		}
		return attrs
	}
}

// RequireAbility allows the request when the user's ability permits action
// on subject for the instance described by attrs. A nil attrs checks an
// instance with no attributes, which only unconditioned rules satisfy.
func (g *Guard) RequireAbility(action rbac.Action, subject rbac.Subject, attrs AttributesFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var instance rbac.Attributes
			if attrs != nil {
				instance = attrs(r)
			}

			userID := contextkeys.GetUserID(r.Context())
			decision, err := g.authz.Check(r.Context(), userID, action, subject, instance)
			if err != nil {
				writeAuthzError(w, r, err, nil)
				return
			}
			if !decision.Allowed {
				httputil.WriteForbidden(w, decision.Reason, map[string]string{
					"action":  string(action),
					"subject": string(subject),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoadAbility puts the user's ability into the request context for
// handlers that filter rows themselves
func (g *Guard) LoadAbility(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ability, _, err := g.authz.Ability(r.Context(), contextkeys.GetUserID(r.Context()))
		if err != nil {
			writeAuthzError(w, r, err, nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(contextkeys.WithAbility(r.Context(), ability)))
	})
}

// writeAuthzError maps Authorizer errors onto HTTP responses. Unknown users
// are refused rather than reported, so ids cannot be probed.
func writeAuthzError(w http.ResponseWriter, r *http.Request, err error, details map[string]string) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		httputil.WriteUnauthorized(w, "authentication required")
	case errors.Is(err, ErrForbidden), errors.Is(err, snapshot.ErrUserNotFound):
		httputil.WriteForbidden(w, "insufficient permissions", details)
	default:
		observability.FromContext(r.Context()).WithError(err).Error("authorization check failed")
		httputil.WriteInternalError(w)
	}
}
