package authz

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/mesauthz/pkg/contextkeys"
	"github.com/platinummonkey/mesauthz/pkg/httputil"
	"github.com/platinummonkey/mesauthz/pkg/rbac"
)

// Handlers serves read-only authorization endpoints
type Handlers struct {
	authz *Authorizer
}

// NewHandlers creates new authorization handlers
func NewHandlers(a *Authorizer) *Handlers {
	return &Handlers{authz: a}
}

// RegisterRoutes registers all authorization routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Static catalogs
	router.HandleFunc("/authz/catalog", h.GetCatalog).Methods("GET")
	router.HandleFunc("/authz/presets", h.GetPresets).Methods("GET")

	// Per-user views
	router.HandleFunc("/authz/me", h.GetProfile).Methods("GET")
	router.HandleFunc("/authz/check", h.CheckAbility).Methods("POST")
	router.HandleFunc("/authz/scope", h.GetScope).Methods("GET")
}

// CatalogResponse lists the permission groups
type CatalogResponse struct {
	Groups []rbac.PermissionGroup `json:"groups"`
}

// PresetsResponse lists preset roles and home routing
type PresetsResponse struct {
	Roles     []rbac.PresetRole `json:"roles"`
	Priority  []string          `json:"priority"`
	HomePages map[string]string `json:"homePages"`
}

// CheckRequest asks whether the caller may act on one instance
type CheckRequest struct {
	Action    string `json:"action"`
	Subject   string `json:"subject"`
	LineID    string `json:"lineId,omitempty"`
	StationID string `json:"stationId,omitempty"`
}

// ScopeResponse is the data scope of the caller for one permission
type ScopeResponse struct {
	Permission string                   `json:"permission"`
	Scope      rbac.DataScopeDescriptor `json:"dataScope"`
}

// GetCatalog returns the grouped permission catalog
func (h *Handlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, CatalogResponse{Groups: rbac.PermissionGroups()})
}

// GetPresets returns the preset roles with their landing routes
func (h *Handlers) GetPresets(w http.ResponseWriter, r *http.Request) {
	presets := rbac.PresetRoles()
	homes := make(map[string]string, len(presets))
	for _, p := range presets {
		if page, ok := rbac.HomePageFor(p.Code); ok {
			homes[p.Code] = page
		}
	}

	httputil.WriteJSON(w, http.StatusOK, PresetsResponse{
		Roles:     presets,
		Priority:  rbac.RolePriority(),
		HomePages: homes,
	})
}

// GetProfile returns the caller's roles, permissions and home page.
// ?home= overrides the stored preference.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	profile, err := h.authz.Profile(r.Context(), userID, httputil.ParseQueryString(r, "home", ""))
	if err != nil {
		writeAuthzError(w, r, err, nil)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// CheckAbility evaluates one action on one subject instance for the caller
func (h *Handlers) CheckAbility(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Action == "" || req.Subject == "" {
		httputil.WriteBadRequest(w, "action and subject are required")
		return
	}

	userID := contextkeys.GetUserID(r.Context())
	decision, err := h.authz.Check(r.Context(), userID,
		rbac.Action(req.Action),
		rbac.Subject(req.Subject),
		rbac.Attributes{LineID: req.LineID, StationID: req.StationID},
	)
	if err != nil {
		writeAuthzError(w, r, err, nil)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, decision)
}

// GetScope returns the caller's data scope for ?permission=, or 403 when
// the permission is not held
func (h *Handlers) GetScope(w http.ResponseWriter, r *http.Request) {
	permission, ok := httputil.RequireQueryString(w, r, "permission")
	if !ok {
		return
	}

	userID := contextkeys.GetUserID(r.Context())
	scope, err := h.authz.Scope(r.Context(), userID, permission)
	if err != nil {
		writeAuthzError(w, r, err, map[string]string{"required": permission})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ScopeResponse{Permission: permission, Scope: scope})
}
