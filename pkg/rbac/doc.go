// Package rbac is the authorization engine for the MES backend.
//
// # Overview
//
// Given a snapshot of a user's roles and line/station bindings the package
// answers two questions:
//
//  1. Point checks: may this user perform an action on one entity instance?
//  2. Data scope: which rows may a listing query return for one permission?
//
// Everything here is pure and synchronous. Nothing performs I/O, logs, or
// holds mutable package state, so every function is safe for concurrent use.
//
// # Permissions
//
// A permission is a "domain:action" string drawn from the closed catalog in
// permissions.go. Parse maps it onto a (Subject, Action) pair:
//
//	subject, action := rbac.Parse("loading:verify")
//	// rbac.SubjectLoading, rbac.ActionVerify
//
// Parse is total. An unknown domain falls back to SubjectSystem and an
// unknown action code to ActionRead. ValidateCatalog asserts at startup that
// no catalog permission relies on either fallback, so a permission added
// without a mapping fails loudly instead of degrading silently.
//
// # Roles and Data Scope
//
// A Role bundles permissions with exactly one DataScope:
//
//	ALL                - every row
//	ASSIGNED_LINES     - rows whose line is bound to the user
//	ASSIGNED_STATIONS  - rows whose station is bound to the user
//
// Presets (PresetRoles) and custom roles have the same shape and are treated
// identically.
//
// # Abilities
//
// Build flattens the user's roles into grants and turns each grant into an
// allow rule conditioned by the role's scope:
//
//	ability := rbac.Build(user)
//	ok := ability.IsAllowed(rbac.ActionVerify, rbac.SubjectLoading, rbac.Attributes{LineID: "LINE-A"})
//
// Rules combine with OR semantics. Granting is additive; no role can take
// away what another role grants. An ability is immutable once built and
// copies the id sets it needs.
//
// # Row Filters
//
// ResolveScope picks the widest scope among the roles that grant exactly the
// requested permission:
//
//	d := rbac.ResolveScope(user, "wo:read")
//	switch d.Scope {
//	case rbac.ScopeAll:
//		// no filter
//	case rbac.ScopeAssignedLines:
//		// WHERE line_id IN d.LineIDs
//	case rbac.ScopeAssignedStations:
//		// WHERE station_id IN d.StationIDs
//	}
//
// A user without the permission gets {ASSIGNED_STATIONS, []}. That is
// indistinguishable from holding the permission with no stations, so check
// HasPermission (or use ResolveScopeChecked) before trusting the descriptor.
//
// Ability.Scope and ResolveScope read the same grant list and always agree.
//
// # Home Pages
//
// ResolveHomePage returns the user's explicit preference when set, otherwise
// the home page of the highest-priority role the user holds, otherwise "/".
package rbac
