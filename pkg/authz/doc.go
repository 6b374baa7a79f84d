// Package authz is the service-side face of the capability engine.
//
// An Authorizer loads user snapshots from a snapshot.Source, builds an
// rbac.Ability per user and caches it under the user's snapshot version.
// Guard wraps handlers with permission and ability checks, and Handlers
// exposes the catalog, presets and per-user views over HTTP.
//
//	a, err := authz.NewAuthorizer(source,
//		authz.WithLogger(log),
//		authz.WithMetrics(metrics),
//		authz.WithVersionStore(versions),
//	)
//	guard := authz.NewGuard(a)
//
//	router.Handle("/runs/{line}", guard.RequireAbility(
//		rbac.ActionAuthorize, rbac.SubjectRun,
//		authz.RouteAttributes("line", ""),
//	)(runHandler))
//
// After any change to a user's roles or bindings call Invalidate; the next
// request rebuilds from a fresh snapshot.
package authz
