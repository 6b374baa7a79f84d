// Package httputil provides the small set of HTTP helpers shared by the
// authorization handlers and the mesauthzd server.
//
// # Responses
//
//	httputil.WriteJSON(w, http.StatusOK, decision)
//	httputil.WriteForbidden(w, "missing permission", map[string]string{"required": "wo:release"})
//
// Every error body has the shape {"error": "...", "code": "...", "details": {...}}.
//
// # Requests
//
//	var req CheckRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(log),
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil
