// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the service must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/mesauthz/pkg/contextkeys"
//	ctx = contextkeys.WithUserID(ctx, userID)
//	userID := contextkeys.GetUserID(ctx)
package contextkeys

import (
	"context"
	"time"

	"github.com/platinummonkey/mesauthz/pkg/rbac"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, error responses
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated user ID string
	// Set by: authz.TrustedHeader (identity asserted by an upstream proxy)
	// Used by: Logger, authz.Guard, /authz handlers
	// Type: string
	UserIDKey Key = "user_id"

	// LoggerKey contains *logrus.Logger
	// Set by: cmd/mesauthzd router setup
	// Used by: observability.FromContext
	// Type: *logrus.Logger
	LoggerKey Key = "logger"

	// AbilityKey contains the ability built for the request's user
	// Set by: authz.Guard.LoadAbility
	// Used by: Downstream handlers doing point checks on loaded rows
	// Type: *rbac.Ability
	AbilityKey Key = "ability"

	// RequestStartTimeKey contains request start timestamp
	// Set by: httputil.LoggingMiddleware
	// Used by: Duration calculation in access logs
	// Type: time.Time
	RequestStartTimeKey Key = "request_start_time"
)

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithAbility adds a built ability to the context
func WithAbility(ctx context.Context, ability *rbac.Ability) context.Context {
	return context.WithValue(ctx, AbilityKey, ability)
}

// WithRequestStartTime adds request start time to the context
func WithRequestStartTime(ctx context.Context, start time.Time) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, start)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetAbility retrieves the ability from context. A missing ability is nil,
// and a nil ability allows nothing.
func GetAbility(ctx context.Context) *rbac.Ability {
	if ability, ok := ctx.Value(AbilityKey).(*rbac.Ability); ok {
		return ability
	}
	return nil
}

// GetRequestStartTime retrieves request start time from context
func GetRequestStartTime(ctx context.Context) (time.Time, bool) {
	start, ok := ctx.Value(RequestStartTimeKey).(time.Time)
	return start, ok
}
