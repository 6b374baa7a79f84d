package authz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/mesauthz/pkg/observability"
	"github.com/platinummonkey/mesauthz/pkg/rbac"
	"github.com/platinummonkey/mesauthz/pkg/snapshot"
)

const (
	tracerName = "github.com/platinummonkey/mesauthz/pkg/authz"

	defaultCacheSize = 1024
	defaultCacheTTL  = 5 * time.Minute
)

var (
	// ErrForbidden is returned when the user lacks the required capability
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated is returned when no user id is supplied
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Decision is the outcome of a Check
type Decision struct {
	Allowed      bool      `json:"allowed"`
	Reason       string    `json:"reason,omitempty"`
	MatchedRoles []string  `json:"matchedRoles,omitempty"`
	CheckedAt    time.Time `json:"checkedAt"`
}

// RoleSummary is the role view returned in a Profile
type RoleSummary struct {
	Code      string         `json:"code"`
	Name      string         `json:"name"`
	DataScope rbac.DataScope `json:"dataScope"`
}

// Profile is what a client needs to render navigation for a user
type Profile struct {
	UserID      string        `json:"userId"`
	Roles       []RoleSummary `json:"roles"`
	Permissions []string      `json:"permissions"`
	LineIDs     []string      `json:"lineIds"`
	StationIDs  []string      `json:"stationIds"`
	HomePage    string        `json:"homePage"`
}

type cached struct {
	ability *rbac.Ability
	record  snapshot.Record
}

// Authorizer builds and caches abilities from a snapshot source and answers
// authorization questions for the service boundary.
//
// Cache entries are keyed by user id, snapshot version and cache generation.
// A Bump on the version store makes every instance sharing it rebuild on the
// next call; a Purge moves the generation so loads still in flight when it
// ran cannot repopulate the cache.
type Authorizer struct {
	source     snapshot.Source
	versions   snapshot.VersionStore
	cache      *lru.LRU[string, *cached]
	generation atomic.Uint64
	log      *logrus.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	now      func() time.Time

	cacheSize int
	cacheTTL  time.Duration
}

// Option configures an Authorizer
type Option func(*Authorizer)

// WithLogger sets the logger
func WithLogger(log *logrus.Logger) Option {
	return func(a *Authorizer) { a.log = log }
}

// WithMetrics records decisions, loads and cache activity
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Authorizer) { a.metrics = m }
}

// WithVersionStore sets the snapshot version store
func WithVersionStore(v snapshot.VersionStore) Option {
	return func(a *Authorizer) { a.versions = v }
}

// WithCache sizes the ability cache
func WithCache(size int, ttl time.Duration) Option {
	return func(a *Authorizer) {
		a.cacheSize = size
		a.cacheTTL = ttl
	}
}

// WithTracerProvider sets the provider spans are created from
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Authorizer) { a.tracer = tp.Tracer(tracerName) }
}

// WithClock overrides the decision timestamp source
func WithClock(now func() time.Time) Option {
	return func(a *Authorizer) { a.now = now }
}

// NewAuthorizer creates an Authorizer. It fails when the compiled-in
// permission catalog is inconsistent.
func NewAuthorizer(source snapshot.Source, opts ...Option) (*Authorizer, error) {
	if source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}
	if err := rbac.ValidateCatalog(); err != nil {
		return nil, err
	}

	a := &Authorizer{
		source:    source,
		now:       time.Now,
		cacheSize: defaultCacheSize,
		cacheTTL:  defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.log == nil {
		a.log = logrus.New()
	}
	if a.versions == nil {
		a.versions = snapshot.NewMemoryVersionStore()
	}
	if a.tracer == nil {
		a.tracer = otel.Tracer(tracerName)
	}
	if a.cacheSize <= 0 {
		a.cacheSize = defaultCacheSize
	}
	a.cache = lru.NewLRU[string, *cached](a.cacheSize, nil, a.cacheTTL)

	return a, nil
}

// Ability returns the ability and snapshot for userID
func (a *Authorizer) Ability(ctx context.Context, userID string) (*rbac.Ability, rbac.User, error) {
	ctx, span := a.startSpan(ctx, "authz.Ability", userID)
	defer span.End()

	c, err := a.load(ctx, userID)
	if err != nil {
		recordError(span, err)
		return nil, rbac.User{}, err
	}
	return c.ability, c.record.User, nil
}

// Check decides whether userID may perform action on subject for an
// instance carrying attrs
func (a *Authorizer) Check(ctx context.Context, userID string, action rbac.Action, subject rbac.Subject, attrs rbac.Attributes) (Decision, error) {
	start := time.Now()
	ctx, span := a.startSpan(ctx, "authz.Check", userID,
		attribute.String("authz.action", string(action)),
		attribute.String("authz.subject", string(subject)),
	)
	defer span.End()

	c, err := a.load(ctx, userID)
	if err != nil {
		recordError(span, err)
		a.observeDecision("check", "error", start)
		return Decision{}, err
	}

	d := Decision{
		Allowed:   c.ability.IsAllowed(action, subject, attrs),
		CheckedAt: a.now(),
	}
	switch {
	case d.Allowed:
		d.MatchedRoles = c.ability.MatchingRoles(action, subject, attrs)
		d.Reason = "granted by " + strings.Join(d.MatchedRoles, ", ")
	case c.ability.CanAny(action, subject):
		d.Reason = "instance is outside the user's data scope"
	default:
		d.Reason = fmt.Sprintf("no role grants %s on %s", action, subject)
	}

	span.SetAttributes(attribute.Bool("authz.allowed", d.Allowed))
	a.observeDecision("check", result(d.Allowed), start)
	return d, nil
}

// Require returns nil when userID holds at least one of permissions and
// ErrForbidden otherwise. An empty list is never satisfied.
func (a *Authorizer) Require(ctx context.Context, userID string, permissions ...string) error {
	start := time.Now()
	ctx, span := a.startSpan(ctx, "authz.Require", userID,
		attribute.StringSlice("authz.permissions", permissions),
	)
	defer span.End()

	c, err := a.load(ctx, userID)
	if err != nil {
		recordError(span, err)
		a.observeDecision("require", "error", start)
		return err
	}

	if !rbac.HasAnyPermission(c.record.User, permissions...) {
		a.observeDecision("require", "denied", start)
		return fmt.Errorf("%w: requires one of [%s]", ErrForbidden, strings.Join(permissions, ", "))
	}
	a.observeDecision("require", "allowed", start)
	return nil
}

// Scope returns the row visibility of userID for permission. Unlike
// rbac.ResolveScope it returns ErrForbidden when no role grants permission,
// so a caller cannot mistake "not held" for "held with no bindings".
func (a *Authorizer) Scope(ctx context.Context, userID, permission string) (rbac.DataScopeDescriptor, error) {
	start := time.Now()
	ctx, span := a.startSpan(ctx, "authz.Scope", userID,
		attribute.String("authz.permission", permission),
	)
	defer span.End()

	c, err := a.load(ctx, userID)
	if err != nil {
		recordError(span, err)
		a.observeDecision("scope", "error", start)
		return rbac.DataScopeDescriptor{}, err
	}

	d, held := c.ability.Scope(permission)
	if !held {
		a.observeDecision("scope", "denied", start)
		return rbac.DataScopeDescriptor{}, fmt.Errorf("%w: %s not granted", ErrForbidden, permission)
	}
	span.SetAttributes(attribute.String("authz.scope", string(d.Scope)))
	a.observeDecision("scope", "allowed", start)
	return d, nil
}

// Profile returns roles, permissions and the landing page for userID.
// An empty preference falls back to the stored one.
func (a *Authorizer) Profile(ctx context.Context, userID, preference string) (Profile, error) {
	ctx, span := a.startSpan(ctx, "authz.Profile", userID)
	defer span.End()

	c, err := a.load(ctx, userID)
	if err != nil {
		recordError(span, err)
		return Profile{}, err
	}

	user := c.record.User
	if preference == "" {
		preference = c.record.HomePage
	}

	p := Profile{
		UserID:      user.ID,
		Roles:       make([]RoleSummary, 0, len(user.Roles)),
		Permissions: rbac.AllPermissions(user),
		LineIDs:     nonNil(user.LineIDs),
		StationIDs:  nonNil(user.StationIDs),
		HomePage:    rbac.ResolveHomePage(preference, user.RoleCodes()),
	}
	for _, r := range user.Roles {
		p.Roles = append(p.Roles, RoleSummary{Code: r.Code, Name: r.Name, DataScope: r.DataScope.Normalize()})
	}
	return p, nil
}

// Invalidate bumps the user's snapshot version and drops every cached
// ability for them. Call it after any role or binding change.
func (a *Authorizer) Invalidate(ctx context.Context, userID string) error {
	ctx, span := a.startSpan(ctx, "authz.Invalidate", userID)
	defer span.End()

	a.evict(userID)
	if a.metrics != nil {
		a.metrics.CacheInvalidationsTotal.Inc()
	}

	version, err := a.versions.Bump(ctx, userID)
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("bump snapshot version: %w", err)
	}

	a.logger(ctx).WithFields(logrus.Fields{
		"invalidated_user": userID,
		"version":          version,
	}).Debug("ability cache invalidated")
	return nil
}

// Purge drops every cached ability. Call it after the source swaps to a new
// generation of data.
func (a *Authorizer) Purge() {
	a.generation.Add(1)
	a.cache.Purge()
	if a.metrics != nil {
		a.metrics.CacheInvalidationsTotal.Inc()
	}
	a.log.Debug("ability cache purged")
}

func (a *Authorizer) load(ctx context.Context, userID string) (*cached, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	generation := a.generation.Load()
	version, err := a.versions.Version(ctx, userID)
	if err != nil {
		a.logger(ctx).WithError(err).Warn("snapshot version unavailable, loading uncached")
		return a.build(ctx, userID)
	}

	key := cacheKey(userID, version, generation)
	if c, ok := a.cache.Get(key); ok {
		if a.metrics != nil {
			a.metrics.CacheHitsTotal.Inc()
		}
		return c, nil
	}
	if a.metrics != nil {
		a.metrics.CacheMissesTotal.Inc()
	}

	c, err := a.build(ctx, userID)
	if err != nil {
		return nil, err
	}
	a.cache.Add(key, c)
	return c, nil
}

func (a *Authorizer) build(ctx context.Context, userID string) (*cached, error) {
	start := time.Now()
	rec, err := a.source.Load(ctx, userID)
	if a.metrics != nil {
		a.metrics.SnapshotLoadDuration.Observe(time.Since(start).Seconds())
		a.metrics.SnapshotLoadsTotal.WithLabelValues(loadResult(err)).Inc()
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot for %s: %w", userID, err)
	}

	a.reportUnknown(ctx, rec.User)
	return &cached{ability: rbac.Build(rec.User), record: rec}, nil
}

// reportUnknown surfaces granted permissions that are not catalog values.
// Some still parse to a known subject and action, others hit a fallback arm.
func (a *Authorizer) reportUnknown(ctx context.Context, user rbac.User) {
	for _, role := range user.Roles {
		for _, p := range role.Permissions {
			if rbac.IsCatalogPermission(p) {
				continue
			}
			_, _, parsed := rbac.Lookup(p)
			a.logger(ctx).WithFields(logrus.Fields{
				"snapshot_user": user.ID,
				"role":          role.Code,
				"permission":    p,
				"fallback":      !parsed,
			}).Warn("role carries a permission outside the catalog")
			if a.metrics != nil {
				a.metrics.UnknownPermissionsTotal.WithLabelValues(role.Code).Inc()
			}
		}
	}
}

func (a *Authorizer) evict(userID string) {
	for _, key := range a.cache.Keys() {
		if keyUser(key) == userID {
			a.cache.Remove(key)
		}
	}
}

// logger writes through the Authorizer's logger with the request fields of ctx
func (a *Authorizer) logger(ctx context.Context) *logrus.Entry {
	return observability.FromContext(observability.WithLogger(ctx, a.log))
}

func (a *Authorizer) startSpan(ctx context.Context, name, userID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("user.id", userID))
	return a.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (a *Authorizer) observeDecision(operation, outcome string, start time.Time) {
	if a.metrics == nil {
		return
	}
	a.metrics.DecisionsTotal.WithLabelValues(operation, outcome).Inc()
	a.metrics.DecisionDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func cacheKey(userID string, version int64, generation uint64) string {
	return userID + "@" + strconv.FormatInt(version, 10) + "." + strconv.FormatUint(generation, 10)
}

// keyUser strips the version suffix; user ids may themselves contain '@'
func keyUser(key string) string {
	if i := strings.LastIndexByte(key, '@'); i >= 0 {
		return key[:i]
	}
	return key
}

func result(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func loadResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, snapshot.ErrUserNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func nonNil(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
