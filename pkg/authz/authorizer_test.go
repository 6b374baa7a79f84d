package authz

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/platinummonkey/mesauthz/pkg/observability"
	"github.com/platinummonkey/mesauthz/pkg/rbac"
	"github.com/platinummonkey/mesauthz/pkg/snapshot"
)

// fakeSource serves records from memory and counts loads per user
type fakeSource struct {
	mu      sync.Mutex
	records map[string]snapshot.Record
	loads   map[string]int
	err     error
}

func newFakeSource(recs ...snapshot.Record) *fakeSource {
	f := &fakeSource{
		records: make(map[string]snapshot.Record),
		loads:   make(map[string]int),
	}
	for _, rec := range recs {
		f.records[rec.User.ID] = rec
	}
	return f
}

func (f *fakeSource) Load(_ context.Context, userID string) (snapshot.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads[userID]++
	if f.err != nil {
		return snapshot.Record{}, f.err
	}
	rec, ok := f.records[userID]
	if !ok {
		return snapshot.Record{}, snapshot.ErrUserNotFound
	}
	return rec, nil
}

func (f *fakeSource) set(rec snapshot.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.User.ID] = rec
}

func (f *fakeSource) loadCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads[userID]
}

// pausingSource holds its first Load open after reading until release is
// closed
type pausingSource struct {
	snapshot.Source
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (p *pausingSource) Load(ctx context.Context, userID string) (snapshot.Record, error) {
	rec, err := p.Source.Load(ctx, userID)
	p.once.Do(func() {
		close(p.loaded)
		<-p.release
	})
	return rec, err
}

// failingVersions always errors
type failingVersions struct{}

func (failingVersions) Version(context.Context, string) (int64, error) {
	return 0, errors.New("redis: connection refused")
}

func (failingVersions) Bump(context.Context, string) (int64, error) {
	return 0, errors.New("redis: connection refused")
}

func preset(t *testing.T, code string) rbac.Role {
	t.Helper()
	p, ok := rbac.LookupPreset(code)
	require.True(t, ok, "preset %s", code)
	return p.Role
}

func leaderRecord(t *testing.T) snapshot.Record {
	return snapshot.Record{User: rbac.User{
		ID:      "lena",
		Roles:   []rbac.Role{preset(t, rbac.RoleLeader)},
		LineIDs: []string{"L1"},
	}}
}

func operatorRecord(t *testing.T) snapshot.Record {
	return snapshot.Record{User: rbac.User{
		ID:    "otto",
		Roles: []rbac.Role{preset(t, rbac.RoleOperator)},
	}}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

var fixedNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func newTestAuthorizer(t *testing.T, source snapshot.Source, opts ...Option) (*Authorizer, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	base := []Option{
		WithLogger(quietLogger()),
		WithMetrics(metrics),
		WithClock(func() time.Time { return fixedNow }),
	}
	a, err := NewAuthorizer(source, append(base, opts...)...)
	require.NoError(t, err)
	return a, metrics
}

func TestNewAuthorizer_RequiresSource(t *testing.T) {
	_, err := NewAuthorizer(nil)
	assert.Error(t, err)
}

func TestAuthorizer_Check(t *testing.T) {
	a, _ := newTestAuthorizer(t, newFakeSource(leaderRecord(t)))
	ctx := context.Background()

	tests := []struct {
		name        string
		action      rbac.Action
		subject     rbac.Subject
		attrs       rbac.Attributes
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "assigned line",
			action:      rbac.ActionAuthorize,
			subject:     rbac.SubjectRun,
			attrs:       rbac.Attributes{LineID: "L1"},
			wantAllowed: true,
			wantReason:  "granted by leader",
		},
		{
			name:       "other line",
			action:     rbac.ActionAuthorize,
			subject:    rbac.SubjectRun,
			attrs:      rbac.Attributes{LineID: "L2"},
			wantReason: "instance is outside the user's data scope",
		},
		{
			name:       "missing line attribute",
			action:     rbac.ActionAuthorize,
			subject:    rbac.SubjectRun,
			wantReason: "instance is outside the user's data scope",
		},
		{
			name:       "no rule at all",
			action:     rbac.ActionRelease,
			subject:    rbac.SubjectWorkOrder,
			attrs:      rbac.Attributes{LineID: "L1"},
			wantReason: "no role grants release on WorkOrder",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := a.Check(ctx, "lena", tt.action, tt.subject, tt.attrs)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAllowed, d.Allowed)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Equal(t, fixedNow, d.CheckedAt)
			if tt.wantAllowed {
				assert.Equal(t, []string{rbac.RoleLeader}, d.MatchedRoles)
			} else {
				assert.Empty(t, d.MatchedRoles)
			}
		})
	}
}

func TestAuthorizer_CachesUntilInvalidated(t *testing.T) {
	source := newFakeSource(leaderRecord(t))
	a, metrics := newTestAuthorizer(t, source)
	ctx := context.Background()
	onL1 := rbac.Attributes{LineID: "L1"}

	for i := 0; i < 3; i++ {
		d, err := a.Check(ctx, "lena", rbac.ActionAuthorize, rbac.SubjectRun, onL1)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	assert.Equal(t, 1, source.loadCount("lena"))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheMissesTotal))

	// Demote to operator; the cached ability still answers until invalidated
	demoted := leaderRecord(t)
	demoted.User.Roles = []rbac.Role{preset(t, rbac.RoleOperator)}
	source.set(demoted)

	d, err := a.Check(ctx, "lena", rbac.ActionAuthorize, rbac.SubjectRun, onL1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	require.NoError(t, a.Invalidate(ctx, "lena"))

	d, err = a.Check(ctx, "lena", rbac.ActionAuthorize, rbac.SubjectRun, onL1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 2, source.loadCount("lena"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheInvalidationsTotal))
}

func TestAuthorizer_InvalidateIsPerUser(t *testing.T) {
	source := newFakeSource(leaderRecord(t), operatorRecord(t))
	a, _ := newTestAuthorizer(t, source)
	ctx := context.Background()

	_, _, err := a.Ability(ctx, "lena")
	require.NoError(t, err)
	_, _, err = a.Ability(ctx, "otto")
	require.NoError(t, err)

	require.NoError(t, a.Invalidate(ctx, "otto"))

	_, _, err = a.Ability(ctx, "lena")
	require.NoError(t, err)
	_, _, err = a.Ability(ctx, "otto")
	require.NoError(t, err)

	assert.Equal(t, 1, source.loadCount("lena"))
	assert.Equal(t, 2, source.loadCount("otto"))
}

func TestAuthorizer_Purge(t *testing.T) {
	source := newFakeSource(leaderRecord(t))
	a, _ := newTestAuthorizer(t, source)
	ctx := context.Background()

	_, _, err := a.Ability(ctx, "lena")
	require.NoError(t, err)
	a.Purge()
	_, _, err = a.Ability(ctx, "lena")
	require.NoError(t, err)

	assert.Equal(t, 2, source.loadCount("lena"))
}

func TestAuthorizer_PurgeDuringLoadDropsStaleAbility(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users:\n  - id: u1\n    roles: [admin]\n"), 0o644))
	files, err := snapshot.NewFileSource(path, quietLogger())
	require.NoError(t, err)

	source := &pausingSource{Source: files, loaded: make(chan struct{}), release: make(chan struct{})}
	a, _ := newTestAuthorizer(t, source)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, _, err := a.Ability(ctx, "u1")
		done <- err
	}()
	<-source.loaded

	// admin is revoked while the first load still holds the old generation
	require.NoError(t, os.WriteFile(path, []byte("users:\n  - id: u1\n    roles: [operator]\n"), 0o644))
	require.NoError(t, files.Reload())
	a.Purge()
	close(source.release)
	require.NoError(t, <-done)

	ability, _, err := a.Ability(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ability.IsAllowed(rbac.ActionManage, rbac.SubjectUser, rbac.Attributes{}))
	assert.True(t, ability.CanAny(rbac.ActionTrackIn, rbac.SubjectExecution))
}

func TestAuthorizer_SharedRedisVersions(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	versionsA, err := snapshot.NewRedisVersionStore(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	defer versionsA.Close()
	versionsB, err := snapshot.NewRedisVersionStore(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	defer versionsB.Close()

	source := newFakeSource(leaderRecord(t))
	a, _ := newTestAuthorizer(t, source, WithVersionStore(versionsA))
	b, _ := newTestAuthorizer(t, source, WithVersionStore(versionsB))

	_, _, err = a.Ability(ctx, "lena")
	require.NoError(t, err)
	_, _, err = b.Ability(ctx, "lena")
	require.NoError(t, err)
	assert.Equal(t, 2, source.loadCount("lena"))

	// An invalidation on b must make a rebuild too
	require.NoError(t, b.Invalidate(ctx, "lena"))

	_, _, err = a.Ability(ctx, "lena")
	require.NoError(t, err)
	assert.Equal(t, 3, source.loadCount("lena"))
}

func TestAuthorizer_VersionStoreDownLoadsUncached(t *testing.T) {
	source := newFakeSource(leaderRecord(t))
	a, _ := newTestAuthorizer(t, source, WithVersionStore(failingVersions{}))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := a.Check(ctx, "lena", rbac.ActionAuthorize, rbac.SubjectRun, rbac.Attributes{LineID: "L1"})
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	assert.Equal(t, 2, source.loadCount("lena"))

	assert.Error(t, a.Invalidate(ctx, "lena"))
}

func TestAuthorizer_Scope(t *testing.T) {
	a, _ := newTestAuthorizer(t, newFakeSource(leaderRecord(t), operatorRecord(t)))
	ctx := context.Background()

	t.Run("held with lines", func(t *testing.T) {
		d, err := a.Scope(ctx, "lena", string(rbac.PermWOClose))
		require.NoError(t, err)
		assert.Equal(t, rbac.ScopeAssignedLines, d.Scope)
		assert.Equal(t, []string{"L1"}, d.LineIDs)
	})

	t.Run("not held", func(t *testing.T) {
		_, err := a.Scope(ctx, "otto", string(rbac.PermWORelease))
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("held without stations", func(t *testing.T) {
		d, err := a.Scope(ctx, "otto", string(rbac.PermExecTrackIn))
		require.NoError(t, err)
		assert.Equal(t, rbac.ScopeAssignedStations, d.Scope)
		assert.Empty(t, d.StationIDs)
	})

	t.Run("matches the pure resolver", func(t *testing.T) {
		user := leaderRecord(t).User
		for _, p := range rbac.Catalog() {
			want, held := rbac.ResolveScopeChecked(user, string(p))
			got, err := a.Scope(ctx, "lena", string(p))
			if !held {
				assert.ErrorIs(t, err, ErrForbidden, p)
				continue
			}
			require.NoError(t, err, p)
			assert.Equal(t, want, got, p)
		}
	})
}

func TestAuthorizer_Require(t *testing.T) {
	a, metrics := newTestAuthorizer(t, newFakeSource(leaderRecord(t), operatorRecord(t)))
	ctx := context.Background()

	assert.NoError(t, a.Require(ctx, "lena", string(rbac.PermWORelease), string(rbac.PermRunAuthorize)))
	assert.ErrorIs(t, a.Require(ctx, "otto", string(rbac.PermWORelease)), ErrForbidden)
	assert.ErrorIs(t, a.Require(ctx, "lena"), ErrForbidden)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("require", "allowed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("require", "denied")))
}

func TestAuthorizer_Profile(t *testing.T) {
	stored := leaderRecord(t)
	stored.User.ID = "sam"
	stored.HomePage = "/mes/dashboard"
	a, _ := newTestAuthorizer(t, newFakeSource(leaderRecord(t), stored))
	ctx := context.Background()

	p, err := a.Profile(ctx, "lena", "")
	require.NoError(t, err)
	assert.Equal(t, "lena", p.UserID)
	assert.Equal(t, "/mes/runs", p.HomePage)
	assert.Equal(t, []RoleSummary{{Code: "leader", Name: "Line leader", DataScope: rbac.ScopeAssignedLines}}, p.Roles)
	assert.Contains(t, p.Permissions, string(rbac.PermRunAuthorize))
	assert.IsIncreasing(t, p.Permissions)
	assert.Equal(t, []string{"L1"}, p.LineIDs)
	assert.NotNil(t, p.StationIDs)

	p, err = a.Profile(ctx, "sam", "")
	require.NoError(t, err)
	assert.Equal(t, "/mes/dashboard", p.HomePage)

	p, err = a.Profile(ctx, "sam", "/mes/trace")
	require.NoError(t, err)
	assert.Equal(t, "/mes/trace", p.HomePage)
}

func TestAuthorizer_Errors(t *testing.T) {
	source := newFakeSource()
	a, metrics := newTestAuthorizer(t, source)
	ctx := context.Background()

	_, err := a.Check(ctx, "", rbac.ActionRead, rbac.SubjectRun, rbac.Attributes{})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = a.Check(ctx, "ghost", rbac.ActionRead, rbac.SubjectRun, rbac.Attributes{})
	assert.ErrorIs(t, err, snapshot.ErrUserNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SnapshotLoadsTotal.WithLabelValues("not_found")))

	source.err = errors.New("database is locked")
	_, err = a.Scope(ctx, "ghost", string(rbac.PermWORead))
	assert.ErrorContains(t, err, "database is locked")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SnapshotLoadsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("scope", "error")))
}

func TestAuthorizer_ReportsUnknownPermissions(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	source := newFakeSource(snapshot.Record{User: rbac.User{
		ID: "wendy",
		Roles: []rbac.Role{{
			Code:        "warehouse",
			Name:        "Warehouse",
			Permissions: []string{"warehouse:pick", string(rbac.PermWORead), "wo:delete"},
			DataScope:   rbac.ScopeAll,
		}},
	}})
	a, metrics := newTestAuthorizer(t, source, WithLogger(log))

	d, err := a.Check(context.Background(), "wendy", rbac.ActionRead, rbac.SubjectWorkOrder, rbac.Attributes{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// wo:delete parses cleanly but is still not a catalog value
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.UnknownPermissionsTotal.WithLabelValues("warehouse")))
	require.Len(t, hook.Entries, 2)
	assert.Equal(t, logrus.WarnLevel, hook.Entries[0].Level)
	assert.Equal(t, "warehouse:pick", hook.Entries[0].Data["permission"])
	assert.Equal(t, true, hook.Entries[0].Data["fallback"])
	assert.Equal(t, "wo:delete", hook.Entries[1].Data["permission"])
	assert.Equal(t, false, hook.Entries[1].Data["fallback"])
}

func TestAuthorizer_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	a, _ := newTestAuthorizer(t, newFakeSource(leaderRecord(t)), WithTracerProvider(tp))

	_, err := a.Check(context.Background(), "lena", rbac.ActionAuthorize, rbac.SubjectRun, rbac.Attributes{LineID: "L1"})
	require.NoError(t, err)
	_, err = a.Check(context.Background(), "nobody", rbac.ActionAuthorize, rbac.SubjectRun, rbac.Attributes{})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "authz.Check", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Bool("authz.allowed", true))
	assert.Contains(t, spans[0].Attributes(), attribute.String("user.id", "lena"))
	assert.Equal(t, "Error", spans[1].Status().Code.String())
}

func TestKeyUser(t *testing.T) {
	assert.Equal(t, "lena", keyUser(cacheKey("lena", 3, 0)))
	assert.Equal(t, "a@b.example", keyUser(cacheKey("a@b.example", 0, 7)))
	assert.NotEqual(t, cacheKey("lena", 3, 0), cacheKey("lena", 3, 1))
}
