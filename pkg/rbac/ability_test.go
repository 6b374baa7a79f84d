package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func preset(t *testing.T, code string) Role {
	t.Helper()
	p, ok := LookupPreset(code)
	require.True(t, ok, "preset %s", code)
	return p.Role
}

func TestBuild_ConditionsFollowDataScope(t *testing.T) {
	user := User{
		ID: "u1",
		Roles: []Role{
			{Code: "all", Permissions: []string{"wo:read"}, DataScope: ScopeAll},
			{Code: "lines", Permissions: []string{"run:read"}, DataScope: ScopeAssignedLines},
			{Code: "stations", Permissions: []string{"exec:track_in"}, DataScope: ScopeAssignedStations},
		},
		LineIDs:    []string{"L1"},
		StationIDs: []string{"S1"},
	}

	ability := Build(user)
	require.Equal(t, 3, ability.Len())

	rules := ability.Rules()
	assert.Equal(t, ConditionNone, rules[0].Condition.Kind)
	assert.Equal(t, ConditionLine, rules[1].Condition.Kind)
	assert.Equal(t, ConditionStation, rules[2].Condition.Kind)

	assert.True(t, ability.IsAllowed(ActionRead, SubjectWorkOrder, Attributes{}))
	assert.True(t, ability.IsAllowed(ActionRead, SubjectWorkOrder, Attributes{LineID: "anything"}))

	assert.True(t, ability.IsAllowed(ActionRead, SubjectRun, Attributes{LineID: "L1"}))
	assert.False(t, ability.IsAllowed(ActionRead, SubjectRun, Attributes{LineID: "L2"}))
	assert.False(t, ability.IsAllowed(ActionRead, SubjectRun, Attributes{}), "absent line id never matches")
	assert.False(t, ability.IsAllowed(ActionRead, SubjectRun, Attributes{StationID: "S1"}))

	assert.True(t, ability.IsAllowed(ActionTrackIn, SubjectExecution, Attributes{StationID: "S1"}))
	assert.False(t, ability.IsAllowed(ActionTrackIn, SubjectExecution, Attributes{StationID: "S2"}))
	assert.False(t, ability.IsAllowed(ActionTrackIn, SubjectExecution, Attributes{LineID: "L1"}))

	assert.False(t, ability.IsAllowed(ActionDelete, SubjectWorkOrder, Attributes{}))
}

func TestBuild_UnionAcrossRoles(t *testing.T) {
	// a narrow role never restricts what a broader role grants
	user := User{
		Roles: []Role{
			{Code: "narrow", Permissions: []string{"wo:read"}, DataScope: ScopeAssignedStations},
			{Code: "broad", Permissions: []string{"wo:read"}, DataScope: ScopeAll},
		},
		StationIDs: []string{"X"},
	}

	ability := Build(user)
	assert.True(t, ability.IsAllowed(ActionRead, SubjectWorkOrder, Attributes{StationID: "Y"}))
	assert.ElementsMatch(t, []string{"broad"}, ability.MatchingRoles(ActionRead, SubjectWorkOrder, Attributes{StationID: "Y"}))
	assert.ElementsMatch(t, []string{"narrow", "broad"}, ability.MatchingRoles(ActionRead, SubjectWorkOrder, Attributes{StationID: "X"}))
}

func TestBuild_GrantHoldsRegardlessOfOtherRoles(t *testing.T) {
	for _, p := range PresetRoles() {
		others := []Role{preset(t, RoleOperator), preset(t, RoleAdmin)}
		user := User{
			Roles:      append([]Role{p.Role}, others...),
			LineIDs:    []string{"L1"},
			StationIDs: []string{"S1"},
		}
		attrs := Attributes{LineID: "L1", StationID: "S1"}

		ability := Build(user)
		for _, perm := range p.Permissions {
			subject, action := Parse(perm)
			assert.True(t, ability.IsAllowed(action, subject, attrs), "%s via %s", perm, p.Code)
		}
	}
}

func TestBuild_Idempotent(t *testing.T) {
	user := User{
		Roles:      []Role{preset(t, RoleLeader), preset(t, RoleQuality), preset(t, RoleOperator)},
		LineIDs:    []string{"L1", "L2"},
		StationIDs: []string{"S1"},
	}
	a1 := Build(user)
	a2 := Build(user)

	attrs := []Attributes{{}, {LineID: "L1"}, {LineID: "L9"}, {StationID: "S1"}, {StationID: "S9"}, {LineID: "L2", StationID: "S1"}}
	for _, p := range Catalog() {
		subject, action := Parse(string(p))
		for _, at := range attrs {
			assert.Equal(t, a1.IsAllowed(action, subject, at), a2.IsAllowed(action, subject, at), "%s %+v", p, at)
		}
	}
}

func TestBuild_SnapshotIsCopied(t *testing.T) {
	lines := []string{"L1"}
	user := User{
		Roles:   []Role{{Code: "r", Permissions: []string{"run:read"}, DataScope: ScopeAssignedLines}},
		LineIDs: lines,
	}

	ability := Build(user)
	lines[0] = "L2"
	user.Roles[0].DataScope = ScopeAll

	assert.True(t, ability.IsAllowed(ActionRead, SubjectRun, Attributes{LineID: "L1"}))
	assert.False(t, ability.IsAllowed(ActionRead, SubjectRun, Attributes{LineID: "L2"}))

	d, ok := ability.Scope("run:read")
	assert.True(t, ok)
	assert.Equal(t, []string{"L1"}, d.LineIDs)
}

func TestBuild_UnknownDataScopeIsNarrowest(t *testing.T) {
	user := User{
		Roles:      []Role{{Code: "odd", Permissions: []string{"wo:read"}, DataScope: "EVERYTHING"}},
		StationIDs: []string{"S1"},
	}
	ability := Build(user)
	assert.True(t, ability.IsAllowed(ActionRead, SubjectWorkOrder, Attributes{StationID: "S1"}))
	assert.False(t, ability.IsAllowed(ActionRead, SubjectWorkOrder, Attributes{LineID: "L1"}))

	assert.Equal(t, ScopeAssignedStations, ResolveScope(user, "wo:read").Scope)
}

func TestAbility_NilDenies(t *testing.T) {
	var a *Ability
	assert.False(t, IsAllowed(a, ActionRead, SubjectWorkOrder, Attributes{}))
	assert.False(t, a.CanAny(ActionRead, SubjectWorkOrder))
	assert.Nil(t, a.Rules())
	assert.Zero(t, a.Len())

	d, ok := a.Scope("wo:read")
	assert.False(t, ok)
	assert.Equal(t, ScopeAssignedStations, d.Scope)
}

func TestAbility_CanAnyIgnoresConditions(t *testing.T) {
	user := User{Roles: []Role{preset(t, RoleOperator)}}
	ability := Build(user)

	assert.True(t, ability.CanAny(ActionTrackIn, SubjectExecution))
	assert.False(t, ability.IsAllowed(ActionTrackIn, SubjectExecution, Attributes{StationID: "S1"}))
	assert.False(t, ability.CanAny(ActionConfigure, SubjectRoute))
}

func TestScenario_MaterialHandler(t *testing.T) {
	user := User{
		ID:      "material-1",
		Roles:   []Role{preset(t, RoleMaterial)},
		LineIDs: []string{"LINE-A"},
	}
	require.Equal(t, ScopeAssignedLines, user.Roles[0].DataScope)
	require.True(t, HasPermission(user, string(PermLoadingVerify)))

	ability := Build(user)
	assert.False(t, IsAllowed(ability, ActionConfigure, SubjectRun, Attributes{}))
	assert.False(t, IsAllowed(ability, ActionConfigure, SubjectRoute, Attributes{LineID: "LINE-A"}))

	subject, action := Parse(string(PermLoadingVerify))
	assert.True(t, IsAllowed(ability, action, subject, Attributes{LineID: "LINE-A"}))
	assert.False(t, IsAllowed(ability, action, subject, Attributes{LineID: "LINE-B"}))
}
