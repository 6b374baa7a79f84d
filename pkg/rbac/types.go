package rbac

import "encoding/json"

// Permission is a "domain:action" capability string
type Permission string

// String returns the raw permission value
func (p Permission) String() string {
	return string(p)
}

// Subject represents a business entity type an action applies to
type Subject string

const (
	SubjectWorkOrder Subject = "WorkOrder"
	SubjectRun       Subject = "Run"
	SubjectExecution Subject = "Execution"
	SubjectRoute     Subject = "Route"
	SubjectTrace     Subject = "Trace"
	SubjectDataSpec  Subject = "DataSpec"
	SubjectOperation Subject = "Operation"
	SubjectReadiness Subject = "Readiness"
	SubjectLoading   Subject = "Loading"
	SubjectLine      Subject = "Line"
	SubjectUser      Subject = "User"
	SubjectRole      Subject = "Role"
	SubjectSystem    Subject = "System"
)

// Action represents a verb performed on a subject
type Action string

const (
	ActionRead        Action = "read"
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionManage      Action = "manage"
	ActionReceive     Action = "receive"
	ActionRelease     Action = "release"
	ActionCancel      Action = "cancel"
	ActionAuthorize   Action = "authorize"
	ActionRevoke      Action = "revoke"
	ActionClose       Action = "close"
	ActionTrackIn     Action = "trackIn"
	ActionTrackOut    Action = "trackOut"
	ActionDataCollect Action = "dataCollect"
	ActionConfigure   Action = "configure"
	ActionCompile     Action = "compile"
	ActionFAI         Action = "fai"
	ActionOQC         Action = "oqc"
	ActionDisposition Action = "disposition"
	ActionExport      Action = "export"
	ActionCheck       Action = "check"
	ActionOverride    Action = "override"
	ActionVerify      Action = "verify"
)

// DataScope is the row visibility breadth attached to a role
type DataScope string

const (
	ScopeAll              DataScope = "ALL"
	ScopeAssignedLines    DataScope = "ASSIGNED_LINES"
	ScopeAssignedStations DataScope = "ASSIGNED_STATIONS"
)

// Breadth ranks a scope for the widest-scope-wins merge. Unknown scopes
// rank with ASSIGNED_STATIONS.
func (s DataScope) Breadth() int {
	switch s {
	case ScopeAll:
		return 2
	case ScopeAssignedLines:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the three known scopes
func (s DataScope) Valid() bool {
	switch s {
	case ScopeAll, ScopeAssignedLines, ScopeAssignedStations:
		return true
	}
	return false
}

// Normalize maps unknown scopes onto ASSIGNED_STATIONS
func (s DataScope) Normalize() DataScope {
	if s.Valid() {
		return s
	}
	return ScopeAssignedStations
}

// Role is a named bundle of permissions with exactly one data scope.
// Presets and custom roles share this shape.
type Role struct {
	Code        string    `json:"code" yaml:"code"`
	Name        string    `json:"name" yaml:"name"`
	Permissions []string  `json:"permissions" yaml:"permissions"`
	DataScope   DataScope `json:"dataScope" yaml:"dataScope"`
}

// HasPermission reports whether the role grants permission by exact string match
func (r Role) HasPermission(permission string) bool {
	for _, p := range r.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// User is the snapshot of a user's roles and bindings the engine evaluates.
// Roles are held by value.
type User struct {
	ID         string   `json:"id"`
	Roles      []Role   `json:"roles"`
	LineIDs    []string `json:"lineIds"`
	StationIDs []string `json:"stationIds"`
}

// RoleCodes returns the codes of the user's roles in snapshot order
func (u User) RoleCodes() []string {
	codes := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		codes = append(codes, r.Code)
	}
	return codes
}

// Attributes carries the row-scoping attributes of a subject instance.
// An empty value means the attribute is absent.
type Attributes struct {
	LineID    string `json:"lineId,omitempty"`
	StationID string `json:"stationId,omitempty"`
}

// DataScopeDescriptor is the effective row visibility for one (user, permission) pair
type DataScopeDescriptor struct {
	Scope      DataScope `json:"scope"`
	LineIDs    []string  `json:"lineIds,omitempty"`
	StationIDs []string  `json:"stationIds,omitempty"`
}

// MarshalJSON emits only the id set that applies to the scope. The set is
// always an array, never null, so a fail-closed descriptor reads as [].
func (d DataScopeDescriptor) MarshalJSON() ([]byte, error) {
	type wire struct {
		Scope      DataScope `json:"scope"`
		LineIDs    *[]string `json:"lineIds,omitempty"`
		StationIDs *[]string `json:"stationIds,omitempty"`
	}
	w := wire{Scope: d.Scope}
	switch d.Scope {
	case ScopeAll:
	case ScopeAssignedLines:
		ids := nonNil(d.LineIDs)
		w.LineIDs = &ids
	default:
		ids := nonNil(d.StationIDs)
		w.StationIDs = &ids
	}
	return json.Marshal(w)
}

// Allows reports whether a row carrying attrs falls inside the descriptor
func (d DataScopeDescriptor) Allows(attrs Attributes) bool {
	switch d.Scope {
	case ScopeAll:
		return true
	case ScopeAssignedLines:
		return attrs.LineID != "" && contains(d.LineIDs, attrs.LineID)
	default:
		return attrs.StationID != "" && contains(d.StationIDs, attrs.StationID)
	}
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
