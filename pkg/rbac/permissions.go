package rbac

// Permission catalog. The set is closed: every value a role may carry in
// production is declared here and nowhere else.
const (
	PermWORead    Permission = "wo:read"
	PermWOReceive Permission = "wo:receive"
	PermWORelease Permission = "wo:release"
	PermWOUpdate  Permission = "wo:update"
	PermWOClose   Permission = "wo:close"

	PermRunRead      Permission = "run:read"
	PermRunCreate    Permission = "run:create"
	PermRunAuthorize Permission = "run:authorize"
	PermRunRevoke    Permission = "run:revoke"
	PermRunClose     Permission = "run:close"

	PermExecRead        Permission = "exec:read"
	PermExecTrackIn     Permission = "exec:track_in"
	PermExecTrackOut    Permission = "exec:track_out"
	PermExecDataCollect Permission = "exec:data_collect"

	PermDataSpecRead   Permission = "data_spec:read"
	PermDataSpecConfig Permission = "data_spec:config"

	PermOperationRead   Permission = "operation:read"
	PermOperationConfig Permission = "operation:config"

	PermRouteRead      Permission = "route:read"
	PermRouteConfigure Permission = "route:configure"
	PermRouteCompile   Permission = "route:compile"
	PermRouteCreate    Permission = "route:create"

	PermQualityFAI         Permission = "quality:fai"
	PermQualityOQC         Permission = "quality:oqc"
	PermQualityDisposition Permission = "quality:disposition"

	PermReadinessView     Permission = "readiness:view"
	PermReadinessCheck    Permission = "readiness:check"
	PermReadinessOverride Permission = "readiness:override"
	PermReadinessConfig   Permission = "readiness:config"

	PermLoadingView   Permission = "loading:view"
	PermLoadingVerify Permission = "loading:verify"
	PermLoadingConfig Permission = "loading:config"

	PermLineConfig Permission = "line:config"

	PermTraceRead   Permission = "trace:read"
	PermTraceExport Permission = "trace:export"

	PermSystemUserManage  Permission = "system:user_manage"
	PermSystemRoleManage  Permission = "system:role_manage"
	PermSystemConfig      Permission = "system:config"
	PermSystemIntegration Permission = "system:integration"
)

// PermissionOption is one labelled entry of a display group
type PermissionOption struct {
	Value Permission `json:"value"`
	Label string     `json:"label"`
}

// PermissionGroup groups permissions for display only
type PermissionGroup struct {
	Key         string             `json:"key"`
	Label       string             `json:"label"`
	Permissions []PermissionOption `json:"permissions"`
}

var permissionGroups = []PermissionGroup{
	{Key: "wo", Label: "Work orders", Permissions: []PermissionOption{
		{PermWORead, "View work orders"},
		{PermWOReceive, "Receive work orders"},
		{PermWORelease, "Release work orders"},
		{PermWOUpdate, "Update work orders"},
		{PermWOClose, "Close work orders"},
	}},
	{Key: "run", Label: "Production runs", Permissions: []PermissionOption{
		{PermRunRead, "View runs"},
		{PermRunCreate, "Create runs"},
		{PermRunAuthorize, "Authorize runs"},
		{PermRunRevoke, "Revoke run authorization"},
		{PermRunClose, "Close runs"},
	}},
	{Key: "exec", Label: "Execution", Permissions: []PermissionOption{
		{PermExecRead, "View execution"},
		{PermExecTrackIn, "Track in"},
		{PermExecTrackOut, "Track out"},
		{PermExecDataCollect, "Collect data"},
	}},
	{Key: "data_spec", Label: "Data collection specs", Permissions: []PermissionOption{
		{PermDataSpecRead, "View data specs"},
		{PermDataSpecConfig, "Configure data specs"},
	}},
	{Key: "operation", Label: "Operations", Permissions: []PermissionOption{
		{PermOperationRead, "View operations"},
		{PermOperationConfig, "Configure operations"},
	}},
	{Key: "route", Label: "Routing", Permissions: []PermissionOption{
		{PermRouteRead, "View routes"},
		{PermRouteConfigure, "Configure routes"},
		{PermRouteCompile, "Compile routes"},
		{PermRouteCreate, "Create routes"},
	}},
	{Key: "quality", Label: "Quality", Permissions: []PermissionOption{
		{PermQualityFAI, "First article inspection"},
		{PermQualityOQC, "Outgoing quality control"},
		{PermQualityDisposition, "Disposition"},
	}},
	{Key: "readiness", Label: "Readiness checks", Permissions: []PermissionOption{
		{PermReadinessView, "View readiness"},
		{PermReadinessCheck, "Run readiness checks"},
		{PermReadinessOverride, "Override readiness"},
		{PermReadinessConfig, "Configure readiness"},
	}},
	{Key: "loading", Label: "Material loading", Permissions: []PermissionOption{
		{PermLoadingView, "View loading"},
		{PermLoadingVerify, "Verify loading"},
		{PermLoadingConfig, "Configure loading"},
	}},
	{Key: "line", Label: "Lines", Permissions: []PermissionOption{
		{PermLineConfig, "Configure lines"},
	}},
	{Key: "trace", Label: "Traceability", Permissions: []PermissionOption{
		{PermTraceRead, "View traceability"},
		{PermTraceExport, "Export traceability"},
	}},
	{Key: "system", Label: "System", Permissions: []PermissionOption{
		{PermSystemUserManage, "Manage users"},
		{PermSystemRoleManage, "Manage roles"},
		{PermSystemConfig, "System configuration"},
		{PermSystemIntegration, "Integrations"},
	}},
}

// PermissionGroups returns the display groups. The result is a copy.
func PermissionGroups() []PermissionGroup {
	out := make([]PermissionGroup, len(permissionGroups))
	for i, g := range permissionGroups {
		opts := make([]PermissionOption, len(g.Permissions))
		copy(opts, g.Permissions)
		out[i] = PermissionGroup{Key: g.Key, Label: g.Label, Permissions: opts}
	}
	return out
}

// Catalog returns every catalog permission in declaration order
func Catalog() []Permission {
	var out []Permission
	for _, g := range permissionGroups {
		for _, opt := range g.Permissions {
			out = append(out, opt.Value)
		}
	}
	return out
}

// IsCatalogPermission reports whether value is a catalog permission
func IsCatalogPermission(value string) bool {
	for _, g := range permissionGroups {
		for _, opt := range g.Permissions {
			if string(opt.Value) == value {
				return true
			}
		}
	}
	return false
}
