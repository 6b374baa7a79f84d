package rbac

// Preset role codes
const (
	RoleAdmin    = "admin"
	RolePlanner  = "planner"
	RoleEngineer = "engineer"
	RoleQuality  = "quality"
	RoleLeader   = "leader"
	RoleMaterial = "material"
	RoleOperator = "operator"
)

// PresetRole is a system-defined role. Its code is fixed and it cannot be
// deleted; name and description may be edited by role management.
type PresetRole struct {
	Role
	Description string `json:"description"`
	IsSystem    bool   `json:"isSystem"`
}

func perms(ps ...Permission) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

var presetRoles = []PresetRole{
	{
		Role: Role{
			Code: RoleAdmin,
			Name: "System administrator",
			Permissions: perms(
				PermSystemUserManage, PermSystemRoleManage, PermSystemConfig, PermSystemIntegration,
				PermDataSpecConfig, PermLineConfig,
				PermWORead, PermRunRead, PermRouteRead, PermTraceRead, PermExecRead,
				PermReadinessView, PermLoadingView,
			),
			DataScope: ScopeAll,
		},
		Description: "User, role and system configuration",
	},
	{
		Role: Role{
			Code: RolePlanner,
			Name: "Production planner",
			Permissions: perms(
				PermWORead, PermWOReceive, PermWORelease, PermWOUpdate, PermWOClose,
				PermRunRead, PermRunCreate,
				PermRouteRead, PermTraceRead,
			),
			DataScope: ScopeAll,
		},
		Description: "Work order intake, release and run planning",
	},
	{
		Role: Role{
			Code: RoleEngineer,
			Name: "Process engineer",
			Permissions: perms(
				PermSystemIntegration,
				PermRouteRead, PermRouteConfigure, PermRouteCompile, PermRouteCreate,
				PermDataSpecRead, PermDataSpecConfig,
				PermOperationRead, PermOperationConfig,
				PermWORead, PermRunRead, PermTraceRead,
				PermReadinessConfig, PermLoadingConfig, PermLineConfig,
			),
			DataScope: ScopeAll,
		},
		Description: "Routing, data collection and line setup",
	},
	{
		Role: Role{
			Code: RoleQuality,
			Name: "Quality engineer",
			Permissions: perms(
				PermQualityFAI, PermQualityOQC, PermQualityDisposition,
				PermTraceRead, PermTraceExport,
				PermWORead, PermRunRead, PermExecRead,
				PermReadinessView, PermReadinessCheck, PermReadinessOverride,
			),
			DataScope: ScopeAll,
		},
		Description: "Inspections, dispositions and traceability",
	},
	{
		Role: Role{
			Code: RoleLeader,
			Name: "Line leader",
			Permissions: perms(
				PermRunRead, PermRunCreate, PermRunAuthorize, PermRunRevoke, PermRunClose,
				PermExecRead, PermExecTrackIn, PermExecTrackOut, PermExecDataCollect,
				PermWORead, PermWOClose,
				PermTraceRead, PermRouteRead,
				PermReadinessView, PermReadinessCheck, PermReadinessOverride,
				PermLoadingView, PermLoadingVerify,
			),
			DataScope: ScopeAssignedLines,
		},
		Description: "Run authorization and execution on assigned lines",
	},
	{
		Role: Role{
			Code: RoleMaterial,
			Name: "Material handler",
			Permissions: perms(
				PermLoadingView, PermLoadingVerify,
				PermReadinessView,
				PermWORead, PermRunRead, PermTraceRead,
			),
			DataScope: ScopeAssignedLines,
		},
		Description: "Material loading verification on assigned lines",
	},
	{
		Role: Role{
			Code: RoleOperator,
			Name: "Operator",
			Permissions: perms(
				PermExecTrackIn, PermExecTrackOut,
				PermTraceRead, PermReadinessView,
				PermLoadingView, PermLoadingVerify,
			),
			DataScope: ScopeAssignedStations,
		},
		Description: "Track in and track out at assigned stations",
	},
}

var rolePriority = []string{
	RoleAdmin,
	RolePlanner,
	RoleLeader,
	RoleEngineer,
	RoleQuality,
	RoleMaterial,
	RoleOperator,
}

var homePages = map[string]string{
	RoleAdmin:    "/system/user-management",
	RolePlanner:  "/mes/work-orders",
	RoleLeader:   "/mes/runs",
	RoleEngineer: "/mes/routes",
	RoleQuality:  "/mes/trace",
	RoleMaterial: "/mes/loading",
	RoleOperator: "/mes/execution",
}

// PresetRoles returns deep copies of the system-defined roles
func PresetRoles() []PresetRole {
	out := make([]PresetRole, len(presetRoles))
	for i, p := range presetRoles {
		out[i] = clonePreset(p)
	}
	return out
}

// LookupPreset returns the preset role with code
func LookupPreset(code string) (PresetRole, bool) {
	for _, p := range presetRoles {
		if p.Code == code {
			return clonePreset(p), true
		}
	}
	return PresetRole{}, false
}

// IsPresetCode reports whether code belongs to a system-defined role
func IsPresetCode(code string) bool {
	_, ok := LookupPreset(code)
	return ok
}

// RolePriority returns the role codes in home page priority order
func RolePriority() []string {
	return cloneStrings(rolePriority)
}

// HomePageFor returns the landing route mapped to a role code
func HomePageFor(code string) (string, bool) {
	page, ok := homePages[code]
	return page, ok
}

// ResolveHomePage returns the landing route for a user. A non-empty
// preference wins verbatim; otherwise the first role in priority order that
// the user holds decides; otherwise "/".
func ResolveHomePage(preference string, roleCodes []string) string {
	if preference != "" {
		return preference
	}

	held := make(map[string]struct{}, len(roleCodes))
	for _, c := range roleCodes {
		held[c] = struct{}{}
	}
	for _, code := range rolePriority {
		if _, ok := held[code]; ok {
			return homePages[code]
		}
	}
	return "/"
}

func clonePreset(p PresetRole) PresetRole {
	p.IsSystem = true
	p.Permissions = cloneStrings(p.Permissions)
	return p
}
