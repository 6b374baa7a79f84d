package rbac

import "strings"

// domain is the part of a permission before the first ':'
type domain string

const (
	domainWorkOrder domain = "wo"
	domainRun       domain = "run"
	domainExec      domain = "exec"
	domainDataSpec  domain = "data_spec"
	domainOperation domain = "operation"
	domainRoute     domain = "route"
	domainQuality   domain = "quality"
	domainReadiness domain = "readiness"
	domainLoading   domain = "loading"
	domainLine      domain = "line"
	domainTrace     domain = "trace"
	domainSystem    domain = "system"
)

// subjectFor maps a domain to its subject. The default arm is the
// documented fallback and reports ok=false.
func subjectFor(d domain) (Subject, bool) {
	switch d {
	case domainWorkOrder:
		return SubjectWorkOrder, true
	case domainRun:
		return SubjectRun, true
	case domainExec:
		return SubjectExecution, true
	case domainDataSpec:
		return SubjectDataSpec, true
	case domainOperation:
		return SubjectOperation, true
	case domainRoute:
		return SubjectRoute, true
	case domainQuality:
		// quality inspections act on executions
		return SubjectExecution, true
	case domainReadiness:
		return SubjectReadiness, true
	case domainLoading:
		return SubjectLoading, true
	case domainLine:
		return SubjectLine, true
	case domainTrace:
		return SubjectTrace, true
	case domainSystem:
		return SubjectSystem, true
	default:
		return SubjectSystem, false
	}
}

// actionFor maps an action code to its action. The default arm is the
// documented fallback and reports ok=false.
func actionFor(code string) (Action, bool) {
	switch code {
	case "read", "view":
		return ActionRead, true
	case "create":
		return ActionCreate, true
	case "update":
		return ActionUpdate, true
	case "delete":
		return ActionDelete, true
	case "receive":
		return ActionReceive, true
	case "release":
		return ActionRelease, true
	case "cancel":
		return ActionCancel, true
	case "authorize":
		return ActionAuthorize, true
	case "revoke":
		return ActionRevoke, true
	case "close":
		return ActionClose, true
	case "track_in":
		return ActionTrackIn, true
	case "track_out":
		return ActionTrackOut, true
	case "data_collect":
		return ActionDataCollect, true
	case "configure":
		return ActionConfigure, true
	case "compile":
		return ActionCompile, true
	case "fai":
		return ActionFAI, true
	case "oqc":
		return ActionOQC, true
	case "disposition":
		return ActionDisposition, true
	case "export":
		return ActionExport, true
	case "check":
		return ActionCheck, true
	case "override":
		return ActionOverride, true
	case "verify":
		return ActionVerify, true
	case "config", "user_manage", "role_manage", "integration":
		return ActionManage, true
	default:
		return ActionRead, false
	}
}

// Parse maps a permission string to its (subject, action) pair. It never
// fails: an unknown domain falls back to System and an unknown action code
// falls back to read.
//
// Everything under the system domain parses to manage. user_manage and
// role_manage target User and Role, the rest target System.
func Parse(permission string) (Subject, Action) {
	subject, action, _ := Lookup(permission)
	return subject, action
}

// Lookup is Parse plus whether both halves hit an explicit table entry.
// ok=false means at least one fallback fired.
func Lookup(permission string) (Subject, Action, bool) {
	d, code, _ := strings.Cut(permission, ":")

	if domain(d) == domainSystem {
		_, known := actionFor(code)
		switch code {
		case "user_manage":
			return SubjectUser, ActionManage, true
		case "role_manage":
			return SubjectRole, ActionManage, true
		default:
			return SubjectSystem, ActionManage, known
		}
	}

	subject, subjectOK := subjectFor(domain(d))
	action, actionOK := actionFor(code)
	return subject, action, subjectOK && actionOK
}
