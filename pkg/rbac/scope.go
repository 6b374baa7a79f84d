package rbac

// ResolveScope returns the effective row visibility of user for permission.
//
// Only roles granting exactly permission take part; among them the widest
// scope wins (ALL, then ASSIGNED_LINES, then ASSIGNED_STATIONS). When no
// role grants permission the result is {ASSIGNED_STATIONS, []}, which
// matches no rows.
//
// The result alone cannot tell "held with no assigned stations" apart from
// "not held". Callers must authorize first (HasPermission or
// ResolveScopeChecked) and only then use the descriptor to parameterize a
// row filter.
func ResolveScope(user User, permission string) DataScopeDescriptor {
	d, _ := ResolveScopeChecked(user, permission)
	return d
}

// ResolveScopeChecked is ResolveScope plus whether any role grants permission
func ResolveScopeChecked(user User, permission string) (DataScopeDescriptor, bool) {
	return mergeScope(Grants(user), permission, user.LineIDs, user.StationIDs)
}

// Scope resolves permission against the ability's own rules. It returns the
// same descriptor as ResolveScope on the user the ability was built from.
func (a *Ability) Scope(permission string) (DataScopeDescriptor, bool) {
	if a == nil {
		return denyAll(), false
	}
	grants := make([]Grant, len(a.rules))
	for i, r := range a.rules {
		grants[i] = r.Grant
	}
	return mergeScope(grants, permission, a.lineIDs, a.stationIDs)
}

func mergeScope(grants []Grant, permission string, lineIDs, stationIDs []string) (DataScopeDescriptor, bool) {
	widest := -1
	for _, g := range grants {
		if g.Permission != permission {
			continue
		}
		if b := g.DataScope.Breadth(); b > widest {
			widest = b
		}
	}

	switch {
	case widest < 0:
		return denyAll(), false
	case widest == ScopeAll.Breadth():
		return DataScopeDescriptor{Scope: ScopeAll}, true
	case widest == ScopeAssignedLines.Breadth():
		return DataScopeDescriptor{Scope: ScopeAssignedLines, LineIDs: nonNil(cloneStrings(lineIDs))}, true
	default:
		return DataScopeDescriptor{Scope: ScopeAssignedStations, StationIDs: nonNil(cloneStrings(stationIDs))}, true
	}
}

func denyAll() DataScopeDescriptor {
	return DataScopeDescriptor{Scope: ScopeAssignedStations, StationIDs: []string{}}
}
