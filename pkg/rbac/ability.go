package rbac

// Grant is one flattened (role, permission) pair with its parsed subject
// and action. Both the Ability and the scope resolver read from grants.
type Grant struct {
	RoleCode   string
	Permission string
	Subject    Subject
	Action     Action
	DataScope  DataScope
}

// ConditionKind identifies the attribute test attached to a rule
type ConditionKind int

const (
	// ConditionNone matches every instance
	ConditionNone ConditionKind = iota
	// ConditionLine matches instances whose line id is in the captured set
	ConditionLine
	// ConditionStation matches instances whose station id is in the captured set
	ConditionStation
)

func (k ConditionKind) String() string {
	switch k {
	case ConditionLine:
		return "lineId"
	case ConditionStation:
		return "stationId"
	default:
		return "none"
	}
}

// Condition is the attribute test of a rule
type Condition struct {
	Kind ConditionKind
	IDs  map[string]struct{}
}

// Satisfied reports whether attrs pass the condition. An absent attribute
// never satisfies a membership test.
func (c Condition) Satisfied(attrs Attributes) bool {
	switch c.Kind {
	case ConditionNone:
		return true
	case ConditionLine:
		if attrs.LineID == "" {
			return false
		}
		_, ok := c.IDs[attrs.LineID]
		return ok
	case ConditionStation:
		if attrs.StationID == "" {
			return false
		}
		_, ok := c.IDs[attrs.StationID]
		return ok
	default:
		return false
	}
}

// Rule is an allow rule produced from one grant
type Rule struct {
	Grant
	Condition Condition
}

type ruleKey struct {
	action  Action
	subject Subject
}

// Ability is the immutable rule set built from one user snapshot
type Ability struct {
	userID     string
	lineIDs    []string
	stationIDs []string
	rules      []Rule
	index      map[ruleKey][]int
}

// Grants flattens user's roles into grants, role order then permission order
func Grants(user User) []Grant {
	var grants []Grant
	for _, role := range user.Roles {
		scope := role.DataScope.Normalize()
		for _, p := range role.Permissions {
			subject, action := Parse(p)
			grants = append(grants, Grant{
				RoleCode:   role.Code,
				Permission: p,
				Subject:    subject,
				Action:     action,
				DataScope:  scope,
			})
		}
	}
	return grants
}

// Build turns every grant of user into an allow rule. Line and station ids
// are copied, so later changes to user do not affect the result.
func Build(user User) *Ability {
	lines := toSet(user.LineIDs)
	stations := toSet(user.StationIDs)

	grants := Grants(user)
	a := &Ability{
		userID:     user.ID,
		lineIDs:    cloneStrings(user.LineIDs),
		stationIDs: cloneStrings(user.StationIDs),
		rules:      make([]Rule, 0, len(grants)),
		index:      make(map[ruleKey][]int),
	}
	for _, g := range grants {
		var cond Condition
		switch g.DataScope {
		case ScopeAll:
			cond = Condition{Kind: ConditionNone}
		case ScopeAssignedLines:
			cond = Condition{Kind: ConditionLine, IDs: lines}
		default:
			cond = Condition{Kind: ConditionStation, IDs: stations}
		}
		key := ruleKey{action: g.Action, subject: g.Subject}
		a.index[key] = append(a.index[key], len(a.rules))
		a.rules = append(a.rules, Rule{Grant: g, Condition: cond})
	}
	return a
}

// IsAllowed reports whether ability allows action on subject for an
// instance carrying attrs. A nil ability allows nothing.
func IsAllowed(ability *Ability, action Action, subject Subject, attrs Attributes) bool {
	return ability.IsAllowed(action, subject, attrs)
}

// IsAllowed reports whether at least one rule matches action and subject
// and has its condition satisfied by attrs
func (a *Ability) IsAllowed(action Action, subject Subject, attrs Attributes) bool {
	if a == nil {
		return false
	}
	for _, i := range a.index[ruleKey{action: action, subject: subject}] {
		if a.rules[i].Condition.Satisfied(attrs) {
			return true
		}
	}
	return false
}

// CanAny reports whether any rule exists for action and subject, ignoring
// conditions. Use it to decide whether to show an entry point, never to
// authorize a specific instance.
func (a *Ability) CanAny(action Action, subject Subject) bool {
	if a == nil {
		return false
	}
	return len(a.index[ruleKey{action: action, subject: subject}]) > 0
}

// MatchingRoles returns the distinct role codes whose rules allow the request
func (a *Ability) MatchingRoles(action Action, subject Subject, attrs Attributes) []string {
	if a == nil {
		return nil
	}
	var codes []string
	seen := make(map[string]struct{})
	for _, i := range a.index[ruleKey{action: action, subject: subject}] {
		r := a.rules[i]
		if !r.Condition.Satisfied(attrs) {
			continue
		}
		if _, ok := seen[r.RoleCode]; ok {
			continue
		}
		seen[r.RoleCode] = struct{}{}
		codes = append(codes, r.RoleCode)
	}
	return codes
}

// Rules returns a copy of the rule list in build order
func (a *Ability) Rules() []Rule {
	if a == nil {
		return nil
	}
	out := make([]Rule, len(a.rules))
	copy(out, a.rules)
	return out
}

// UserID returns the id of the user the ability was built for
func (a *Ability) UserID() string {
	if a == nil {
		return ""
	}
	return a.userID
}

// Len returns the number of rules
func (a *Ability) Len() int {
	if a == nil {
		return 0
	}
	return len(a.rules)
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
