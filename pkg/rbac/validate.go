package rbac

import (
	"errors"
	"fmt"
)

// ValidateCatalog checks the compiled-in tables against each other:
//   - catalog values are unique and no display group is empty
//   - every catalog value parses through explicit table entries, never a fallback
//   - presets have unique codes, carry only catalog permissions, a known
//     scope, a home page and a priority slot
//
// All problems are returned together, each wrapping ErrCatalog.
func ValidateCatalog() error {
	var errs []error
	problem := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrCatalog}, args...)...))
	}

	seen := make(map[Permission]string)
	for _, g := range permissionGroups {
		if len(g.Permissions) == 0 {
			problem("group %q is empty", g.Key)
		}
		for _, opt := range g.Permissions {
			if other, dup := seen[opt.Value]; dup {
				problem("permission %q listed in groups %q and %q", opt.Value, other, g.Key)
				continue
			}
			seen[opt.Value] = g.Key
			if _, _, ok := Lookup(string(opt.Value)); !ok {
				problem("permission %q has no explicit subject/action mapping", opt.Value)
			}
		}
	}

	priority := make(map[string]struct{}, len(rolePriority))
	for _, code := range rolePriority {
		priority[code] = struct{}{}
	}

	codes := make(map[string]struct{})
	for _, p := range presetRoles {
		if _, dup := codes[p.Code]; dup {
			problem("preset role %q defined twice", p.Code)
		}
		codes[p.Code] = struct{}{}

		if !p.DataScope.Valid() {
			problem("preset role %q has data scope %q", p.Code, p.DataScope)
		}
		for _, perm := range p.Permissions {
			if !IsCatalogPermission(perm) {
				problem("preset role %q grants unknown permission %q", p.Code, perm)
			}
		}
		if _, ok := homePages[p.Code]; !ok {
			problem("preset role %q has no home page", p.Code)
		}
		if _, ok := priority[p.Code]; !ok {
			problem("preset role %q missing from role priority", p.Code)
		}
	}

	return errors.Join(errs...)
}

// MustValidateCatalog panics if ValidateCatalog fails
func MustValidateCatalog() {
	if err := ValidateCatalog(); err != nil {
		panic(err)
	}
}

// ValidateRoleDefinition checks a custom role before an external
// role-management layer stores it. The engine itself never calls this on
// loaded data.
func ValidateRoleDefinition(role Role) error {
	if role.Code == "" {
		return ErrEmptyRoleCode
	}
	if IsPresetCode(role.Code) {
		return fmt.Errorf("%w: %s", ErrReservedRoleCode, role.Code)
	}
	if !role.DataScope.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDataScope, role.DataScope)
	}

	var invalid []string
	for _, p := range role.Permissions {
		if !IsCatalogPermission(p) {
			invalid = append(invalid, p)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPermission, invalid)
	}
	return nil
}
