package rbac

import "errors"

var (
	// ErrInvalidPermission is returned for a permission outside the catalog
	ErrInvalidPermission = errors.New("invalid permission")
	// ErrInvalidDataScope is returned for an unknown data scope
	ErrInvalidDataScope = errors.New("invalid data scope")
	// ErrReservedRoleCode is returned when a custom role reuses a preset code
	ErrReservedRoleCode = errors.New("role code is reserved")
	// ErrEmptyRoleCode is returned for a role without a code
	ErrEmptyRoleCode = errors.New("role code is required")
	// ErrCatalog wraps every catalog consistency problem
	ErrCatalog = errors.New("permission catalog inconsistent")
)
