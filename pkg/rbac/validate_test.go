package rbac

import (
	"errors"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCatalog(t *testing.T) {
	require.NoError(t, ValidateCatalog())
	assert.NotPanics(t, MustValidateCatalog)
}

func TestValidateCatalog_CatalogShape(t *testing.T) {
	seen := map[Permission]int{}
	for _, g := range PermissionGroups() {
		assert.NotEmpty(t, g.Permissions, g.Key)
		for _, opt := range g.Permissions {
			seen[opt.Value]++
			assert.NotEmpty(t, opt.Label, opt.Value)
		}
	}
	for _, p := range Catalog() {
		assert.Equal(t, 1, seen[p], p)
		assert.True(t, IsCatalogPermission(string(p)))
	}
	assert.False(t, IsCatalogPermission("wo:frobnicate"))
}

// declaredPermissions collects every Perm* constant declared in permissions.go
func declaredPermissions(t *testing.T) []Permission {
	t.Helper()
	file, err := parser.ParseFile(token.NewFileSet(), "permissions.go", nil, 0)
	require.NoError(t, err)

	var out []Permission
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.CONST {
			continue
		}
		for _, spec := range gen.Specs {
			vs := spec.(*ast.ValueSpec)
			for i, name := range vs.Names {
				if !strings.HasPrefix(name.Name, "Perm") || i >= len(vs.Values) {
					continue
				}
				lit, ok := vs.Values[i].(*ast.BasicLit)
				require.True(t, ok, "%s is not a string literal", name.Name)
				value, err := strconv.Unquote(lit.Value)
				require.NoError(t, err)
				out = append(out, Permission(value))
			}
		}
	}
	return out
}

func TestCatalog_CoversEveryDeclaredConstant(t *testing.T) {
	declared := declaredPermissions(t)
	require.NotEmpty(t, declared)
	assert.Equal(t, declared, Catalog(), "every Perm constant must sit in exactly one group, in declaration order")
}

// withGroups swaps the display groups for the duration of a test
func withGroups(t *testing.T, groups []PermissionGroup) {
	t.Helper()
	saved := permissionGroups
	permissionGroups = groups
	t.Cleanup(func() { permissionGroups = saved })
}

func TestValidateCatalog_UnmappedPermission(t *testing.T) {
	withGroups(t, append(PermissionGroups(), PermissionGroup{
		Key:   "warehouse",
		Label: "Warehouse",
		Permissions: []PermissionOption{
			{Value: "warehouse:pick", Label: "Pick"},
		},
	}))

	err := ValidateCatalog()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCatalog))
	assert.Contains(t, err.Error(), `"warehouse:pick" has no explicit subject/action mapping`)
	assert.Panics(t, MustValidateCatalog)
}

func TestValidateCatalog_DuplicateAndEmptyGroup(t *testing.T) {
	withGroups(t, append(PermissionGroups(),
		PermissionGroup{Key: "again", Permissions: []PermissionOption{{Value: PermWORead}}},
		PermissionGroup{Key: "hollow"},
	))

	err := ValidateCatalog()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"wo:read" listed in groups "wo" and "again"`)
	assert.Contains(t, err.Error(), `group "hollow" is empty`)
}

func TestValidateCatalog_PresetOutsideCatalog(t *testing.T) {
	groups := PermissionGroups()
	var trimmed []PermissionGroup
	for _, g := range groups {
		if g.Key != "line" {
			trimmed = append(trimmed, g)
		}
	}
	withGroups(t, trimmed)

	err := ValidateCatalog()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `preset role "admin" grants unknown permission "line:config"`)
	assert.Contains(t, err.Error(), `preset role "engineer" grants unknown permission "line:config"`)
}

func TestValidateRoleDefinition(t *testing.T) {
	tests := []struct {
		name    string
		role    Role
		wantErr error
	}{
		{"valid", Role{Code: "night-shift", Permissions: []string{"wo:read", "exec:track_in"}, DataScope: ScopeAssignedStations}, nil},
		{"no permissions", Role{Code: "empty", DataScope: ScopeAll}, nil},
		{"missing code", Role{DataScope: ScopeAll}, ErrEmptyRoleCode},
		{"preset code", Role{Code: RoleAdmin, DataScope: ScopeAll}, ErrReservedRoleCode},
		{"bad scope", Role{Code: "x", DataScope: "EVERYTHING"}, ErrInvalidDataScope},
		{"unknown permission", Role{Code: "x", Permissions: []string{"wo:read", "wo:nuke"}, DataScope: ScopeAll}, ErrInvalidPermission},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoleDefinition(tt.role)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
