package auth

import "testing"

func TestHasPermission(t *testing.T) {
	all := []Permission{
		PermRouterRead, PermRouterRefresh, PermDeviceOperate,
		PermRouterControl, PermEntityCleanup, PermAuditRead,
	}

	tests := []struct {
		role Role
		want map[Permission]bool
	}{
		{
			role: RoleViewer,
			want: map[Permission]bool{PermRouterRead: true},
		},
		{
			role: RoleOperator,
			want: map[Permission]bool{PermRouterRead: true, PermRouterRefresh: true, PermDeviceOperate: true},
		},
		{
			role: RoleAdmin,
			want: map[Permission]bool{
				PermRouterRead: true, PermRouterRefresh: true, PermDeviceOperate: true,
				PermRouterControl: true, PermEntityCleanup: true, PermAuditRead: true,
			},
		},
		{
			role: "owner",
			want: map[Permission]bool{},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			for _, perm := range all {
				if got := HasPermission(tt.role, perm); got != tt.want[perm] {
					t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, perm, got, tt.want[perm])
				}
			}
		})
	}
}

func TestPermissionsForRole(t *testing.T) {
	perms := PermissionsForRole(RoleAdmin)
	if len(perms) != 6 {
		t.Fatalf("PermissionsForRole(admin) = %d, want 6", len(perms))
	}

	// The returned slice is a copy.
	perms[0] = "tampered"
	if !HasPermission(RoleAdmin, PermRouterRead) {
		t.Error("mutating the returned slice changed the role mapping")
	}

	if PermissionsForRole("owner") != nil {
		t.Error("PermissionsForRole() for unknown role should be nil")
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range ValidRoles {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = false", r)
		}
	}
	for _, r := range []Role{"", "panel", "Admin"} {
		if IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = true", r)
		}
	}
}
