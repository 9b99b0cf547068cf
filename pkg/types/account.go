package types

type PermissionRole string

const (
	PermissionRoleRoot          PermissionRole = "ROOT"
	PermissionRoleAdministrator PermissionRole = "ADMINISTRATOR"
	PermissionRoleModerator     PermissionRole = "MODERATOR"
	PermissionRoleCustomer      PermissionRole = "CUSTOMER"
)

// Privileged reports whether the role may perform administrative actions
// (webhook registration, product provisioning).
func (r PermissionRole) Privileged() bool {
	return r == PermissionRoleRoot || r == PermissionRoleAdministrator
}
