package authz

import "fmt"

// Built-in roles. Super admins bypass casbin entirely.
const (
	RoleViewer     = "viewer"
	RoleOperations = "operations"
	RoleFinance    = "finance"
)

// RoleSeed built-in role with its allow list
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds shop roles: viewer reads everything, operations runs fulfillment
// and the catalog, finance owns payment overrides and gateway settings
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: RoleViewer,
			Policies: []Policy{
				{Object: "/admin/*", Action: "GET"},
			},
		},
		{
			Role:     RoleOperations,
			Inherits: []string{RoleViewer},
			Policies: []Policy{
				{Object: "/admin/orders/:id/status", Action: "PATCH"},
				{Object: "/admin/products", Action: "POST"},
				{Object: "/admin/products/:id", Action: "*"},
				{Object: "/admin/notifications/test-sms", Action: "POST"},
				{Object: "/admin/notifications/sms", Action: "POST"},
			},
		},
		{
			Role:     RoleFinance,
			Inherits: []string{RoleViewer},
			Policies: []Policy{
				{Object: "/admin/orders/:id/payment-status", Action: "PATCH"},
				{Object: "/admin/orders/:id/mpesa-query", Action: "POST"},
				{Object: "/admin/settings/mpesa_config", Action: "PUT"},
			},
		},
	}
}

// BootstrapBuiltinRoles idempotently writes the built-in roles and policies
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := s.EnsureRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role %s to %s failed: %w", role, parentRole, err)
			}
		}
		for _, policy := range seed.Policies {
			if err := s.GrantRolePolicy(role, policy.Object, policy.Action); err != nil {
				return err
			}
		}
	}
	return nil
}
