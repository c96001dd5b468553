package authz

import "fmt"

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// 预置角色
const (
	RolePaymentViewer   = "payment_viewer"
	RolePaymentOperator = "payment_operator"
)

// BuiltinRoleSeeds 查看者只读，操作员在此基础上可捕获、撤销、退款并删除保存的支付方式
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: RolePaymentViewer,
			Policies: []Policy{
				{Object: "/admin/payments", Action: "GET"},
				{Object: "/admin/payments/:id", Action: "GET"},
				{Object: "/admin/orders/:id/payments", Action: "GET"},
				{Object: "/admin/gateways", Action: "GET"},
				{Object: "/admin/authz/me", Action: "GET"},
				{Object: "/admin/authz/permissions/catalog", Action: "GET"},
			},
		},
		{
			Role:     RolePaymentOperator,
			Inherits: []string{RolePaymentViewer},
			Policies: []Policy{
				{Object: "/admin/payments/:id/capture", Action: "POST"},
				{Object: "/admin/payments/:id/void", Action: "POST"},
				{Object: "/admin/payments/:id/refund", Action: "POST"},
				{Object: "/admin/payment-methods/:id", Action: "DELETE"},
			},
		},
	}
}

// BootstrapBuiltinRoles 将预置角色的继承与策略同步到库中，多余的旧策略会被移除
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return errUnavailable
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}

		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role %s to %s failed: %w", role, parentRole, err)
			}
		}

		want := make(map[Policy]struct{}, len(seed.Policies))
		for _, policy := range seed.Policies {
			normalized := Policy{Object: NormalizeObject(policy.Object), Action: NormalizeAction(policy.Action)}
			if normalized.Action == "" {
				return fmt.Errorf("builtin policy action is required for %s", role)
			}
			want[normalized] = struct{}{}
			if _, err := s.enforcer.AddPolicy(role, normalized.Object, normalized.Action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}

		existing, err := s.enforcer.GetFilteredPolicy(0, role)
		if err != nil {
			return fmt.Errorf("list policies of %s failed: %w", role, err)
		}
		for _, rule := range existing {
			if len(rule) < 3 {
				continue
			}
			if _, ok := want[Policy{Object: rule[1], Action: rule[2]}]; ok {
				continue
			}
			if _, err := s.enforcer.RemovePolicy(rule[0], rule[1], rule[2]); err != nil {
				return fmt.Errorf("remove stale policy failed: %w", err)
			}
		}
	}
	return nil
}
