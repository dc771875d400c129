// Package rbac maps reviewer roles to triage permissions.
package rbac

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission string

const (
	PermPredictionsView  Permission = "predictions.view"
	PermPredictionsWrite Permission = "predictions.write"
	PermReportsSubmit    Permission = "reports.submit"
	PermSessionsManage   Permission = "sessions.manage"
)

const (
	RoleReviewer = "reviewer"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

const modelText = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj
`

var grants = [][2]string{
	{RoleReviewer, string(PermPredictionsView)},
	{RoleOperator, string(PermPredictionsView)},
	{RoleOperator, string(PermPredictionsWrite)},
	{RoleOperator, string(PermReportsSubmit)},
	{RoleAdmin, string(PermPredictionsView)},
	{RoleAdmin, string(PermPredictionsWrite)},
	{RoleAdmin, string(PermReportsSubmit)},
	{RoleAdmin, string(PermSessionsManage)},
}

type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	for _, g := range grants {
		if _, err := e.AddPolicy(g[0], g[1]); err != nil {
			return nil, fmt.Errorf("rbac grant %s->%s: %w", g[0], g[1], err)
		}
	}
	return &Policy{enforcer: e}, nil
}

// Allowed reports whether any of the roles carries the permission.
func (p *Policy) Allowed(roles []string, perm Permission) bool {
	for _, role := range roles {
		ok, err := p.enforcer.Enforce(role, string(perm))
		if err == nil && ok {
			return true
		}
	}
	return false
}

// KnownRole filters role names to the ones the policy grants anything to.
func KnownRole(role string) bool {
	switch role {
	case RoleReviewer, RoleOperator, RoleAdmin:
		return true
	}
	return false
}
