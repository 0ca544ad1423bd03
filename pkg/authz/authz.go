// Package authz is the authorization predicate for the HTTP surface. Role
// checks are a single Enforce(role, path, method) call instead of per-route
// middleware chains.
package authz

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/fx"

	"aurelia-commerce/pkg/config"
)

var Module = fx.Module("authz", fx.Provide(NewEnforcer))

const builtinModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch(r.obj, p.obj) && (p.act == "*" || r.act == p.act)
`

// builtinPolicies grants the affiliate dashboard to affiliates and admins,
// and the order, catalog and user administration surfaces to admins only.
var builtinPolicies = [][]string{
	{"affiliate", "/api/affiliate/*", "*"},
	{"admin", "/api/affiliate/*", "*"},
	{"admin", "/api/orders", "GET"},
	{"admin", "/api/orders/*", "*"},
	{"admin", "/api/products", "POST"},
	{"admin", "/api/categories", "POST"},
	{"admin", "/api/users", "GET"},
	{"admin", "/api/users/*", "*"},
}

// NewEnforcer loads model and policy files when configured, falling back to
// the built-in policy set.
func NewEnforcer(cfg *config.Config) (*casbin.Enforcer, error) {
	if cfg.AccessControl.Model != "" && cfg.AccessControl.Policy != "" {
		return casbin.NewEnforcer(cfg.AccessControl.Model, cfg.AccessControl.Policy)
	}

	m, err := model.NewModelFromString(builtinModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	for _, p := range builtinPolicies {
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, err
		}
	}
	return e, nil
}
