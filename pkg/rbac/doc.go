// Package rbac decides which callers may reach which routes.
//
// Every route falls into one access class:
//
//	AccessPublic          - anyone, anonymous included
//	AccessAuthenticated   - any principal (the default for unmatched routes)
//	AccessRoleRestricted  - a principal holding a specific role
//
// A Policy is an ordered list of Rules matched by exact path or by prefix.
// The most specific match wins: exact beats prefix, longer beats shorter.
// DefaultPolicy makes login, the registration entry point and the health
// probes public, puts /admin/ behind ADMIN and /student/ behind STUDENT.
//
//	policy, err := rbac.LoadPolicyFile(cfg.PolicyFile) // YAML rules ahead of the defaults
//	router.Use(authn.Handler, rbac.NewEnforcer(policy).Handler)
//
// A missing principal yields 401 and a wrong role 403, with generic bodies.
// Handlers that need a role check of their own use Evaluate with RequireRole.
package rbac
