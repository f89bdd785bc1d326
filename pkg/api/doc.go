// Package api is the classroom HTTP surface.
//
// NewServer mounts every route on a gorilla/mux router and wraps it in the
// request pipeline: request ID, logging, panic recovery, optional tracing,
// then the Authenticator (bearer token to principal, fail-open to anonymous)
// and the rbac Enforcer (route class to 401/403). Handlers therefore only see
// requests the policy has already admitted.
//
//	POST   /auth/login                            public, rate limited
//	POST   /auth/register                         public entry, handler requires ADMIN
//	POST   /admin/users                           ADMIN
//	GET    /admin/users                           ADMIN
//	PUT    /admin/users/{username}/role           ADMIN
//	DELETE /admin/users/{username}                ADMIN
//	POST   /admin/assignments                     ADMIN
//	POST   /admin/solutions/{id}/marks            ADMIN
//	GET    /assignments                           authenticated
//	GET    /assignments/{id}                      authenticated
//	POST   /student/assignments/{id}/solutions    STUDENT
//	GET    /student/solutions                     STUDENT
//	GET    /user/profile                          authenticated
//	GET    /healthz, /readyz                      public
//
// Role changes and deletions invalidate the resolver's principal cache so the
// next request with an existing token sees the new role.
package api
