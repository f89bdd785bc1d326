// Package auth implements stateless bearer-token authentication for the
// classroom service.
//
// # Tokens
//
// TokenCodec issues compact HS256 JWTs carrying the username (sub), the role
// claim, iat and exp (iat + 24h by default). Nothing is stored server side, so
// a token cannot be revoked before it expires.
//
//	codec, err := auth.NewTokenCodec(auth.TokenConfig{SigningKey: key})
//	token, err := codec.Issue(auth.Principal{Username: "alice", Role: auth.RoleStudent})
//	ok := codec.IsValid(token, "alice")
//
// Keys shorter than 32 bytes are refused with ErrWeakSigningKey. Tokens signed
// with any algorithm other than HS256 fail with ErrTokenSignatureInvalid.
//
// # Credentials
//
// CredentialVerifier compares bcrypt hashes. Unknown users and wrong passwords
// both yield ErrInvalidCredentials and cost the same bcrypt work.
//
// # Identity Resolution
//
// IdentityResolver validates a token and re-reads the user from the UserStore
// on every request. The role in the token is advisory: a role change in the
// store takes effect for tokens already issued. An optional PrincipalCache
// skips the store read for repeat tokens; callers that change roles or delete
// users must call Invalidate.
//
// # Registration
//
// Registrar creates accounts with STUDENT as the default role. Duplicate
// usernames and emails return ErrDuplicateUsername and ErrDuplicateEmail,
// both of which wrap ErrDuplicateIdentity. SeedAdmin bootstraps the first
// administrator.
//
// # Errors
//
// StatusCode maps the package's sentinel errors onto HTTP status codes.
package auth
