// Package identity manages accounts keyed by email: registration with a
// hashed secret, login that issues a signed session token, token based
// authentication and email verification.
//
// Lifecycle:
//   - Register creates an unverified account. ConfirmEmailVerification moves
//     it to verified, confirming twice is a no-op.
//   - Admin and ApplicationComplete are independent flags owned by the
//     application.
//
// Storage:
//   - Directory is the lookup layer. MemoryDirectory keeps records in
//     process, repository.AccountRepository stores them with Bun on SQLite
//     or PostgreSQL. Both enforce unique emails on Insert.
//
// Tokens:
//   - TokenService signs HS256 JWTs. The subject carries an account id for
//     session tokens and an email for verification tokens, the kind claim
//     keeps one from being accepted as the other.
//
// Activity sinks:
//   - ActivitySink receives registration, login, verification and profile
//     events. Sinks run best effort, errors are logged.
package identity
