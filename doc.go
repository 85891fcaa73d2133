// Package softdelete adds soft deletion to a host authentication framework.
//
// Deleting a user never removes the row. The DeletionInterceptor revokes the
// user's sessions, marks the user deleted and, when enabled, registers a
// re-registration block keyed by the SHA-256 of the normalized email. It then
// vetoes the host's physical delete.
//
// Guards:
//   - SignInGuard rejects credential sign in for deleted accounts with
//     ACCOUNT_DELETED and the scheduled permanent deletion date.
//   - SignUpGuard rejects sign up while a block is live with EMAIL_BLOCKED.
//     Expired blocks are ignored and left for an external purge job.
//
// Restore:
//   - RestorationService re-verifies email and password without a session,
//     reactivates the user and releases the block. It does not sign the user
//     in.
//
// Hosts integrate through a Registry of database and request hooks and a
// Capabilities value (storage Adapter, SessionRevoker, PasswordHasher and an
// IDGenerator). The repository package provides a bun backed Adapter and
// adapters/redisstore a Redis secondary storage and restore rate limiter.
package softdelete
