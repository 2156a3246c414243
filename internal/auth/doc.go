// Package auth holds the password hashing primitives and the error taxonomy
// shared by the credential store, lockout tracker and session manager.
//
// Stored hashes come in three families, told apart by ParseHash:
//   - legacy: 64 hex characters, unsalted SHA-256 (pre-bcrypt stores);
//   - bcrypt: $2a$ / $2b$ / $2y$, the only format Hash produces;
//   - crypt(3): $1$ / $5$ / $6$, accepted when pasted in by an operator.
//
// Anything but a bcrypt hash at the current cost is rewritten on the next
// successful login.
package auth
