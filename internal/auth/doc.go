// Package auth provides API token issuing and authorisation for Gray Logic Tracker.
//
// Tokens are HS256-signed JWTs carrying a subject and a role. There is no
// user database: operators mint tokens offline with the configured secret
// (graytracker -token <subject>) and present them as bearer tokens.
//
// Three roles exist (viewer → operator → admin) with a static
// role-permission mapping:
//   - viewer reads router and tracker state
//   - operator additionally refreshes routers and toggles internet access
//   - admin additionally reboots, reconnects, upgrades firmware, cleans up
//     entities and reads the audit log
package auth
