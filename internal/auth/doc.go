// Package auth handles operator tokens for the gateway link.
//
// # Token Format
//
// Tokens are JWTs signed with HS256. The subject claim carries the operator
// identity (usually an email address); iat and exp bound the token's
// lifetime. Tokens minted here carry the "clawlink" issuer; verification
// tolerates issuerless tokens, since gateways mint their own.
//
// # Roles
//
// The real gateway signs and verifies tokens. On the clawlink side the
// package serves two jobs:
//
//   - The fake gateway and the `clawlink token create` subcommand mint and
//     verify tokens with a shared secret, for local development.
//
//   - Inspect decodes a token without the secret so `clawlink status` can
//     show the configured identity and expiry. Inspection proves nothing;
//     only the gateway's verification does.
package auth
