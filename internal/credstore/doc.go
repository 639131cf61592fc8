// Package credstore persists gateway credential profiles on the operator's
// machine.
//
// Profiles live in a SQLite database under the clawlink state directory.
// Token and password columns are encrypted with NaCl secretbox under a
// 32-byte key generated on first use and stored beside the database with
// mode 0600. Endpoint and email stay in the clear so listings work without
// decryption.
package credstore
