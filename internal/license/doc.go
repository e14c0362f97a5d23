// Package license implements the license file manager of the ESMC SDK.
//
// The license record is plaintext JSON at a well-known path so that process
// startup can gate feature tiers with a single unencrypted read. Trust in
// the record comes from two layers above the file contents:
//
//   - the blessing token, a structural tamper-evidence marker binding the
//     tier to a device and an expiry, checked offline
//   - the vercel checksum, a server-rotated freshness value revalidated
//     against the remote authority, which the server can rotate to revoke
//
// # Read-path downgrade
//
// An on-disk record whose subscription window has passed is returned
// downgraded to FREE with an "expired" status; the file itself is never
// mutated by a read. Writes are always full overwrites.
//
// # Path resolution
//
// The license directory is discovered by walking upward from a caller
// supplied starting directory to a project marker, synthesizing the .esmc
// substructure when absent. Resolution always yields a usable path.
package license
