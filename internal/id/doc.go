// Package id is the canonical source of identifiers in mockidp.
//
//   - UUID: random v4 UUIDs (github.com/google/uuid) for user and
//     application ids and the per-token "uti" claim
//   - Token: URL-safe opaque values for authorization codes, refresh
//     tokens and the "aio"/"rh" correlation claims
//   - Short: 16-character hex ids for log correlation
//
// All randomness comes from crypto/rand.
package id
