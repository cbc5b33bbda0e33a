// Package keys owns the emulator's RSA signing identity.
//
// Open loads private_key.pem (PKCS#8) and public_key.pem (PKIX) from a
// directory, or generates a 2048-bit pair and writes both when either is
// missing. A gofrs/flock lock on <dir>/.lock serialises that step across
// processes. The key never rotates.
//
// The key id is derived from the public key alone:
//
//	base64url(SHA-256(DER(SubjectPublicKeyInfo))[:8])
//
// Sign produces RS256 JWTs with the kid header; Verify accepts only RS256
// signatures from the same key and reports every failure as
// ErrInvalidToken. PublicKeySet renders the go-jose JSONWebKeySet served
// at /{tenant}/discovery/v2.0/keys.
package keys
