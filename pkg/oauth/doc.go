// Package oauth is the token engine of the emulator.
//
// It owns the two in-memory stores and the request state machines:
//
//   - CodeStore: single-use authorization codes (default TTL 600s).
//   - RefreshStore: refresh tokens (default TTL 14 days), bound to a client
//     and not consumed on use.
//   - Issuer: builds access, ID and client-credentials claim sets in the
//     Entra ID v2.0 shape and signs them through a Signer.
//   - Dispatcher: runs a parsed Grant against the stores and the issuer.
//   - Authorizer: authenticates a user at the authorize endpoint and mints
//     a code.
//   - UserInfoService: resolves the user behind an access token.
//   - Sweeper: purges expired store entries on an interval.
//
// # Grants
//
// Token requests are parsed once, at the HTTP boundary, into one of four
// Grant variants:
//
//	grant, err := oauth.ParseGrant(r.PostForm, basic)
//	if err != nil {
//	    // unsupported_grant_type or invalid_request
//	}
//	resp, err := dispatcher.Exchange(ctx, tenant, grant)
//
// Exchange resolves the client first, then checks the variant's required
// fields, and only then touches a store. Every failure is an *Error whose
// Code is the OAuth error string; errors.Is compares codes, so
//
//	errors.Is(err, oauth.ErrInvalidGrant)
//
// holds for any invalid_grant regardless of its description. Store-level
// causes (expired, mismatched, PKCE failure) are logged at debug level and
// reported to callers only as invalid_grant.
//
// # PKCE
//
// PKCELenient (the default) records code_challenge but never checks it.
// PKCEStrict requires and checks code_verifier with S256 or plain.
package oauth
