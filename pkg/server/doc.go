// Package server exposes the emulator over HTTP.
//
// The route layout mirrors Microsoft Entra ID v2.0 so that unmodified MSAL
// and OIDC client libraries can point at it:
//
//	GET      /{tenant}/v2.0/.well-known/openid-configuration
//	GET      /{tenant}/discovery/v2.0/keys
//	GET/POST /{tenant}/oauth2/v2.0/authorize
//	POST     /{tenant}/oauth2/v2.0/token
//	GET/POST /{tenant}/oauth2/v2.0/logout
//	GET      /{tenant}/FederationMetadata/2007-06/FederationMetadata.xml
//	GET      /oidc/userinfo
//
// plus /, /health and /metrics. The tenant path segment is echoed into
// issuer URLs and token claims; it is never checked against a tenant list.
package server
