package oauth

// Discovery returns the OpenID Connect discovery document for tenant.
func (i *Issuer) Discovery(tenant string) OpenIDConfiguration {
	tenant = i.tenantOrDefault(tenant)
	base := i.baseURL + "/" + tenant

	return OpenIDConfiguration{
		Issuer:                            i.IssuerURL(tenant),
		AuthorizationEndpoint:             base + "/oauth2/v2.0/authorize",
		TokenEndpoint:                     base + "/oauth2/v2.0/token",
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post", "client_secret_basic"},
		JwksURI:                           base + "/discovery/v2.0/keys",
		ResponseModesSupported:            []string{"query", "fragment", "form_post"},
		SubjectTypesSupported:             []string{"pairwise"},
		IDTokenSigningAlgValuesSupported:  []string{"RS256"},
		ResponseTypesSupported:            []string{"code", "id_token", "code id_token", "id_token token"},
		ScopesSupported:                   []string{"openid", "profile", "email", "offline_access"},
		ClaimsSupported: []string{
			"sub", "iss", "aud", "exp", "iat", "auth_time", "acr", "nonce",
			"preferred_username", "name", "tid", "ver", "at_hash", "c_hash", "email",
		},
		GrantTypesSupported: []string{
			GrantTypeAuthorizationCode,
			GrantTypeClientCredentials,
			GrantTypeRefreshToken,
			GrantTypePassword,
		},
		CodeChallengeMethodsSupported: []string{PKCEMethodPlain, PKCEMethodS256},
		RequestURIParameterSupported:  false,
		UserInfoEndpoint:              i.baseURL + "/oidc/userinfo",
		EndSessionEndpoint:            base + "/oauth2/v2.0/logout",
		HTTPLogoutSupported:           true,
		FrontchannelLogoutSupported:   true,
	}
}
