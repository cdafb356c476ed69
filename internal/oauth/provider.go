// Package oauth drives the OAuth2 authorization-code flow against the
// configured identity providers. One Authenticator is constructed per
// inbound request; shared state lives in the session store.
package oauth

// Provider is the immutable endpoint configuration for one identity
// provider. Variants are data, not types: Discord and the SS14 account
// service differ only in these fields. A Provider missing endpoint paths is
// a stub; the affected operations answer 400.
type Provider struct {
	// Name is the endpoint mount name ("ss14wa", "dwa") and the provider
	// half of the session key.
	Name string

	Issuer        string
	AuthorizePath string
	TokenPath     string
	UserinfoPath  string
	RevokePath    string

	Scope        string
	ClientID     string
	ClientSecret string
}

func (p Provider) CanLogin() bool    { return p.Issuer != "" && p.AuthorizePath != "" }
func (p Provider) CanExchange() bool { return p.Issuer != "" && p.TokenPath != "" }
func (p Provider) CanUserinfo() bool { return p.Issuer != "" && p.UserinfoPath != "" }
func (p Provider) CanRevoke() bool   { return p.Issuer != "" && p.RevokePath != "" }

func (p Provider) authorizeURL() string { return p.Issuer + p.AuthorizePath }
func (p Provider) tokenURL() string     { return p.Issuer + p.TokenPath }
func (p Provider) userinfoURL() string  { return p.Issuer + p.UserinfoPath }
func (p Provider) revokeURL() string    { return p.Issuer + p.RevokePath }

// SS14Provider is the SpaceStation14 account service (OIDC-style paths).
func SS14Provider(clientID, clientSecret string) Provider {
	return Provider{
		Name:          "ss14wa",
		Issuer:        "https://account.spacestation14.com",
		AuthorizePath: "/connect/authorize",
		TokenPath:     "/connect/token",
		UserinfoPath:  "/connect/userinfo",
		RevokePath:    "/connect/revocation",
		Scope:         "openid profile email",
		ClientID:      clientID,
		ClientSecret:  clientSecret,
	}
}

// DiscordProvider is Discord's OAuth2 surface. "identify" is enough to read
// the linked account's id and username.
func DiscordProvider(clientID, clientSecret string) Provider {
	return Provider{
		Name:          "dwa",
		Issuer:        "https://discord.com/api",
		AuthorizePath: "/oauth2/authorize",
		TokenPath:     "/oauth2/token",
		UserinfoPath:  "/users/@me",
		RevokePath:    "/oauth2/token/revoke",
		Scope:         "identify",
		ClientID:      clientID,
		ClientSecret:  clientSecret,
	}
}
