// Package apitoken validates write authorization for the membership API.
//
// Two credential forms are accepted:
//   - the static API key, via X-API-Key or Authorization: Bearer
//   - an HS256 JWT signed with auth.jwt_secret carrying "members:write"
//     in its space-separated scope claim
package apitoken

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// ScopeMembersWrite authorizes mutations of the verified-member list.
const ScopeMembersWrite = "members:write"

var (
	ErrNoCredentials = errors.New("apitoken: no credentials presented")
	ErrInvalid       = errors.New("apitoken: invalid credentials")
	ErrScope         = errors.New("apitoken: missing required scope")
)

// Validator checks inbound write credentials.
// APIKey and JWTSecret are read-only after startup.
type Validator struct {
	APIKey    string
	JWTSecret []byte
}

// Authorize validates the request's credentials for the given scope.
func (v *Validator) Authorize(r *http.Request, scope string) error {
	cred := strings.TrimSpace(r.Header.Get("X-API-Key"))
	if cred == "" {
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
			cred = strings.TrimSpace(after)
		}
	}
	if cred == "" {
		return ErrNoCredentials
	}

	if v.APIKey != "" && subtle.ConstantTimeCompare([]byte(cred), []byte(v.APIKey)) == 1 {
		return nil
	}

	if len(v.JWTSecret) > 0 {
		return v.authorizeJWT(cred, scope)
	}
	return ErrInvalid
}

func (v *Validator) authorizeJWT(raw, scope string) error {
	tk, err := jwtv5.Parse(raw, func(t *jwtv5.Token) (any, error) {
		return v.JWTSecret, nil
	}, jwtv5.WithValidMethods([]string{"HS256"}))
	if err != nil || !tk.Valid {
		return ErrInvalid
	}
	claims, ok := tk.Claims.(jwtv5.MapClaims)
	if !ok {
		return ErrInvalid
	}
	scp, _ := claims["scope"].(string)
	for _, s := range strings.Fields(scp) {
		if s == scope {
			return nil
		}
	}
	return ErrScope
}
