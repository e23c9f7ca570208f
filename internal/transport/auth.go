package transport

import (
	"net/http"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request) {}

// BasicAuth implements HTTP basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

// Apply implements the Authenticator interface for BasicAuth.
func (a *BasicAuth) Apply(req *http.Request) {
	req.SetBasicAuth(a.Username, a.Password)
}

// TokenAuth implements scheme-prefixed token authentication in the
// Authorization header ("Token <key>" for the remote API's token endpoint,
// "Bearer <key>" for proxies in front of it).
type TokenAuth struct {
	Scheme string
	Token  string
}

// Apply implements the Authenticator interface for TokenAuth.
func (a *TokenAuth) Apply(req *http.Request) {
	scheme := a.Scheme
	if scheme == "" {
		scheme = "Token"
	}
	req.Header.Set("Authorization", scheme+" "+a.Token)
}

// NewAuthenticator picks basic auth when a username is set, token auth when
// only a token is set, and no auth otherwise.
func NewAuthenticator(username, password, token string) Authenticator {
	switch {
	case username != "":
		return &BasicAuth{Username: username, Password: password}
	case token != "":
		return &TokenAuth{Token: token}
	default:
		return &NoAuth{}
	}
}
