package session

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is reddit's OAuth2 token endpoint.
const DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"

// Credentials identify a reddit OAuth application and, for script apps, the
// account it acts as.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
	TokenURL     string
}

// NewHTTPClient returns an HTTP client that authenticates every request.
// With a username the password grant is used and a fresh token is requested
// whenever the current one expires; without one the client is app-only and
// uses the client credentials grant, which is read-only.
func NewHTTPClient(ctx context.Context, creds Credentials) (*http.Client, error) {
	if creds.ClientID == "" {
		return nil, errors.New("client id is required")
	}
	tokenURL := creds.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	base := &http.Client{Transport: &userAgentTransport{agent: creds.UserAgent, next: http.DefaultTransport}}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	if creds.Username == "" {
		cc := &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		return oauth2.NewClient(ctx, cc.TokenSource(ctx)), nil
	}

	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	src := &passwordSource{ctx: ctx, cfg: cfg, username: creds.Username, password: creds.Password}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, src)), nil
}

// passwordSource performs the resource owner password grant on every call.
// reddit does not issue refresh tokens for script apps.
type passwordSource struct {
	ctx      context.Context
	cfg      *oauth2.Config
	username string
	password string
}

func (s *passwordSource) Token() (*oauth2.Token, error) {
	return s.cfg.PasswordCredentialsToken(s.ctx, s.username, s.password)
}

type userAgentTransport struct {
	agent string
	next  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.agent == "" || req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.agent)
	return t.next.RoundTrip(r)
}
