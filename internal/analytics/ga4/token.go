package ga4

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gerr "github.com/jekabolt/grbpwr-analytics/internal/errors"
	"golang.org/x/oauth2"
)

const (
	// DefaultTokenURL is the provider's OAuth2 token endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"
	jwtBearerGrant  = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	// defaultTokenLifetime applies when the endpoint omits expires_in.
	defaultTokenLifetime = time.Hour
	maxTokenBody         = 1 << 20
)

// AccessToken is a short-lived bearer token.
type AccessToken struct {
	Value      string
	Type       string
	ObtainedAt time.Time
	ExpiresAt  time.Time
}

// ValidAt reports whether the token can still be used at now with leeway to spare.
func (t *AccessToken) ValidAt(now time.Time, leeway time.Duration) bool {
	return t != nil && t.Value != "" && now.Add(leeway).Before(t.ExpiresAt)
}

// OAuth2 converts the token for use with oauth2 transports.
func (t *AccessToken) OAuth2() *oauth2.Token {
	typ := t.Type
	if typ == "" {
		typ = "Bearer"
	}
	return &oauth2.Token{AccessToken: t.Value, TokenType: typ, Expiry: t.ExpiresAt}
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TokenExchanger trades a signed assertion for an access token.
type TokenExchanger struct {
	client *http.Client
	now    func() time.Time
}

// NewTokenExchanger creates an exchanger with the given request timeout.
func NewTokenExchanger(timeout time.Duration) *TokenExchanger {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &TokenExchanger{
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// Exchange posts the assertion to tokenURL. It never retries.
func (e *TokenExchanger) Exchange(ctx context.Context, assertion *Assertion, tokenURL string) (*AccessToken, error) {
	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &gerr.AuthError{Reason: gerr.Transport, Err: fmt.Errorf("failed to create POST request to %s: %w", tokenURL, err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &gerr.AuthError{Reason: gerr.Transport, Err: fmt.Errorf("failed to POST to %s: %w", tokenURL, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return nil, &gerr.AuthError{Reason: gerr.Transport, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read token response: %w", err)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		slog.Default().ErrorContext(ctx, "token endpoint returned non-json body",
			slog.Int("status", resp.StatusCode),
			slog.String("body", truncate(string(body), 256)),
		)
		return nil, &gerr.AuthError{Reason: gerr.MalformedResponse, StatusCode: resp.StatusCode, Err: err}
	}

	if tr.Error != "" {
		msg := tr.ErrorDescription
		if msg == "" {
			msg = tr.Error
		}
		return nil, &gerr.AuthError{Reason: gerr.Rejected, StatusCode: resp.StatusCode, Message: msg}
	}
	if tr.AccessToken == "" {
		var err error
		if resp.StatusCode >= http.StatusBadRequest {
			err = errors.New(http.StatusText(resp.StatusCode))
		}
		return nil, &gerr.AuthError{Reason: gerr.MalformedResponse, StatusCode: resp.StatusCode, Err: err}
	}

	now := e.now()
	lifetime := defaultTokenLifetime
	if tr.ExpiresIn > 0 {
		lifetime = time.Duration(tr.ExpiresIn) * time.Second
	}
	return &AccessToken{
		Value:      tr.AccessToken,
		Type:       tr.TokenType,
		ObtainedAt: now,
		ExpiresAt:  now.Add(lifetime),
	}, nil
}

// TokenProvider hands out a bearer token for the report queries.
type TokenProvider interface {
	Token(ctx context.Context) (*AccessToken, error)
}

// Authenticator runs load → sign → exchange on every call.
type Authenticator struct {
	loader    *CredentialLoader
	signer    Signer
	exchanger *TokenExchanger
	tokenURL  string
	scope     string
	now       func() time.Time
}

// NewAuthenticator wires the credential pipeline together. Empty tokenURL and scope take the defaults.
func NewAuthenticator(loader *CredentialLoader, signer Signer, exchanger *TokenExchanger, tokenURL, scope string) *Authenticator {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if scope == "" {
		scope = ReadonlyScope
	}
	return &Authenticator{
		loader:    loader,
		signer:    signer,
		exchanger: exchanger,
		tokenURL:  tokenURL,
		scope:     scope,
		now:       time.Now,
	}
}

// Token implements TokenProvider. Errors are *gerr.ConfigError, *gerr.SigningError or *gerr.AuthError.
func (a *Authenticator) Token(ctx context.Context) (*AccessToken, error) {
	cred, err := a.loader.Load()
	if err != nil {
		return nil, err
	}

	tokenURL := a.tokenURL
	if cred.TokenURI != "" {
		tokenURL = cred.TokenURI
	}

	assertion, err := a.signer.Sign(cred, a.scope, tokenURL, a.now())
	if err != nil {
		return nil, err
	}

	tok, err := a.exchanger.Exchange(ctx, assertion, tokenURL)
	if err != nil {
		return nil, err
	}

	slog.Default().DebugContext(ctx, "obtained analytics access token",
		slog.String("principal", cred.PrincipalID),
		slog.Time("expires_at", tok.ExpiresAt),
	)
	return tok, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
