package ga4

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	gerr "github.com/jekabolt/grbpwr-analytics/internal/errors"
)

// Config keys read by the credential loader on every call.
const (
	KeyClientEmail     = "ga4.client_email"
	KeyPrivateKey      = "ga4.private_key"
	KeyCredentialsJSON = "ga4.credentials_json"
	KeyPropertyID      = "ga4.property_id"
)

var envByKey = map[string]string{
	KeyClientEmail:     "GA4_CLIENT_EMAIL",
	KeyPrivateKey:      "GA4_PRIVATE_KEY",
	KeyCredentialsJSON: "GA4_CREDENTIALS_JSON",
	KeyPropertyID:      "GA4_PROPERTY_ID",
}

var (
	pemBegin = regexp.MustCompile(`-----BEGIN (RSA |ENCRYPTED )?PRIVATE KEY-----`)
	pemEnd   = regexp.MustCompile(`-----END (RSA |ENCRYPTED )?PRIVATE KEY-----`)
)

// Getter is the configuration lookup the loader reads from. *viper.Viper satisfies it.
type Getter interface {
	GetString(key string) string
}

// Credential is a service-account identity ready for signing.
type Credential struct {
	PrincipalID   string
	PrivateKeyPEM string
	// TokenURI is only set when the credential came from a service-account key file.
	TokenURI string
}

// serviceAccountKey is the subset of a service-account JSON key file we use.
type serviceAccountKey struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// CredentialLoader reads the service account from configuration. It holds no state between
// calls so a rotated key is picked up by the next Load.
type CredentialLoader struct {
	cfg Getter
}

// NewCredentialLoader creates a loader over cfg.
func NewCredentialLoader(cfg Getter) *CredentialLoader {
	return &CredentialLoader{cfg: cfg}
}

// Load reads, normalizes and validates the service-account credential.
func (l *CredentialLoader) Load() (*Credential, error) {
	cred := &Credential{
		PrincipalID:   strings.TrimSpace(l.cfg.GetString(KeyClientEmail)),
		PrivateKeyPEM: l.cfg.GetString(KeyPrivateKey),
	}

	if raw := strings.TrimSpace(l.cfg.GetString(KeyCredentialsJSON)); raw != "" {
		key, err := readServiceAccountKey(raw)
		if err != nil {
			return nil, &gerr.ConfigError{
				Reason: gerr.MalformedKey,
				Field:  KeyCredentialsJSON,
				Env:    envByKey[KeyCredentialsJSON],
				Err:    err,
			}
		}
		if cred.PrincipalID == "" {
			cred.PrincipalID = key.ClientEmail
		}
		if cred.PrivateKeyPEM == "" {
			cred.PrivateKeyPEM = key.PrivateKey
		}
		cred.TokenURI = key.TokenURI
	}

	if cred.PrincipalID == "" {
		return nil, configErr(gerr.MissingPrincipal, KeyClientEmail)
	}
	cred.PrivateKeyPEM = NormalizePrivateKey(cred.PrivateKeyPEM)
	if cred.PrivateKeyPEM == "" {
		return nil, configErr(gerr.MissingKey, KeyPrivateKey)
	}
	if !pemBegin.MatchString(cred.PrivateKeyPEM) || !pemEnd.MatchString(cred.PrivateKeyPEM) {
		return nil, configErr(gerr.MalformedKey, KeyPrivateKey)
	}
	return cred, nil
}

// PropertyID returns the configured analytics property.
func (l *CredentialLoader) PropertyID() (string, error) {
	id := strings.TrimSpace(l.cfg.GetString(KeyPropertyID))
	if id == "" {
		return "", configErr(gerr.MissingProperty, KeyPropertyID)
	}
	return id, nil
}

// NormalizePrivateKey strips one layer of matching surrounding quotes and turns literal "\n"
// sequences into line breaks, undoing how multi-line PEM is usually stored in flat config.
func NormalizePrivateKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) >= 2 {
		first, last := key[0], key[len(key)-1]
		if first == last && (first == '"' || first == '\'') {
			key = key[1 : len(key)-1]
		}
	}
	return strings.TrimSpace(strings.ReplaceAll(key, `\n`, "\n"))
}

// readServiceAccountKey accepts raw JSON or a path to a key file.
func readServiceAccountKey(raw string) (*serviceAccountKey, error) {
	data := []byte(raw)
	if raw[0] != '{' {
		b, err := os.ReadFile(raw)
		if err != nil {
			return nil, fmt.Errorf("can't read service account file: %w", err)
		}
		data = b
	}
	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("can't decode service account json: %w", err)
	}
	return &key, nil
}

func configErr(reason gerr.ConfigReason, key string) error {
	return &gerr.ConfigError{Reason: reason, Field: key, Env: envByKey[key]}
}
