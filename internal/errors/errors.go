package gerr

import (
	"errors"
	"fmt"
	"net/http"
)

// ConfigReason tells which piece of configuration is missing or broken.
type ConfigReason string

const (
	MissingPrincipal ConfigReason = "missing_principal"
	MissingKey       ConfigReason = "missing_key"
	MalformedKey     ConfigReason = "malformed_key"
	MissingProperty  ConfigReason = "missing_property"
)

// ConfigError is returned when the service-account configuration is unusable.
type ConfigError struct {
	Reason ConfigReason
	Field  string // config key
	Env    string // env var that sets Field
	Err    error
}

func (e *ConfigError) Error() string {
	var msg string
	switch e.Reason {
	case MissingPrincipal:
		msg = "service account principal is not configured"
	case MissingKey:
		msg = "service account private key is not configured"
	case MalformedKey:
		msg = "service account private key is not a PEM private key (BEGIN/END PRIVATE KEY markers not found)"
	case MissingProperty:
		msg = "analytics property id is not configured"
	default:
		msg = "invalid analytics configuration"
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: set %s (env %s)", msg, e.Field, e.Env)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SigningError wraps a cryptographic failure while building an assertion.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("can't sign jwt assertion: %v", e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// AuthReason classifies token endpoint failures.
type AuthReason string

const (
	Rejected          AuthReason = "rejected"
	MalformedResponse AuthReason = "malformed_response"
	Transport         AuthReason = "transport"
)

// AuthError is returned when the token endpoint refuses the assertion or answers with nonsense.
// Message holds the provider's own description verbatim.
type AuthError struct {
	Reason     AuthReason
	Message    string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	switch e.Reason {
	case Rejected:
		return fmt.Sprintf("token endpoint rejected assertion (status %d): %s", e.StatusCode, e.Message)
	case MalformedResponse:
		if e.Err != nil {
			return fmt.Sprintf("token endpoint returned malformed response (status %d): %v", e.StatusCode, e.Err)
		}
		return fmt.Sprintf("token endpoint returned no access token (status %d)", e.StatusCode)
	default:
		return fmt.Sprintf("token exchange failed: %v", e.Err)
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

// QueryError is a failed report query. Status and Message come from the provider's error body.
type QueryError struct {
	Report  string
	Code    int
	Status  string
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("report %q failed: %s (%d %s)", e.Report, e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("report %q failed: %v", e.Report, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Stage is the orchestration step a GatewayError came from.
type Stage string

const (
	StageConfig   Stage = "config"
	StageAuth     Stage = "auth"
	StageOverview Stage = "overview"
)

// GatewayError is the single fatal error a summary call surfaces.
type GatewayError struct {
	Stage Stage
	Err   error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("analytics %s step failed: %v", e.Stage, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// HTTPStatus maps an error returned by the gateway to a response status.
func HTTPStatus(err error) int {
	var ge *GatewayError
	if !errors.As(err, &ge) {
		return http.StatusInternalServerError
	}
	switch ge.Stage {
	case StageAuth, StageOverview:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
