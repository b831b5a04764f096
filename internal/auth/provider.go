package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RequestFormat selects which wire convention the outbound verification call
// uses. Different authorization provider generations expect different bodies;
// this is deployment configuration, not control flow.
type RequestFormat string

const (
	// RequestFormatForm posts a form-encoded body with a token field and an
	// optional service provider identifier.
	RequestFormatForm RequestFormat = "form"
	// RequestFormatJSON posts {"access_token": ..., "domain": ...} and
	// authenticates the call itself with a pre-shared provider credential.
	RequestFormatJSON RequestFormat = "json"
	// RequestFormatScoped posts {"token": ..., "scope": ...}.
	RequestFormatScoped RequestFormat = "scoped"
)

const (
	defaultVerifyTimeout  = 10 * time.Second
	defaultRejectedStatus = http.StatusUnauthorized
)

var (
	// ErrProviderUnreachable reports a transport failure or timeout while
	// calling the authorization provider. No verdict on the token exists.
	ErrProviderUnreachable = errors.New("auth: authorization provider unreachable")
	// ErrInvalidProviderResponse reports a success status whose body was not
	// a JSON object.
	ErrInvalidProviderResponse = errors.New("auth: invalid authorization provider response")
	// ErrInvalidProviderConfig reports unusable provider configuration.
	ErrInvalidProviderConfig = errors.New("auth: invalid provider config")

	errMissingAuthorizationURI = errors.New("authorization uri required")
	errBadRejectedStatus       = errors.New("rejected status must be 401 or 404")
	errUnknownRequestFormat    = errors.New("unknown request format")
)

// UnexpectedStatusError reports a provider response status outside both the
// success range and the configured rejection status.
type UnexpectedStatusError struct {
	StatusCode int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("auth: unexpected status %d from authorization provider", e.StatusCode)
}

// ClientInfo is the identity reported by the provider for a verified token.
// The user fields are empty when the token is paired in client mode only.
type ClientInfo struct {
	ClientID        string
	UserID          string
	UserDisplayName string
}

// Outcome is the verdict of a completed verification call. Authorized false
// means the provider positively rejected the token; verification failures
// that preclude a verdict are returned as errors, never as a rejection.
type Outcome struct {
	Authorized bool
	Client     ClientInfo
}

// ProviderConfig bundles configuration required to instantiate a Provider.
type ProviderConfig struct {
	// AuthorizationURI is the provider endpoint that verifies access tokens.
	AuthorizationURI string
	// AccessToken is the pre-shared credential authenticating this service
	// to the provider. Used by the json request format.
	AccessToken string
	// Domain identifies this service provider to the provider (json format).
	Domain string
	// ServiceProviderID identifies this service provider (form format).
	ServiceProviderID string
	// Scope is the requested scope (scoped format).
	Scope string
	// RequestFormat selects the outbound body convention. Defaults to form.
	RequestFormat RequestFormat
	// RejectedStatus is the status the provider uses to signal an unknown or
	// expired token: 401 or 404 depending on the provider API generation.
	// This must be configured per deployment, never assumed. Defaults to 401.
	RejectedStatus int
	// Timeout bounds the verification call. Defaults to 10s.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Provider performs outbound token verification calls against the configured
// authorization provider and maps responses into typed outcomes. It performs
// no local writes.
type Provider struct {
	config     ProviderConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewProvider constructs a provider client with validated configuration.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if strings.TrimSpace(cfg.AuthorizationURI) == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProviderConfig, errMissingAuthorizationURI)
	}

	if cfg.RejectedStatus == 0 {
		cfg.RejectedStatus = defaultRejectedStatus
	}
	if cfg.RejectedStatus != http.StatusUnauthorized && cfg.RejectedStatus != http.StatusNotFound {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProviderConfig, errBadRejectedStatus)
	}

	if cfg.RequestFormat == "" {
		cfg.RequestFormat = RequestFormatForm
	}
	switch cfg.RequestFormat {
	case RequestFormatForm, RequestFormatJSON, RequestFormatScoped:
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidProviderConfig, errUnknownRequestFormat)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultVerifyTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Provider{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Verify checks the access token with the authorization provider, per EBU
// Tech 3366, section 9.2. The call is bounded by the configured timeout; on
// expiry the token has no verdict and ErrProviderUnreachable is returned.
func (p *Provider) Verify(ctx context.Context, accessToken string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	request, err := p.buildRequest(ctx, accessToken)
	if err != nil {
		return Outcome{}, err
	}

	response, err := p.httpClient.Do(request)
	if err != nil {
		p.logger.Error("authorization provider request failed", zap.Error(err))
		return Outcome{}, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode >= 200 && response.StatusCode <= 299:
		return p.decodeAuthorized(response.Body)
	case response.StatusCode == p.config.RejectedStatus:
		// The access token is unknown or has expired.
		return Outcome{Authorized: false}, nil
	default:
		p.logger.Warn("authorization provider returned unexpected status",
			zap.Int("status", response.StatusCode))
		return Outcome{}, &UnexpectedStatusError{StatusCode: response.StatusCode}
	}
}

func (p *Provider) buildRequest(ctx context.Context, accessToken string) (*http.Request, error) {
	switch p.config.RequestFormat {
	case RequestFormatJSON:
		payload := map[string]string{
			"access_token": accessToken,
			"domain":       p.config.Domain,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		request, err := http.NewRequestWithContext(ctx, http.MethodPost,
			p.config.AuthorizationURI, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		request.Header.Set("Content-Type", "application/json")
		request.Header.Set("Authorization", "Bearer "+p.config.AccessToken)
		return request, nil

	case RequestFormatScoped:
		payload := map[string]string{
			"token": accessToken,
			"scope": p.config.Scope,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		request, err := http.NewRequestWithContext(ctx, http.MethodPost,
			p.config.AuthorizationURI, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		request.Header.Set("Content-Type", "application/json")
		return request, nil

	default: // RequestFormatForm
		form := url.Values{"token": {accessToken}}
		if p.config.ServiceProviderID != "" {
			form.Set("service_provider_id", p.config.ServiceProviderID)
		}
		request, err := http.NewRequestWithContext(ctx, http.MethodPost,
			p.config.AuthorizationURI, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return request, nil
	}
}

func (p *Provider) decodeAuthorized(body io.Reader) (Outcome, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}

	// The success body must be a JSON object; anything else is a provider
	// contract violation, not a token rejection.
	var object map[string]json.RawMessage
	if err := json.Unmarshal(raw, &object); err != nil || object == nil {
		return Outcome{}, ErrInvalidProviderResponse
	}

	var payload struct {
		ClientID    wireID `json:"client_id"`
		UserID      wireID `json:"user_id"`
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Outcome{}, ErrInvalidProviderResponse
	}

	return Outcome{
		Authorized: true,
		Client: ClientInfo{
			ClientID:        string(payload.ClientID),
			UserID:          string(payload.UserID),
			UserDisplayName: payload.DisplayName,
		},
	}, nil
}

// wireID tolerates both conventions providers use for identifiers: JSON
// numbers (older provider APIs) and JSON strings.
type wireID string

func (w *wireID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*w = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*w = wireID(value)
		return nil
	}

	var value json.Number
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*w = wireID(value.String())
	return nil
}
