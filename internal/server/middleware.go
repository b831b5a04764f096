package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/radiotag/service-provider/internal/auth"
	"github.com/radiotag/service-provider/internal/identity"
)

const (
	deviceContextKey = "sp_device"
	userContextKey   = "sp_user"
)

// ChallengeStyle selects how a 401 advertises the authorization provider:
// via the CPA WWW-Authenticate header with an empty body, or via a JSON body
// hint as used by older provider generations. The header is set in both
// styles.
type ChallengeStyle string

const (
	// ChallengeStyleHeader responds with the CPA header and an empty body.
	ChallengeStyleHeader ChallengeStyle = "header"
	// ChallengeStyleBody additionally carries authorization_uri and
	// service_provider_id hints in a JSON body.
	ChallengeStyleBody ChallengeStyle = "body"
)

var errInvalidChallengeConfig = errors.New("server: invalid challenge config")

// ChallengeConfig describes the authorization provider advertised to
// unauthenticated callers.
type ChallengeConfig struct {
	ProviderName      string
	ProviderBaseURI   string
	AuthorizationURI  string
	Modes             []string
	Style             ChallengeStyle
	ServiceProviderID string
}

func (c ChallengeConfig) validate() error {
	switch c.Style {
	case ChallengeStyleHeader, ChallengeStyleBody:
		return nil
	default:
		return errInvalidChallengeConfig
	}
}

// protectResource verifies the bearer token of an inbound request with the
// authorization provider and reconciles the reported identity into local
// records before handing over to the wrapped handler.
//
// The branching is strict: an absent header or a provider rejection yields a
// 401 challenge; a present-but-malformed header yields a 400; a verification
// or storage failure yields a 500 with no writes visible. Only a completed
// verification and reconciliation reaches the downstream handler, with the
// device (and user, when paired in user mode) attached to the request
// context.
func (h *httpHandler) protectResource(c *gin.Context) {
	token, state := auth.ExtractAccessToken(c.GetHeader("Authorization"))
	switch state {
	case auth.TokenAbsent:
		h.abortUnauthorized(c)
		return
	case auth.TokenMalformed:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Missing access token",
		})
		return
	}

	outcome, err := h.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		// No verdict on the token; never degrade this into a rejection.
		h.logger.Error("token verification failed", zap.Error(err))
		h.abortServerError(c)
		return
	}
	if !outcome.Authorized {
		h.abortUnauthorized(c)
		return
	}

	device, user, err := h.reconciler.Reconcile(c.Request.Context(), outcome.Client)
	if err != nil {
		h.logger.Error("identity reconciliation failed", zap.Error(err))
		h.abortServerError(c)
		return
	}

	c.Set(deviceContextKey, device)
	if user != nil {
		c.Set(userContextKey, *user)
	} else {
		// Advertise the remaining modes so the client can elevate from
		// client mode to user mode.
		h.setChallengeHeader(c, false)
	}

	c.Next()
}

func (h *httpHandler) setChallengeHeader(c *gin.Context, includeClientMode bool) {
	value := auth.BuildChallenge(
		h.challenge.ProviderName,
		h.challenge.ProviderBaseURI,
		h.challenge.Modes,
		includeClientMode,
	)
	if value != "" {
		c.Header("WWW-Authenticate", value)
	}
}

func (h *httpHandler) abortUnauthorized(c *gin.Context) {
	h.setChallengeHeader(c, true)

	if h.challenge.Style == ChallengeStyleBody {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":               "unauthorized",
			"authorization_uri":   h.challenge.AuthorizationURI,
			"service_provider_id": h.challenge.ServiceProviderID,
		})
		return
	}

	c.AbortWithStatus(http.StatusUnauthorized)
}

func (h *httpHandler) abortServerError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
}

// DeviceFromContext returns the client record the middleware resolved for
// this request.
func DeviceFromContext(c *gin.Context) (identity.Client, bool) {
	value, ok := c.Get(deviceContextKey)
	if !ok {
		return identity.Client{}, false
	}
	device, ok := value.(identity.Client)
	return device, ok
}

// UserFromContext returns the user record the middleware resolved for this
// request, when the token was paired in user mode.
func UserFromContext(c *gin.Context) (identity.User, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return identity.User{}, false
	}
	user, ok := value.(identity.User)
	return user, ok
}
