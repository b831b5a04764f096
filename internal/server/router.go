package server

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/radiotag/service-provider/internal/auth"
	"github.com/radiotag/service-provider/internal/identity"
	"github.com/radiotag/service-provider/internal/tags"
)

const tagPath = "/radiodns/tag/1"

var (
	errMissingVerifier   = errors.New("token verifier dependency required")
	errMissingReconciler = errors.New("identity reconciler dependency required")
	errMissingTagService = errors.New("tag service dependency required")
)

var unixSecondsPattern = regexp.MustCompile(`^\d+$`)

// TokenVerifier checks an access token with the authorization provider.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (auth.Outcome, error)
}

// IdentityReconciler persists the client and user records for a verified
// identity.
type IdentityReconciler interface {
	Reconcile(ctx context.Context, info auth.ClientInfo) (identity.Client, *identity.User, error)
}

// Dependencies wires the collaborating services into the HTTP layer.
type Dependencies struct {
	Verifier    TokenVerifier
	Reconciler  IdentityReconciler
	TagService  *tags.Service
	Challenge   ChallengeConfig
	ServiceName string
	CORS        CORSConfig
	Logger      *zap.Logger
	Clock       func() time.Time
}

// CORSConfig enables browser access to the tag endpoints.
type CORSConfig struct {
	Enabled        bool
	AllowedOrigins []string
}

// NewHTTPHandler constructs the service provider's HTTP surface.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Verifier == nil {
		return nil, errMissingVerifier
	}
	if deps.Reconciler == nil {
		return nil, errMissingReconciler
	}
	if deps.TagService == nil {
		return nil, errMissingTagService
	}
	if err := deps.Challenge.validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if deps.CORS.Enabled {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORS.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Content-Type", "Authorization", "Content-Length", "X-Requested-With"},
			ExposeHeaders:    []string{"Content-Type", "WWW-Authenticate", "Content-Length", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	handler := &httpHandler{
		verifier:    deps.Verifier,
		reconciler:  deps.Reconciler,
		tagService:  deps.TagService,
		challenge:   deps.Challenge,
		serviceName: deps.ServiceName,
		logger:      logger,
		clock:       clock,
	}

	router.GET("/status", handler.handleStatus)
	router.GET("/tags/all", handler.handleAllTags)

	protected := router.Group("/")
	protected.Use(handler.protectResource)
	protected.GET("/resource", handler.handleResource)
	protected.POST(tagPath+"/tag", handler.handlePostTag)
	protected.GET(tagPath+"/tags", handler.handleGetTags)

	return router, nil
}

type httpHandler struct {
	verifier    TokenVerifier
	reconciler  IdentityReconciler
	tagService  *tags.Service
	challenge   ChallengeConfig
	serviceName string
	logger      *zap.Logger
	clock       func() time.Time
}

func (h *httpHandler) handleStatus(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte("Service Provider up and running"))
}

// handleResource returns a greeting naming the authenticated user or client.
func (h *httpHandler) handleResource(c *gin.Context) {
	device, ok := DeviceFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	message := h.serviceName + " says: Hello "
	if user, ok := UserFromContext(c); ok {
		message += "user " + user.ID + "!"
	} else {
		message += "client " + device.ID + "!"
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

type tagRequestPayload struct {
	Bearer     string `form:"bearer" json:"bearer"`
	Time       string `form:"time" json:"time"`
	TimeSource string `form:"time_source" json:"time_source"`
}

func (h *httpHandler) handlePostTag(c *gin.Context) {
	device, ok := DeviceFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	var request tagRequestPayload
	if err := c.ShouldBind(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing/invalid bearer parameter"})
		return
	}
	if request.Bearer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing/invalid bearer parameter"})
		return
	}
	if !unixSecondsPattern.MatchString(request.Time) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing time parameter"})
		return
	}
	seconds, err := strconv.ParseInt(request.Time, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid time parameter"})
		return
	}

	tag, err := h.tagService.Create(c.Request.Context(), tags.CreateRequest{
		ClientID:    device.ID,
		Bearer:      request.Bearer,
		TimeSeconds: seconds,
		TimeSource:  request.TimeSource,
	})
	if err != nil {
		if errors.Is(err, tags.ErrInvalidBearer) || errors.Is(err, tags.ErrInvalidTime) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		h.logger.Error("failed to store tag", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	h.renderTagFeed(c, http.StatusCreated, device.ID, []tags.Tag{tag})
}

func (h *httpHandler) handleGetTags(c *gin.Context) {
	device, ok := DeviceFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	var (
		records []tags.Tag
		err     error
	)
	if device.UserID != nil {
		// All tags across this user's devices, not just the requesting one.
		records, err = h.tagService.ListForUser(c.Request.Context(), *device.UserID)
	} else {
		records, err = h.tagService.ListForClient(c.Request.Context(), device.ID)
	}
	if err != nil {
		h.logger.Error("failed to list tags", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	h.renderTagFeed(c, http.StatusOK, device.ID, records)
}

func (h *httpHandler) renderTagFeed(c *gin.Context, status int, clientID string, records []tags.Tag) {
	feed, err := tags.RenderFeed(h.serviceName, clientID, records, h.clock())
	if err != nil {
		h.logger.Error("failed to render tag feed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	c.Data(status, tags.ContentTypeAtom, feed)
}

type ownedTagPayload struct {
	Client      string `json:"client"`
	User        string `json:"user,omitempty"`
	Time        string `json:"time"`
	TimeSource  string `json:"time_source,omitempty"`
	Bearer      string `json:"bearer"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *httpHandler) handleAllTags(c *gin.Context) {
	records, err := h.tagService.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list all tags", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	payload := make([]ownedTagPayload, 0, len(records))
	for _, record := range records {
		entry := ownedTagPayload{
			Client:      record.Tag.ClientID,
			Time:        tags.FormatAtomTime(record.Tag.Time),
			TimeSource:  record.Tag.TimeSource,
			Bearer:      record.Tag.Bearer,
			Title:       record.Tag.Title(),
			Description: record.Tag.Description(),
		}
		if record.UserID != nil {
			entry.User = *record.UserID
		}
		payload = append(payload, entry)
	}

	c.JSON(http.StatusOK, gin.H{"tags": payload})
}
