package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/radiotag/service-provider/internal/auth"
	"github.com/radiotag/service-provider/internal/identity"
	"github.com/radiotag/service-provider/internal/tags"
)

type stubVerifier struct {
	outcome auth.Outcome
	err     error
	calls   int
}

func (s *stubVerifier) Verify(ctx context.Context, accessToken string) (auth.Outcome, error) {
	s.calls++
	return s.outcome, s.err
}

type countingReconciler struct {
	inner *identity.Reconciler
	calls int
}

func (c *countingReconciler) Reconcile(ctx context.Context, info auth.ClientInfo) (identity.Client, *identity.User, error) {
	c.calls++
	return c.inner.Reconcile(ctx, info)
}

type testEnv struct {
	handler    http.Handler
	db         *gorm.DB
	verifier   *stubVerifier
	reconciler *countingReconciler
	tagService *tags.Service
}

func newTestEnv(t *testing.T, verifier *stubVerifier, style ChallengeStyle) *testEnv {
	return buildTestEnv(t, verifier, style, CORSConfig{})
}

func newTestEnvWithCORS(t *testing.T, origins []string) *testEnv {
	return buildTestEnv(t, &stubVerifier{}, ChallengeStyleHeader, CORSConfig{
		Enabled:        true,
		AllowedOrigins: origins,
	})
}

func buildTestEnv(t *testing.T, verifier *stubVerifier, style ChallengeStyle, corsConfig CORSConfig) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&identity.User{}, &identity.Client{}, &tags.Tag{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	inner, err := identity.NewReconciler(identity.ReconcilerConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create reconciler: %v", err)
	}
	reconciler := &countingReconciler{inner: inner}

	tagService, err := tags.NewService(tags.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create tag service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Verifier:   verifier,
		Reconciler: reconciler,
		TagService: tagService,
		Challenge: ChallengeConfig{
			ProviderName:      "Example AP",
			ProviderBaseURI:   "https://ap.example.com",
			AuthorizationURI:  "https://ap.example.com/authorized",
			Modes:             []string{"client", "user"},
			Style:             style,
			ServiceProviderID: "example_service_provider",
		},
		ServiceName: "Example SP",
		CORS:        corsConfig,
	})
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}

	return &testEnv{
		handler:    handler,
		db:         db,
		verifier:   verifier,
		reconciler: reconciler,
		tagService: tagService,
	}
}

func (e *testEnv) get(t *testing.T, path, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	if authorization != "" {
		request.Header.Set("Authorization", authorization)
	}
	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, request)
	return recorder
}

func (e *testEnv) postForm(t *testing.T, path, authorization, body string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if authorization != "" {
		request.Header.Set("Authorization", authorization)
	}
	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, request)
	return recorder
}

func (e *testEnv) countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := e.db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return count
}

func authorizedOutcome(clientID, userID, displayName string) auth.Outcome {
	return auth.Outcome{
		Authorized: true,
		Client: auth.ClientInfo{
			ClientID:        clientID,
			UserID:          userID,
			UserDisplayName: displayName,
		},
	}
}
