package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/quecocinohoy/backend/internal/api"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/middleware"
	"github.com/quecocinohoy/backend/internal/service"
	"github.com/quecocinohoy/backend/internal/testhelpers"
	"github.com/quecocinohoy/backend/internal/types"
)

const testFrontendURL = "https://quecocinohoy.app"

type testAPI struct {
	router  *gin.Engine
	db      *gorm.DB
	gateway *testhelpers.MockPaymentGateway
	llm     *testhelpers.MockRecipeTextGenerator
	images  *testhelpers.MockImageGenerator
	auth    *service.AuthService
}

type pingOK struct{}

func (pingOK) HealthCheck(context.Context) error { return nil }

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testhelpers.SetupSQLite(t)
	log := logger.NewNop()
	ta := &testAPI{
		db:      db,
		gateway: &testhelpers.MockPaymentGateway{},
		llm:     &testhelpers.MockRecipeTextGenerator{},
		images:  &testhelpers.MockImageGenerator{},
		auth:    service.NewAuthService(db, "test-secret", time.Hour, log),
	}

	entitlements := service.NewEntitlementService(db, nil, log)
	history := service.NewHistoryService(db, log)

	router := gin.New()
	router.Use(middleware.ErrorHandler(log), middleware.Recovery())
	api.RegisterRoutes(router, api.Services{
		Auth:          ta.auth,
		Entitlements:  entitlements,
		Subscriptions: service.NewSubscriptionService(db, ta.gateway, entitlements, testFrontendURL, log),
		Recipes: service.NewRecipeService(service.RecipeServiceParams{
			LLM:          ta.llm,
			Images:       ta.images,
			Entitlements: entitlements,
			History:      history,
			Logger:       log,
		}),
		Favorites: service.NewFavoriteService(db, entitlements, log),
		Shares:    service.NewShareService(db, entitlements, testFrontendURL, log),
		History:   history,
		Health:    api.NewHealthHandler(pingOK{}, nil, log),
		Logger:    log,
	})
	ta.router = router
	return ta
}

// register creates an account and returns its token.
func (ta *testAPI) register(t *testing.T, email string) types.AuthResponse {
	t.Helper()
	w := ta.do(t, http.MethodPost, "/api/v1/auth/register", "", types.RegisterRequest{
		Name:     "Test",
		Email:    email,
		Password: "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp types.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (ta *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ta.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
