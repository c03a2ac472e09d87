package api_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/gateway"
	"github.com/quecocinohoy/backend/internal/models"
	"github.com/quecocinohoy/backend/internal/types"
)

func TestSubscriptionLifecycleOverHTTP(t *testing.T) {
	ta := setupTestAPI(t)
	user := ta.register(t, "ana@example.com")
	userRef := user.User.ID.String()

	ta.gateway.On("CreatePreapproval", mock.Anything, mock.MatchedBy(func(r gateway.CreatePreapprovalRequest) bool {
		return r.ExternalReference == userRef &&
			r.PayerEmail == "ana@example.com" &&
			r.AutoRecurring.TransactionAmount == 29400 &&
			r.BackURL == testFrontendURL+"/premium/resultado"
	})).Return(&gateway.Preapproval{ID: "sub_1", Status: "pending", InitPoint: "https://mp.example/checkout/sub_1"}, nil).Once()

	w := ta.do(t, http.MethodPost, "/api/v1/subscriptions", user.Token, types.CreateSubscriptionRequest{PlanType: models.PlanYearly})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[types.CreateSubscriptionResponse](t, w)
	assert.True(t, created.Success)
	assert.Equal(t, "https://mp.example/checkout/sub_1", created.InitPoint)
	assert.Equal(t, "sub_1", created.SubscriptionID)

	// gateway reports the subscription as active
	ta.gateway.On("GetPreapproval", mock.Anything, "sub_1").
		Return(&gateway.Preapproval{ID: "sub_1", Status: "active", PayerEmail: "ana@example.com", ExternalReference: userRef}, nil).Once()
	w = ta.do(t, http.MethodPost, "/api/v1/webhooks/mercadopago", "", `{"type":"subscription_preapproval","data":{"id":"sub_1"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true,"outcome":"applied"}`, w.Body.String())

	w = ta.do(t, http.MethodGet, "/api/v1/subscriptions/me", user.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[types.SubscriptionStatusResponse](t, w)
	assert.True(t, status.IsPremium)
	assert.NotNil(t, status.PremiumSince)
	require.NotNil(t, status.Subscription)
	assert.Equal(t, "active", status.Subscription.Status)
	assert.Zero(t, status.Capabilities.FavoritesLimit)

	w = ta.do(t, http.MethodGet, "/api/v1/auth/me", user.Token, nil)
	assert.True(t, decode[types.UserResponse](t, w).IsPremium)

	// user cancels
	ta.gateway.On("CancelPreapproval", mock.Anything, "sub_1").Return(nil).Once()
	w = ta.do(t, http.MethodPost, "/api/v1/subscriptions/cancel", user.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = ta.do(t, http.MethodGet, "/api/v1/subscriptions/me", user.Token, nil)
	status = decode[types.SubscriptionStatusResponse](t, w)
	assert.False(t, status.IsPremium)
	assert.NotNil(t, status.PremiumEndedAt)
	assert.Equal(t, "cancelled", status.Subscription.Status)

	ta.gateway.AssertExpectations(t)
}

func TestCreateSubscription_Errors(t *testing.T) {
	ta := setupTestAPI(t)
	user := ta.register(t, "ana@example.com")

	t.Run("unauthenticated", func(t *testing.T) {
		w := ta.do(t, http.MethodPost, "/api/v1/subscriptions", "", types.CreateSubscriptionRequest{PlanType: models.PlanMonthly})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown plan", func(t *testing.T) {
		w := ta.do(t, http.MethodPost, "/api/v1/subscriptions", user.Token, `{"planType":"weekly"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("gateway failure", func(t *testing.T) {
		ta.gateway.On("CreatePreapproval", mock.Anything, mock.Anything).
			Return(nil, errors.New("connection reset")).Once()
		w := ta.do(t, http.MethodPost, "/api/v1/subscriptions", user.Token, types.CreateSubscriptionRequest{PlanType: models.PlanMonthly})
		assert.Equal(t, http.StatusBadGateway, w.Code)
		body := decode[ierr.ErrorResponse](t, w)
		assert.Equal(t, ierr.ErrCodeGateway, body.Error.Code)
		assert.True(t, body.Error.Retryable)
		assert.NotContains(t, w.Body.String(), "connection reset")
	})

	t.Run("cancel without subscription", func(t *testing.T) {
		w := ta.do(t, http.MethodPost, "/api/v1/subscriptions/cancel", user.Token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("status without subscription", func(t *testing.T) {
		w := ta.do(t, http.MethodGet, "/api/v1/subscriptions/me", user.Token, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		status := decode[types.SubscriptionStatusResponse](t, w)
		assert.Nil(t, status.Subscription)
		assert.False(t, status.IsPremium)
	})
}

func TestWebhook_AlwaysAcknowledges(t *testing.T) {
	ta := setupTestAPI(t)

	t.Run("rejects GET", func(t *testing.T) {
		w := ta.do(t, http.MethodGet, "/api/v1/webhooks/mercadopago", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
	})

	t.Run("other notification type", func(t *testing.T) {
		w := ta.do(t, http.MethodPost, "/api/v1/webhooks/mercadopago", "", `{"type":"payment","data":{"id":"123"}}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"received":true,"outcome":"ignored"}`, w.Body.String())
	})

	t.Run("garbage body", func(t *testing.T) {
		w := ta.do(t, http.MethodPost, "/api/v1/webhooks/mercadopago", "", `not json`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		ta.gateway.On("GetPreapproval", mock.Anything, "sub_ghost").
			Return(&gateway.Preapproval{ID: "sub_ghost", Status: "active"}, nil).Once()
		w := ta.do(t, http.MethodPost, "/api/v1/webhooks/mercadopago", "", `{"type":"subscription_preapproval","data":{"id":"sub_ghost"}}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"received":true,"outcome":"unresolvable"}`, w.Body.String())
	})

	t.Run("gateway failure", func(t *testing.T) {
		ta.gateway.On("GetPreapproval", mock.Anything, "sub_err").
			Return(nil, ierr.NewError("mp down").Mark(ierr.ErrGateway)).Once()
		w := ta.do(t, http.MethodPost, "/api/v1/webhooks/mercadopago", "", `{"type":"subscription_preapproval","data":{"id":"sub_err"}}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
