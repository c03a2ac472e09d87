package service_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/gateway"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/models"
	"github.com/quecocinohoy/backend/internal/service"
	"github.com/quecocinohoy/backend/internal/testhelpers"
	"github.com/quecocinohoy/backend/internal/types"
)

type subscriptionFixture struct {
	db  *gorm.DB
	gw  *testhelpers.MockPaymentGateway
	svc *service.SubscriptionService
}

func newSubscriptionFixture(t *testing.T) *subscriptionFixture {
	t.Helper()
	db := testhelpers.SetupSQLite(t)
	gw := &testhelpers.MockPaymentGateway{}
	log := logger.NewNop()
	ents := service.NewEntitlementService(db, nil, log)
	return &subscriptionFixture{
		db:  db,
		gw:  gw,
		svc: service.NewSubscriptionService(db, gw, ents, "https://app.test", log),
	}
}

func (f *subscriptionFixture) entitlement(t *testing.T, userID uuid.UUID) models.Entitlement {
	t.Helper()
	var ent models.Entitlement
	err := f.db.Where("user_id = ?", userID).First(&ent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Entitlement{UserID: userID}
	}
	require.NoError(t, err)
	return ent
}

func (f *subscriptionFixture) ledger(t *testing.T, userID uuid.UUID) models.Subscription {
	t.Helper()
	var sub models.Subscription
	require.NoError(t, f.db.Where("user_id = ?", userID).First(&sub).Error)
	return sub
}

func (f *subscriptionFixture) create(t *testing.T, userID uuid.UUID, plan models.PlanType, gatewayID string) {
	t.Helper()
	f.gw.On("CreatePreapproval", mock.Anything, mock.MatchedBy(func(in gateway.CreatePreapprovalRequest) bool {
		return in.ExternalReference == userID.String()
	})).Return(&gateway.Preapproval{ID: gatewayID, Status: "pending", InitPoint: "https://mp.test/" + gatewayID}, nil).Once()

	_, err := f.svc.CreateSubscription(context.Background(), userID, service.CreateSubscriptionInput{
		Email:    "ana@example.com",
		PlanType: plan,
	})
	require.NoError(t, err)
}

func (f *subscriptionFixture) deliver(t *testing.T, userID uuid.UUID, gatewayID, status string) service.WebhookOutcome {
	t.Helper()
	outcome, err := f.svc.ApplyDelivery(context.Background(), service.Delivery{
		GatewaySubscriptionID: gatewayID,
		Status:                status,
		ExternalReference:     userID.String(),
	})
	require.NoError(t, err)
	return outcome
}

func TestCreateSubscription_YearlyThenActive(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()

	var sent gateway.CreatePreapprovalRequest
	f.gw.On("CreatePreapproval", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(gateway.CreatePreapprovalRequest) }).
		Return(&gateway.Preapproval{ID: "sub_1", Status: "pending", InitPoint: "https://mp.test/checkout"}, nil).Once()

	resp, err := f.svc.CreateSubscription(context.Background(), userID, service.CreateSubscriptionInput{
		Email:    "ana@example.com",
		PlanType: models.PlanYearly,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "https://mp.test/checkout", resp.InitPoint)
	assert.Equal(t, "sub_1", resp.SubscriptionID)

	assert.Equal(t, userID.String(), sent.ExternalReference)
	assert.Equal(t, "ana@example.com", sent.PayerEmail)
	assert.Equal(t, float64(29400), sent.AutoRecurring.TransactionAmount)
	assert.Equal(t, 12, sent.AutoRecurring.Frequency)
	assert.Equal(t, "ARS", sent.AutoRecurring.CurrencyID)
	assert.Equal(t, "https://app.test/premium/resultado", sent.BackURL)

	sub := f.ledger(t, userID)
	assert.Equal(t, models.StatusPending, sub.Status)
	assert.True(t, sub.Amount.Equal(decimal.NewFromInt(29400)))
	assert.Equal(t, "sub_1", sub.GatewaySubscriptionID)
	assert.Equal(t, "Premium Anual", sub.PlanName)
	assert.False(t, f.entitlement(t, userID).IsPremium)

	assert.Equal(t, service.OutcomeApplied, f.deliver(t, userID, "sub_1", "active"))

	ent := f.entitlement(t, userID)
	assert.True(t, ent.IsPremium)
	assert.NotNil(t, ent.PremiumSince)
	assert.Equal(t, models.StatusActive, f.ledger(t, userID).Status)
	assert.NotNil(t, f.ledger(t, userID).LastWebhookAt)
	f.gw.AssertExpectations(t)
}

func TestApplyDelivery_CancelledIsIdempotent(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.create(t, userID, models.PlanMonthly, "sub_1")
	f.deliver(t, userID, "sub_1", "active")

	f.deliver(t, userID, "sub_1", "cancelled")
	first := f.entitlement(t, userID)
	assert.False(t, first.IsPremium)
	require.NotNil(t, first.PremiumEndedAt)

	f.deliver(t, userID, "sub_1", "cancelled")
	second := f.entitlement(t, userID)
	assert.False(t, second.IsPremium)
	assert.True(t, first.PremiumEndedAt.Equal(*second.PremiumEndedAt))
	assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))
}

func TestApplyDelivery_AuthorizedTwiceEqualsOnce(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.create(t, userID, models.PlanMonthly, "sub_1")

	f.deliver(t, userID, "sub_1", "authorized")
	once := f.entitlement(t, userID)
	f.deliver(t, userID, "sub_1", "authorized")
	twice := f.entitlement(t, userID)

	assert.True(t, twice.IsPremium)
	assert.True(t, once.PremiumSince.Equal(*twice.PremiumSince))
	assert.Equal(t, once.PremiumEndedAt, twice.PremiumEndedAt)
}

func TestApplyDelivery_StateCoverage(t *testing.T) {
	statuses := map[string]bool{
		"pending":    false,
		"authorized": true,
		"active":     true,
		"paused":     false,
		"cancelled":  false,
		"in_process": false,
	}
	for status, wantPremium := range statuses {
		t.Run(status, func(t *testing.T) {
			f := newSubscriptionFixture(t)
			userID := uuid.New()
			f.create(t, userID, models.PlanMonthly, "sub_1")

			f.deliver(t, userID, "sub_1", status)
			assert.Equal(t, wantPremium, f.entitlement(t, userID).IsPremium)
			assert.Equal(t, status, f.ledger(t, userID).Status)
		})
	}
}

func TestApplyDelivery_LateDeliveryWinsByProcessingOrder(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.create(t, userID, models.PlanMonthly, "sub_1")

	f.deliver(t, userID, "sub_1", "active")
	f.deliver(t, userID, "sub_1", "pending")

	assert.Equal(t, models.StatusPending, f.ledger(t, userID).Status)
	assert.True(t, f.entitlement(t, userID).IsPremium)
}

func TestApplyDelivery_Unresolvable(t *testing.T) {
	f := newSubscriptionFixture(t)
	known := uuid.New()
	f.create(t, known, models.PlanMonthly, "sub_1")
	f.deliver(t, known, "sub_1", "active")

	var before []models.Entitlement
	require.NoError(t, f.db.Find(&before).Error)

	outcome, err := f.svc.ApplyDelivery(context.Background(), service.Delivery{
		GatewaySubscriptionID: "sub_unknown",
		Status:                "cancelled",
	})
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeUnresolvable, outcome)

	outcome, err = f.svc.ApplyDelivery(context.Background(), service.Delivery{
		GatewaySubscriptionID: "sub_other",
		Status:                "cancelled",
		ExternalReference:     uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeUnresolvable, outcome)

	var after []models.Entitlement
	require.NoError(t, f.db.Find(&after).Error)
	assert.Equal(t, len(before), len(after))
	assert.True(t, f.entitlement(t, known).IsPremium)
}

func TestApplyDelivery_ResolvesByGatewayIDWithoutReference(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.create(t, userID, models.PlanMonthly, "sub_1")

	outcome, err := f.svc.ApplyDelivery(context.Background(), service.Delivery{
		GatewaySubscriptionID: "sub_1",
		Status:                "authorized",
	})
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeApplied, outcome)
	assert.True(t, f.entitlement(t, userID).IsPremium)
}

func TestApplyDelivery_SupersededCheckoutIsDropped(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.create(t, userID, models.PlanMonthly, "sub_old")
	f.create(t, userID, models.PlanYearly, "sub_new")

	assert.Equal(t, service.OutcomeUnresolvable, f.deliver(t, userID, "sub_old", "authorized"))
	assert.False(t, f.entitlement(t, userID).IsPremium)

	sub := f.ledger(t, userID)
	assert.Equal(t, "sub_new", sub.GatewaySubscriptionID)
	assert.Equal(t, models.PlanYearly, sub.PlanType)
}

func TestApplyDelivery_RecordsAuditEvents(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.create(t, userID, models.PlanMonthly, "sub_1")
	f.deliver(t, userID, "sub_1", "active")

	var events []models.SubscriptionEvent
	require.NoError(t, f.db.Where("user_id = ?", userID).Order("created_at").Find(&events).Error)
	require.Len(t, events, 2)

	assert.Equal(t, service.SourceCreation, events[0].Source)
	assert.Nil(t, events[0].Before.Data())
	assert.Equal(t, service.SourceWebhook, events[1].Source)
	assert.Equal(t, string(service.DecisionGrant), events[1].Decision)
	require.NotNil(t, events[1].Before.Data())
	assert.Equal(t, models.StatusPending, events[1].Before.Data().Status)
	assert.Equal(t, models.StatusActive, events[1].After.Data().Status)
}

func TestCreateSubscription_Validation(t *testing.T) {
	f := newSubscriptionFixture(t)
	ctx := context.Background()

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := f.svc.CreateSubscription(ctx, uuid.Nil, service.CreateSubscriptionInput{Email: "a@b.c", PlanType: models.PlanMonthly})
		assert.True(t, ierr.Is(err, ierr.ErrUnauthenticated))
	})

	t.Run("missing email", func(t *testing.T) {
		_, err := f.svc.CreateSubscription(ctx, uuid.New(), service.CreateSubscriptionInput{PlanType: models.PlanMonthly})
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("unknown plan", func(t *testing.T) {
		_, err := f.svc.CreateSubscription(ctx, uuid.New(), service.CreateSubscriptionInput{Email: "a@b.c", PlanType: "weekly"})
		assert.True(t, ierr.IsValidation(err))
	})

	f.gw.AssertNotCalled(t, "CreatePreapproval", mock.Anything, mock.Anything)
}

func TestCreateSubscription_FallsBackToAccountEmail(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.gw.On("CreatePreapproval", mock.Anything, mock.MatchedBy(func(in gateway.CreatePreapprovalRequest) bool {
		return in.PayerEmail == "cuenta@example.com" && in.BackURL == "https://otra.test/premium/resultado"
	})).Return(&gateway.Preapproval{ID: "sub_1", InitPoint: "https://mp.test/x"}, nil).Once()

	_, err := f.svc.CreateSubscription(context.Background(), userID, service.CreateSubscriptionInput{
		AccountEmail: "cuenta@example.com",
		PlanType:     models.PlanMonthly,
		FrontendURL:  "https://otra.test/",
	})
	require.NoError(t, err)
	assert.Equal(t, "cuenta@example.com", f.ledger(t, userID).Email)
	f.gw.AssertExpectations(t)
}

func TestCreateSubscription_GatewayFailureWritesNothing(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.gw.On("CreatePreapproval", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused")).Once()

	_, err := f.svc.CreateSubscription(context.Background(), userID, service.CreateSubscriptionInput{
		Email:    "ana@example.com",
		PlanType: models.PlanMonthly,
	})
	require.Error(t, err)
	assert.True(t, ierr.Is(err, ierr.ErrGateway))
	assert.True(t, ierr.IsRetryable(err))

	var count int64
	require.NoError(t, f.db.Model(&models.Subscription{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateSubscription_RejectsWhenAlreadyActive(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.create(t, userID, models.PlanMonthly, "sub_1")
	f.deliver(t, userID, "sub_1", "authorized")

	_, err := f.svc.CreateSubscription(context.Background(), userID, service.CreateSubscriptionInput{
		Email:    "ana@example.com",
		PlanType: models.PlanYearly,
	})
	assert.True(t, ierr.IsValidation(err))
}

func TestCancelSubscription(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.create(t, userID, models.PlanMonthly, "sub_1")
	f.deliver(t, userID, "sub_1", "active")

	f.gw.On("CancelPreapproval", mock.Anything, "sub_1").Return(nil).Once()
	require.NoError(t, f.svc.CancelSubscription(context.Background(), userID))

	assert.Equal(t, models.StatusCancelled, f.ledger(t, userID).Status)
	ent := f.entitlement(t, userID)
	assert.False(t, ent.IsPremium)
	assert.NotNil(t, ent.PremiumEndedAt)
	f.gw.AssertExpectations(t)
}

func TestCancelSubscription_NotFound(t *testing.T) {
	f := newSubscriptionFixture(t)

	err := f.svc.CancelSubscription(context.Background(), uuid.New())
	assert.True(t, ierr.IsNotFound(err))

	userID := uuid.New()
	require.NoError(t, f.db.Create(&models.Subscription{
		UserID:   userID,
		Status:   models.StatusPending,
		PlanType: models.PlanMonthly,
		Amount:   decimal.NewFromInt(2990),
		Currency: "ARS",
	}).Error)
	err = f.svc.CancelSubscription(context.Background(), userID)
	assert.True(t, ierr.IsNotFound(err))
	f.gw.AssertNotCalled(t, "CancelPreapproval", mock.Anything, mock.Anything)
}

func TestCancelSubscription_GatewayFailureKeepsPremium(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.create(t, userID, models.PlanMonthly, "sub_1")
	f.deliver(t, userID, "sub_1", "active")

	gwErr := ierr.NewError("gateway down").Mark(ierr.ErrGateway)
	f.gw.On("CancelPreapproval", mock.Anything, "sub_1").Return(gwErr).Once()

	err := f.svc.CancelSubscription(context.Background(), userID)
	assert.True(t, ierr.Is(err, ierr.ErrGateway))
	assert.Equal(t, models.StatusActive, f.ledger(t, userID).Status)
	assert.True(t, f.entitlement(t, userID).IsPremium)
}

func TestHandleNotification(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.create(t, userID, models.PlanMonthly, "sub_1")
	ctx := context.Background()

	t.Run("other types are ignored", func(t *testing.T) {
		var n types.GatewayNotification
		n.Type = "payment"
		n.Data.ID = "123"
		outcome, err := f.svc.HandleNotification(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeIgnored, outcome)
	})

	t.Run("preapproval is read back from the gateway", func(t *testing.T) {
		f.gw.On("GetPreapproval", mock.Anything, "sub_1").Return(&gateway.Preapproval{
			ID:                "sub_1",
			Status:            "authorized",
			PayerEmail:        "pagador@example.com",
			ExternalReference: userID.String(),
		}, nil).Once()

		var n types.GatewayNotification
		n.Type = gateway.NotificationTypePreapproval
		n.Data.ID = "sub_1"
		outcome, err := f.svc.HandleNotification(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeApplied, outcome)
		assert.True(t, f.entitlement(t, userID).IsPremium)
		assert.Equal(t, "pagador@example.com", f.ledger(t, userID).Email)
	})

	t.Run("unknown at the gateway", func(t *testing.T) {
		f.gw.On("GetPreapproval", mock.Anything, "sub_gone").
			Return(nil, ierr.NewError("missing").Mark(ierr.ErrNotFound)).Once()

		var n types.GatewayNotification
		n.Type = gateway.NotificationTypePreapproval
		n.Data.ID = "sub_gone"
		outcome, err := f.svc.HandleNotification(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeUnresolvable, outcome)
	})

	t.Run("missing id", func(t *testing.T) {
		var n types.GatewayNotification
		n.Type = gateway.NotificationTypePreapproval
		outcome, err := f.svc.HandleNotification(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeUnresolvable, outcome)
	})

	f.gw.AssertExpectations(t)
}

func TestStatus(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()

	status, err := f.svc.Status(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, status.Subscription)
	assert.False(t, status.IsPremium)
	assert.Equal(t, service.FreeFavoritesLimit, status.Capabilities.FavoritesLimit)

	f.create(t, userID, models.PlanMonthly, "sub_1")
	f.deliver(t, userID, "sub_1", "active")

	status, err = f.svc.Status(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, status.Subscription)
	assert.Equal(t, models.StatusActive, status.Subscription.Status)
	assert.True(t, status.IsPremium)
	assert.NotNil(t, status.PremiumSince)
}

// replaceCheckoutBeforeUpdate simulates a second checkout committing between
// the moment a delivery is resolved and the moment its status is written.
func replaceCheckoutBeforeUpdate(t *testing.T, db *gorm.DB, userID uuid.UUID, gatewayID string) {
	t.Helper()
	fired := false
	err := db.Callback().Update().Before("gorm:update").Register("test:replace_checkout", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "subscriptions" {
			return
		}
		fired = true
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"UPDATE subscriptions SET gateway_subscription_id = ?, plan_type = ?, amount = ?, status = ? WHERE user_id = ?",
			gatewayID, string(models.PlanYearly), "29400", models.StatusPending, userID.String())
		require.NoError(t, err)
	})
	require.NoError(t, err)
}

func TestApplyDelivery_LateDeliveryDoesNotOverwriteNewerCheckout(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.create(t, userID, models.PlanMonthly, "sub_old")

	replaceCheckoutBeforeUpdate(t, f.db, userID, "sub_new")
	assert.Equal(t, service.OutcomeUnresolvable, f.deliver(t, userID, "sub_old", "cancelled"))

	sub := f.ledger(t, userID)
	assert.Equal(t, "sub_new", sub.GatewaySubscriptionID)
	assert.Equal(t, models.PlanYearly, sub.PlanType)
	assert.True(t, sub.Amount.Equal(decimal.NewFromInt(29400)))
	assert.Equal(t, models.StatusPending, sub.Status)

	assert.Equal(t, service.OutcomeApplied, f.deliver(t, userID, "sub_new", "authorized"))
	assert.True(t, f.entitlement(t, userID).IsPremium)
	assert.Equal(t, models.StatusAuthorized, f.ledger(t, userID).Status)
}

func TestApplyDelivery_OnlyStatusColumnsChange(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.create(t, userID, models.PlanYearly, "sub_1")
	created := f.ledger(t, userID)

	f.deliver(t, userID, "sub_1", "authorized")

	sub := f.ledger(t, userID)
	assert.Equal(t, created.PlanType, sub.PlanType)
	assert.True(t, created.Amount.Equal(sub.Amount))
	assert.Equal(t, created.PlanName, sub.PlanName)
	assert.Equal(t, created.Currency, sub.Currency)
	assert.Equal(t, models.StatusAuthorized, sub.Status)
}

func TestCancelSubscription_ReplacedDuringCancellation(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.create(t, userID, models.PlanMonthly, "sub_old")
	f.deliver(t, userID, "sub_old", "active")

	f.gw.On("CancelPreapproval", mock.Anything, "sub_old").Return(nil).Once()
	replaceCheckoutBeforeUpdate(t, f.db, userID, "sub_new")

	err := f.svc.CancelSubscription(context.Background(), userID)
	assert.True(t, ierr.IsNotFound(err))
	assert.Equal(t, "sub_new", f.ledger(t, userID).GatewaySubscriptionID)
	assert.True(t, f.entitlement(t, userID).IsPremium)
}

func TestCancelSubscription_GatewayNotFoundKeepsOneKind(t *testing.T) {
	f := newSubscriptionFixture(t)
	userID := uuid.New()
	f.create(t, userID, models.PlanMonthly, "sub_1")

	gwErr := ierr.NewError("gateway resource missing").Mark(ierr.ErrNotFound)
	f.gw.On("CancelPreapproval", mock.Anything, "sub_1").Return(gwErr).Once()

	err := f.svc.CancelSubscription(context.Background(), userID)
	require.Error(t, err)
	assert.False(t, ierr.Is(err, ierr.ErrGateway))
	for i := 0; i < 100; i++ {
		assert.Equal(t, http.StatusNotFound, ierr.HTTPStatusFromErr(err))
		assert.Equal(t, ierr.ErrCodeNotFound, ierr.CodeFromErr(err))
	}
}
