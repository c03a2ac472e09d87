package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/gateway"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/models"
	"github.com/quecocinohoy/backend/internal/types"
)

// Sources recorded on subscription events.
const (
	SourceCreation     = "creation"
	SourceWebhook      = "webhook"
	SourceCancellation = "cancellation"
)

// WebhookOutcome describes what happened to one gateway notification.
type WebhookOutcome string

const (
	OutcomeApplied      WebhookOutcome = "applied"
	OutcomeIgnored      WebhookOutcome = "ignored"
	OutcomeUnresolvable WebhookOutcome = "unresolvable"
)

// ResultPath is appended to the frontend URL to build the checkout return link.
const ResultPath = "/premium/resultado"

// CreateSubscriptionInput is what the checkout flow needs from the caller.
type CreateSubscriptionInput struct {
	Email        string
	AccountEmail string
	PlanType     models.PlanType
	FrontendURL  string
}

// Delivery is one status report for a gateway subscription.
type Delivery struct {
	GatewaySubscriptionID string
	Status                string
	PayerEmail            string
	ExternalReference     string
}

type SubscriptionService struct {
	db           *gorm.DB
	gateway      PaymentGateway
	entitlements *EntitlementService
	frontendURL  string
	log          *logger.Logger
}

func NewSubscriptionService(db *gorm.DB, gw PaymentGateway, entitlements *EntitlementService, frontendURL string, log *logger.Logger) *SubscriptionService {
	return &SubscriptionService{
		db:           db,
		gateway:      gw,
		entitlements: entitlements,
		frontendURL:  strings.TrimRight(frontendURL, "/"),
		log:          log.Named("subscriptions"),
	}
}

// CreateSubscription starts a checkout on the gateway and records a pending
// ledger entry. Nothing is written when the gateway call fails.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, userID uuid.UUID, in CreateSubscriptionInput) (*types.CreateSubscriptionResponse, error) {
	if userID == uuid.Nil {
		return nil, ierr.NewError("missing user").
			WithHint("Iniciá sesión para suscribirte.").
			Mark(ierr.ErrUnauthenticated)
	}

	email := strings.TrimSpace(in.Email)
	if email == "" {
		email = strings.TrimSpace(in.AccountEmail)
	}
	if email == "" {
		return nil, ierr.NewError("missing payer email").
			WithHint("Necesitamos tu email para crear la suscripción.").
			Mark(ierr.ErrValidation)
	}

	plan, err := LookupPlan(in.PlanType)
	if err != nil {
		return nil, err
	}

	current, err := findLedger(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to load subscription").
			WithHint("No pudimos consultar tu suscripción. Intentá de nuevo.").
			Mark(ierr.ErrDatabase)
	}
	if current != nil && ResolveStatus(current.Status) == DecisionGrant {
		return nil, ierr.NewError("subscription already active").
			WithHint("Ya tenés una suscripción Premium activa.").
			Mark(ierr.ErrValidation)
	}

	frontendURL := strings.TrimRight(strings.TrimSpace(in.FrontendURL), "/")
	if frontendURL == "" {
		frontendURL = s.frontendURL
	}

	pre, err := s.gateway.CreatePreapproval(ctx, gateway.CreatePreapprovalRequest{
		Reason:            plan.Name,
		ExternalReference: userID.String(),
		PayerEmail:        email,
		AutoRecurring: gateway.AutoRecurring{
			Frequency:         plan.Frequency,
			FrequencyType:     plan.FrequencyType,
			TransactionAmount: plan.Amount.InexactFloat64(),
			CurrencyID:        plan.Currency,
		},
		BackURL: frontendURL + ResultPath,
		Status:  models.StatusPending,
	})
	if err != nil {
		s.log.Errorw("gateway rejected subscription creation", "user_id", userID, "plan", plan.Type, "error", err)
		if !ierr.HasMark(err) {
			err = ierr.WithError(err).
				WithHint("No pudimos iniciar la suscripción. Intentá de nuevo en unos minutos.").
				Mark(ierr.ErrGateway)
		}
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := findLedger(tx, userID)
		if err != nil {
			return err
		}

		sub := models.Subscription{
			UserID:                userID,
			GatewaySubscriptionID: pre.ID,
			Status:                models.StatusPending,
			PlanType:              plan.Type,
			Amount:                plan.Amount,
			Currency:              plan.Currency,
			PlanName:              plan.Name,
			Email:                 email,
		}
		if before != nil {
			sub.CreatedAt = before.CreatedAt
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&sub).Error; err != nil {
			return err
		}
		return recordEvent(tx, SourceCreation, before, &sub, ResolveStatus(sub.Status))
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to save subscription").
			WithHint("No pudimos guardar la suscripción. Intentá de nuevo.").
			Mark(ierr.ErrDatabase)
	}

	s.log.Infow("subscription created", "user_id", userID, "gateway_subscription_id", pre.ID, "plan", plan.Type)
	return &types.CreateSubscriptionResponse{
		Success:        true,
		InitPoint:      pre.InitPoint,
		SubscriptionID: pre.ID,
	}, nil
}

// CancelSubscription cancels on the gateway first, then marks the ledger
// cancelled and revokes premium.
func (s *SubscriptionService) CancelSubscription(ctx context.Context, userID uuid.UUID) error {
	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if sub.GatewaySubscriptionID == "" {
		return ierr.NewError("subscription has no gateway id").
			WithHint("No encontramos una suscripción para cancelar.").
			Mark(ierr.ErrNotFound)
	}

	if err := s.gateway.CancelPreapproval(ctx, sub.GatewaySubscriptionID); err != nil {
		s.log.Errorw("gateway rejected cancellation", "user_id", userID, "gateway_subscription_id", sub.GatewaySubscriptionID, "error", err)
		if !ierr.HasMark(err) {
			err = ierr.WithError(err).
				WithHint("No pudimos cancelar la suscripción. Intentá de nuevo en unos minutos.").
				Mark(ierr.ErrGateway)
		}
		return err
	}

	applied, err := s.transition(ctx, SourceCancellation, *sub, models.StatusCancelled, "")
	if err != nil {
		return err
	}
	if !applied {
		return ierr.NewError("subscription replaced during cancellation").
			WithHint("Tu suscripción cambió mientras la cancelábamos. Revisá su estado e intentá de nuevo.").
			Mark(ierr.ErrNotFound)
	}
	s.log.Infow("subscription cancelled", "user_id", userID, "gateway_subscription_id", sub.GatewaySubscriptionID)
	return nil
}

// GetSubscription returns the user's ledger entry.
func (s *SubscriptionService) GetSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := findLedger(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to load subscription").
			WithHint("No pudimos consultar tu suscripción. Intentá de nuevo.").
			Mark(ierr.ErrDatabase)
	}
	if sub == nil {
		return nil, ierr.NewError("subscription not found").
			WithHint("No encontramos una suscripción para tu cuenta.").
			Mark(ierr.ErrNotFound)
	}
	return sub, nil
}

// Status combines the ledger entry (when there is one) with the entitlement.
func (s *SubscriptionService) Status(ctx context.Context, userID uuid.UUID) (*types.SubscriptionStatusResponse, error) {
	sub, err := s.GetSubscription(ctx, userID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	ent, err := s.entitlements.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &types.SubscriptionStatusResponse{
		Subscription:   sub,
		IsPremium:      ent.IsPremium,
		PremiumSince:   ent.PremiumSince,
		PremiumEndedAt: ent.PremiumEndedAt,
		Capabilities:   CapabilitiesFor(ent.IsPremium),
	}, nil
}

// HandleNotification processes one webhook body. Only preapproval
// notifications are acted on; the current state is read back from the gateway.
func (s *SubscriptionService) HandleNotification(ctx context.Context, n types.GatewayNotification) (WebhookOutcome, error) {
	if n.Type != gateway.NotificationTypePreapproval {
		s.log.Debugw("ignoring notification type", "type", n.Type)
		return OutcomeIgnored, nil
	}
	id := strings.TrimSpace(n.Data.ID)
	if id == "" {
		s.log.Infow("notification without subscription id")
		return OutcomeUnresolvable, nil
	}

	pre, err := s.gateway.GetPreapproval(ctx, id)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.log.Infow("gateway does not know notified subscription", "gateway_subscription_id", id)
			return OutcomeUnresolvable, nil
		}
		return "", err
	}

	return s.ApplyDelivery(ctx, Delivery{
		GatewaySubscriptionID: id,
		Status:                pre.Status,
		PayerEmail:            pre.PayerEmail,
		ExternalReference:     pre.ExternalReference,
	})
}

// ApplyDelivery applies one reported status. Deliveries are applied in
// processing order; an unresolvable delivery is dropped without error.
func (s *SubscriptionService) ApplyDelivery(ctx context.Context, d Delivery) (WebhookOutcome, error) {
	sub, err := s.resolve(ctx, d)
	if err != nil {
		return "", err
	}
	if sub == nil {
		s.log.Infow("dropping unresolvable delivery",
			"gateway_subscription_id", d.GatewaySubscriptionID,
			"external_reference", d.ExternalReference,
			"status", d.Status)
		return OutcomeUnresolvable, nil
	}

	if ResolveStatus(d.Status) == DecisionIgnore {
		s.log.Infow("non-actionable subscription status", "user_id", sub.UserID, "status", d.Status)
	}

	applied, err := s.transition(ctx, SourceWebhook, *sub, d.Status, d.PayerEmail)
	if err != nil {
		return "", err
	}
	if !applied {
		return OutcomeUnresolvable, nil
	}
	return OutcomeApplied, nil
}

func (s *SubscriptionService) resolve(ctx context.Context, d Delivery) (*models.Subscription, error) {
	db := s.db.WithContext(ctx)

	var sub *models.Subscription
	if userID, err := uuid.Parse(strings.TrimSpace(d.ExternalReference)); err == nil {
		sub, err = findLedger(db, userID)
		if err != nil {
			return nil, ierr.WithError(err).WithMessage("failed to resolve delivery").Mark(ierr.ErrDatabase)
		}
	}
	if sub == nil && d.GatewaySubscriptionID != "" {
		var found models.Subscription
		err := db.Where("gateway_subscription_id = ?", d.GatewaySubscriptionID).First(&found).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ierr.WithError(err).WithMessage("failed to resolve delivery").Mark(ierr.ErrDatabase)
		}
		if err == nil {
			sub = &found
		}
	}
	if sub == nil {
		return nil, nil
	}

	// a superseded checkout must not touch the user's current subscription
	if sub.GatewaySubscriptionID != "" && d.GatewaySubscriptionID != "" && sub.GatewaySubscriptionID != d.GatewaySubscriptionID {
		return nil, nil
	}
	return sub, nil
}

// transition writes the new status, applies the entitlement policy and appends
// an audit event in one transaction. Only the status columns are written, and
// only while the ledger still points at sub's gateway subscription; it reports
// false when a newer checkout replaced it in the meantime.
func (s *SubscriptionService) transition(ctx context.Context, source string, sub models.Subscription, status, payerEmail string) (bool, error) {
	decision := ResolveStatus(status)
	now := time.Now().UTC()

	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	if source == SourceWebhook {
		updates["last_webhook_at"] = now
	}
	if payerEmail != "" {
		updates["email"] = payerEmail
	}

	var before, after models.Subscription
	applied, changed := false, false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current := tx.Where("user_id = ? AND gateway_subscription_id = ?", sub.UserID, sub.GatewaySubscriptionID).
			Limit(1).Find(&before)
		if current.Error != nil || current.RowsAffected == 0 {
			return current.Error
		}

		res := tx.Model(&models.Subscription{}).
			Where("user_id = ? AND gateway_subscription_id = ?", sub.UserID, sub.GatewaySubscriptionID).
			Updates(updates)
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		applied = true

		if err := tx.Where("user_id = ?", sub.UserID).First(&after).Error; err != nil {
			return err
		}
		var err error
		if changed, err = applyDecision(tx, sub.UserID, decision, now); err != nil {
			return err
		}
		return recordEvent(tx, source, &before, &after, decision)
	})
	if err != nil {
		return false, ierr.WithError(err).
			WithMessage("failed to apply subscription transition").
			WithHint("No pudimos actualizar tu suscripción. Intentá de nuevo.").
			Mark(ierr.ErrDatabase)
	}
	if !applied {
		s.log.Infow("ledger moved to a newer checkout, transition skipped",
			"user_id", sub.UserID,
			"source", source,
			"gateway_subscription_id", sub.GatewaySubscriptionID,
			"status", status)
		return false, nil
	}

	if changed {
		s.entitlements.Invalidate(ctx, sub.UserID)
	}
	s.log.Infow("subscription transition applied",
		"user_id", sub.UserID,
		"source", source,
		"from", before.Status,
		"to", status,
		"decision", decision,
		"entitlement_changed", changed)
	return true, nil
}

func findLedger(db *gorm.DB, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func recordEvent(tx *gorm.DB, source string, before, after *models.Subscription, decision StatusDecision) error {
	event := models.SubscriptionEvent{
		ID:                    uuid.New(),
		UserID:                after.UserID,
		GatewaySubscriptionID: after.GatewaySubscriptionID,
		Source:                source,
		Status:                after.Status,
		Decision:              string(decision),
		Before:                datatypes.NewJSONType(before),
		After:                 datatypes.NewJSONType(after),
	}
	return tx.Create(&event).Error
}
